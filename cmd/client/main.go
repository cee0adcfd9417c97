// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	kvcli set mykey "hello world"   --server localhost:5000
//	kvcli get mykey                 --server localhost:5000
//	kvcli delete mykey               --server localhost:5000
//	kvcli health                     --server localhost:5000
//	kvcli register node1 localhost 6001 --server localhost:5000
package main

import (
	"context"
	"distributed-kvstore/internal/client"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for the distributed KV store",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"localhost:5000", "Coordinator address (host:port)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"Request timeout")

	root.AddCommand(setCmd(), getCmd(), deleteCmd(), healthCmd(), registerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp := c.Set(context.Background(), args[0], args[1], false)
			prettyPrint(resp)
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp := c.Get(context.Background(), args[0])
			if !resp.Success {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			prettyPrint(resp)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp := c.Delete(context.Background(), args[0])
			if !resp.Success {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report cluster health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp := c.Health(context.Background())
			prettyPrint(resp)
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <nodeID> <host> <port>",
		Short: "Register a storage node with the coordinator",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[2], err)
			}
			c := client.New(serverAddr, timeout)
			resp := c.Register(context.Background(), args[0], args[1], port)
			prettyPrint(resp)
			return nil
		},
	}
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
