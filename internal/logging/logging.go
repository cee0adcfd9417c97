// Package logging centralizes the structured logger shared by the
// coordinator and node processes. One logrus instance per process; New sets
// the component field and callers add fields such as node_id, replica or key
// instead of the teacher's bare log.Printf format strings.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus logger for component (e.g. "coordinator", "node").
func New(component string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log.WithField("component", component)
}
