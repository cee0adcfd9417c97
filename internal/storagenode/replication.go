package storagenode

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"distributed-kvstore/internal/wire"
)

// dialTimeout bounds a node's outbound replication connect+send+recv,
// matching the coordinator's per-attempt budget in spirit (spec §4.3/§5).
const dialTimeout = 5 * time.Second

// replicationJob is one queued unit of replication work: replay req against
// replica, best-effort.
type replicationJob struct {
	replica wire.NodeDescriptor
	req     wire.Request
}

// replicator fans writes out to replicas through shardCount ordered,
// bounded queues — one worker goroutine per shard. Routing a job by
// shardFor(key) guarantees every job for a given key is drained, in
// submission order, by the same worker, so replica-side apply order matches
// primary apply order for that key without the primary's response ever
// waiting on a replica's ack. This is the re-architected replacement for
// calling the replica synchronously from inside the request path.
type replicator struct {
	queues [shardCount]chan replicationJob
	dial   func(addr string) (net.Conn, error)
	log    *logrus.Entry
}

func newReplicator(log *logrus.Entry) *replicator {
	r := &replicator{
		dial: func(addr string) (net.Conn, error) { return net.DialTimeout("tcp", addr, dialTimeout) },
		log:  log,
	}
	for i := range r.queues {
		r.queues[i] = make(chan replicationJob, 256)
		go r.worker(r.queues[i])
	}
	return r
}

func (r *replicator) worker(q chan replicationJob) {
	for job := range q {
		r.send(job)
	}
}

func (r *replicator) send(job replicationJob) {
	conn, err := r.dial(job.replica.Addr())
	if err != nil {
		r.log.WithError(err).WithField("replica", job.replica.NodeID).Warn("replication dial failed")
		return
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	if err := wire.WriteRequest(conn, &job.req); err != nil {
		r.log.WithError(err).WithField("replica", job.replica.NodeID).Warn("replication send failed")
		return
	}
	// Response is read and discarded — replication is best-effort.
	_, _ = wire.ReadResponse(conn)
}

// enqueue queues req for replica, routed by key's shard. A full queue drops
// its oldest pending job rather than blocking the caller or growing
// unbounded; replication was always allowed to fail, this just bounds the
// failure's memory cost.
func (r *replicator) enqueue(key string, replica wire.NodeDescriptor, req wire.Request) {
	q := r.queues[shardFor(key)]
	select {
	case q <- replicationJob{replica: replica, req: req}:
		return
	default:
	}

	select {
	case <-q:
	default:
	}
	select {
	case q <- replicationJob{replica: replica, req: req}:
	default:
	}
	r.log.WithField("key", key).WithField("replica", replica.NodeID).Warn("replication queue full, dropped oldest pending job")
}

// Close stops every worker once its queue drains. Jobs still in flight are
// allowed to finish; nothing new is accepted after Close.
func (r *replicator) Close() {
	for _, q := range r.queues {
		close(q)
	}
}
