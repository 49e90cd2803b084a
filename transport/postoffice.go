package transport

import (
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/hpcmsg/muscore/cmn/nlog"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// numShards bounds lock contention on a PostOffice holding outboxes for
// many simultaneously-connected peers (a fan-out/fan-in endpoint can have
// hundreds). Each shard is its own RWMutex-guarded map, the receiver's
// key hashed into a shard the same way the teacher's sharded maps split
// load across an xxhash-selected bucket rather than one global lock.
const numShards = 32

type poShard struct {
	mu     sync.RWMutex
	outbox map[string]*Outbox
}

// PostOffice indexes one Outbox per receiver Reference, sharded by
// xxhash(receiver.Key()) so that a busy fan-out endpoint's 100 outboxes
// don't all serialize behind a single mutex.
type PostOffice struct {
	shards  [numShards]*poShard
	idleTTL time.Duration
	stopCh  chan struct{}
	stopped sync.Once
}

const defaultIdleTTL = 10 * time.Minute

func NewPostOffice() *PostOffice {
	po := &PostOffice{idleTTL: defaultIdleTTL, stopCh: make(chan struct{})}
	for i := range po.shards {
		po.shards[i] = &poShard{outbox: map[string]*Outbox{}}
	}
	go po.collect()
	return po
}

func shardFor(key string) uint64 {
	return xxhash.ChecksumString64(key) % numShards
}

// Lookup returns the existing outbox for receiver, creating it on first
// touch. The receiver Reference need not yet be registered anywhere else
// — an instance may start depositing messages for a peer that has not
// reuse_instance()'d yet (spec.md §4.1: F_INIT ports may pre-receive).
func (po *PostOffice) Lookup(receiver ref.Reference) *Outbox {
	key := receiver.Key()
	sh := po.shards[shardFor(key)]

	sh.mu.RLock()
	ob, ok := sh.outbox[key]
	sh.mu.RUnlock()
	if ok {
		return ob
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if ob, ok = sh.outbox[key]; ok {
		return ob
	}
	ob = NewOutbox()
	sh.outbox[key] = ob
	return ob
}

// Deliver is the sender-side half of spec.md §4.5's push/pull split:
// depositing a message into the receiver's outbox never blocks on the
// network, regardless of whether receiver lives in this process.
func (po *PostOffice) Deliver(receiver ref.Reference, msg *wire.Message) {
	po.Lookup(receiver).Put(msg)
}

func (po *PostOffice) Stop() {
	po.stopped.Do(func() { close(po.stopCh) })
}

// collect evicts outboxes idle for longer than idleTTL, grounded on the
// teacher's collector.do() sweep — simplified to a flat per-shard map
// scan since a PostOffice holds one outbox per connected peer, not per
// in-flight object, so cardinality stays small even unsharded.
func (po *PostOffice) collect() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			po.sweep()
		case <-po.stopCh:
			return
		}
	}
}

func (po *PostOffice) sweep() {
	for _, sh := range po.shards {
		sh.mu.Lock()
		for key, ob := range sh.outbox {
			if ob.Idle(po.idleTTL) {
				delete(sh.outbox, key)
				nlog.Infof("postoffice: evicted idle outbox for %s", key)
			}
		}
		sh.mu.Unlock()
	}
}
