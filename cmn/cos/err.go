// Package cos provides common low-level types and utilities used across
// muscore (string/byte helpers, ID generation, lightweight error
// aggregation and connection-error classification).
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/hpcmsg/muscore/cmn/debug"
)

type (
	// Errs aggregates up to maxErrs distinct errors, deduplicated by
	// message; used by the close protocol (spec.md §4.1.1) to report
	// every port that failed to drain instead of only the first.
	Errs struct {
		errs []error
		mu   sync.Mutex
	}
)

const maxErrs = 8

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

// Err returns the aggregate as a single joined error, or nil if empty.
func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}

//
// connection-error classification (manager client backoff, transport errors)
//

func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }

func IsRetriableConnErr(err error) bool {
	if err == nil {
		return false
	}
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err) ||
		errors.Is(err, context.DeadlineExceeded) || isErrDNSLookup(err)
}

func isErrDNSLookup(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

//
// abnormal termination
//

const fatalPrefix = "FATAL ERROR: "

// ExitLogf reports a fatal configuration error (spec.md §7) and terminates
// the process; used only at instance/manager startup.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
