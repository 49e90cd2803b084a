// Package nlog provides the leveled, call-site logging API used across
// muscore: Infof/Warningf/Errorf plus a severity-gated writer.
//
// Log file rotation, shipping, and on-disk layout are the concern of an
// external log-handling collaborator (see spec.md §1); this package only
// carries the logging call-site API and severity routing the rest of the
// module depends on, writing through a single io.Writer.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var severityChar = "IWE"

type logger struct {
	mu  sync.Mutex
	out io.Writer
	sev severity
}

var (
	loggers   [3]*logger
	verbosity atomic.Int32 // 0: info+, 1: also prints caller depth traces
	title     string
	hook      atomic.Pointer[func(level string, text string)]
)

// SetHook installs a callback invoked on every Warning/Error call after the
// line is written locally, in addition to (not instead of) SetOutput's
// writer. instance uses this to forward WARNING+ lines to the manager via
// mmpclient.SubmitLogMessage (SPEC_FULL.md §4); nil clears it. Same
// package-level-setter shape as SetOutput/SetTitle/SetVerbose below.
func SetHook(f func(level, text string)) {
	if f == nil {
		hook.Store(nil)
		return
	}
	hook.Store(&f)
}

func callHook(sev severity, text string) {
	p := hook.Load()
	if p == nil || sev == sevInfo {
		return
	}
	level := "WARNING"
	if sev == sevErr {
		level = "ERROR"
	}
	(*p)(level, text)
}

func init() {
	for s := sevInfo; s <= sevErr; s++ {
		loggers[s] = &logger{out: os.Stderr, sev: s}
	}
}

// SetOutput redirects every severity to w. Tests and the
// muscle-manager entry point use this to point logging at a file or buffer;
// by default all severities go to os.Stderr.
func SetOutput(w io.Writer) {
	for _, l := range loggers {
		l.mu.Lock()
		l.out = w
		l.mu.Unlock()
	}
}

// SetTitle records a free-form process identity banner; surfaced by Title().
func SetTitle(s string) { title = s }

func Title() string { return title }

// SetVerbose toggles emission of caller file:line on every line (always on
// for Warning/Error; optional for Info to keep steady-state logging terse).
func SetVerbose(v bool) {
	if v {
		verbosity.Store(1)
	} else {
		verbosity.Store(0)
	}
}

func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Infoln(args ...any)                  { logln(sevInfo, 1, args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func Warningln(args ...any)               { logln(sevWarn, 1, args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }
func Errorln(args ...any)                 { logln(sevErr, 1, args...) }

func log(sev severity, depth int, format string, args ...any) {
	l := loggers[sev]
	line := format1(sev, depth+1, format, args...)
	l.mu.Lock()
	io.WriteString(l.out, line)
	l.mu.Unlock()
	callHook(sev, fmt.Sprintf(format, args...))
}

func logln(sev severity, depth int, args ...any) {
	l := loggers[sev]
	line := formatln(sev, depth+1, args...)
	l.mu.Lock()
	io.WriteString(l.out, line)
	l.mu.Unlock()
	callHook(sev, fmt.Sprintln(args...))
}

func format1(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	writeHdr(&b, sev, depth+1)
	fmt.Fprintf(&b, format, args...)
	b.WriteByte('\n')
	return b.String()
}

func formatln(sev severity, depth int, args ...any) string {
	var b strings.Builder
	writeHdr(&b, sev, depth+1)
	fmt.Fprintln(&b, args...)
	return b.String()
}

func writeHdr(b *strings.Builder, sev severity, depth int) {
	b.WriteByte(severityChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().UTC().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if sev == sevInfo && verbosity.Load() == 0 {
		return
	}
	_, fn, ln, ok := runtime.Caller(2 + depth)
	if !ok {
		return
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	b.WriteString(fn)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(ln))
	b.WriteByte(' ')
}
