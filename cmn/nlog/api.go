// Package nlog - see nlog.go for the implementation notes.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

// Flush is a no-op kept for call-site compatibility with the teacher's
// nlog API; this package writes synchronously under a mutex instead of
// buffering, so there is nothing to flush. Nothing in this module calls
// it.
func Flush(...bool) {}
