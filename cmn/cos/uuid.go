// Package cos - see err.go for the package overview.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"sync"
	"unsafe"

	"github.com/teris-io/shortid"
)

// Alphabet for generating short IDs, same shape as shortid.DEFAULT_ABC.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

const LenShortID = 9

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func initShortID() {
	sid = shortid.MustNew(1, uuidABC, 1)
}

// GenUUID returns a short, URL-safe, globally-unique-enough token. No
// other package calls it; the manager's log sink stores records without
// an id and does not deduplicate them.
func GenUUID() string {
	sidOnce.Do(initShortID)
	return sid.MustGenerate()
}

func IsValidUUID(uuid string) bool { return len(uuid) >= LenShortID }

//
// byte/string helpers — avoid a copy on the hot serialization path
//

func UnsafeB(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func UnsafeS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
