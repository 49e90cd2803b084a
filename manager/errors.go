package manager

import "fmt"

// ErrUnknownElement is returned by RequestPeers when the requested
// instance's kernel is not declared in the topology at all (spec.md §8
// "Unknown" scenario: "RequestPeers{name=\"does_not_exist\"} returns
// ERROR with the name in the message").
type ErrUnknownElement struct{ Name string }

func (e *ErrUnknownElement) Error() string { return fmt.Sprintf("unknown compute element: %q", e.Name) }
