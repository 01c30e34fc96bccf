// Package coherence tracks, per page, the local access mode and the lock
// that serializes every transition of that mode. It is the Page Lock Table
// of the coherence engine, shared by the Fault Handler and the Page Server.
package coherence

import "fmt"

// Mode is a page's local access mode.
type Mode int32

const (
	None Mode = iota
	Read
	Write
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}
