// Package fault implements the Fault Handler: the fault-driven pull of a
// page from the remote owner, and the Go-native trampoline application
// code routes its raw memory access through to trigger that pull.
package fault

import (
	"fmt"

	"github.com/shivansh/dsm/internal/coherence"
)

// requester is the narrow slice of *wire.Conn the handler needs.
type requester interface {
	WriteRequest(page int) error
	ReadReply(size int) ([]byte, error)
}

// pager is the narrow slice of *region.Region the handler needs.
type pager interface {
	PageSize() int
	WritePage(page int, data []byte) error
}

// table is the narrow slice of *coherence.Table the handler needs.
type table interface {
	Lock(page int)
	Unlock(page int)
	Mode(page int) coherence.Mode
	Transition(page int, mode coherence.Mode) error
}

// Handler resolves local faults by pulling pages from the peer.
type Handler struct {
	conn   requester
	region pager
	table  table
}

// New builds a Handler over an established request-out/reply-in
// connection.
func New(conn requester, r pager, t table) *Handler {
	return &Handler{conn: conn, region: r, table: t}
}

// EnsureWritable guarantees that, on return, page p is locally in Write
// mode, pulling it from the peer first if necessary. It is the core,
// host-independent pull algorithm — the part of the Fault Handler that is
// unit-testable without a real page fault.
func (h *Handler) EnsureWritable(p int) error {
	h.table.Lock(p)
	defer h.table.Unlock(p)

	if h.table.Mode(p) == coherence.Write {
		// A write on an already-owned page touches zero transport
		// activity.
		return nil
	}

	if err := h.conn.WriteRequest(p); err != nil {
		return fmt.Errorf("fault: request page %d: %w", p, err)
	}

	data, err := h.conn.ReadReply(h.region.PageSize())
	if err != nil {
		return fmt.Errorf("fault: receive page %d: %w", p, err)
	}

	if err := h.table.Transition(p, coherence.Write); err != nil {
		return fmt.Errorf("fault: page %d: %w", p, err)
	}

	if err := h.region.WritePage(p, data); err != nil {
		return fmt.Errorf("fault: install page %d: %w", p, err)
	}

	return nil
}
