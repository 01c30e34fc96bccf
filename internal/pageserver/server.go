// Package pageserver implements the Page Server: it answers the peer's
// page requests for every page this node currently owns.
package pageserver

import (
	"errors"
	"fmt"
	"io"

	"github.com/shivansh/dsm/internal/coherence"
)

// requester is the narrow slice of *wire.Conn the server needs, kept as an
// interface so tests can serve from an in-memory fake.
type requester interface {
	ReadRequest() (int, error)
	WriteReply([]byte) error
}

// pager is the narrow slice of *region.Region the server needs.
type pager interface {
	ReadPage(page int) ([]byte, error)
}

// table is the narrow slice of *coherence.Table the server needs.
type table interface {
	Lock(page int)
	Unlock(page int)
	Transition(page int, mode coherence.Mode) error
}

// Server serves incoming page requests for the lifetime of the process.
type Server struct {
	conn   requester
	region pager
	table  table
}

// New builds a Server over an established request-in/reply-out connection.
func New(conn requester, r pager, t table) *Server {
	return &Server{conn: conn, region: r, table: t}
}

// Serve reads requests in a loop until the peer disconnects cleanly (nil
// return) or a transport/protection error occurs (fatal, returned to the
// caller).
func (s *Server) Serve() error {
	for {
		page, err := s.conn.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("pageserver: read request: %w", err)
		}

		if err := s.serveOne(page); err != nil {
			return err
		}
	}
}

// serveOne locks the page, marks it Read so a concurrent local reader
// stays coherent with the copy in flight but no local writer can mutate
// it mid-send, sends it, relinquishes it to None, unlocks. Holding the
// lock across the whole sequence is what makes the {responder sets Read
// -> send -> sets None -> requester installs Write} ordering global per
// page.
func (s *Server) serveOne(page int) error {
	s.table.Lock(page)
	defer s.table.Unlock(page)

	if err := s.table.Transition(page, coherence.Read); err != nil {
		return fmt.Errorf("pageserver: page %d: %w", page, err)
	}

	data, err := s.region.ReadPage(page)
	if err != nil {
		return fmt.Errorf("pageserver: page %d: %w", page, err)
	}

	if err := s.conn.WriteReply(data); err != nil {
		return fmt.Errorf("pageserver: page %d: %w", page, err)
	}

	if err := s.table.Transition(page, coherence.None); err != nil {
		return fmt.Errorf("pageserver: page %d: %w", page, err)
	}

	return nil
}
