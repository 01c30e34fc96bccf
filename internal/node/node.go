// Package node wires the Region Manager, Page Lock Table, Fault Handler,
// Page Server, and Transport together and exposes the application API:
// initialize, base address, access, shutdown.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/shivansh/dsm/internal/coherence"
	"github.com/shivansh/dsm/internal/fault"
	"github.com/shivansh/dsm/internal/pageserver"
	"github.com/shivansh/dsm/internal/region"
	"github.com/shivansh/dsm/internal/wire"
)

// Config configures a single node. BaseAddress and NumPages must be
// identical on both peers; Role is the only asymmetry.
type Config struct {
	Role        wire.Role
	NumPages    int
	PageSize    int
	BaseAddress uintptr

	LocalAddr  string
	RemoteAddr string
}

// Node is the running coherence engine for one of the two peers.
type Node struct {
	region  *region.Region
	table   *coherence.Table
	peers   *wire.Peers
	server  *pageserver.Server
	handler *fault.Handler

	group *errgroup.Group
}

// New reserves the region, applies the initial protection split, bootstraps
// the transport, and starts the Page Server. It returns once the peer is
// connected and the server goroutine is running.
func New(ctx context.Context, cfg Config) (*Node, error) {
	if cfg.NumPages <= 0 {
		return nil, fmt.Errorf("node: numPages must be positive, got %d", cfg.NumPages)
	}

	base := cfg.BaseAddress
	if base == 0 {
		base = region.DefaultBaseAddress
	}

	r, err := region.Reserve(region.Config{
		BaseAddress: base,
		NumPages:    cfg.NumPages,
		PageSize:    cfg.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("node: reserve region: %w", err)
	}

	isSecondary := cfg.Role == wire.Secondary
	initial := coherence.InitialSplit(cfg.NumPages, isSecondary)

	t := coherence.New(r, initial)

	// Reserve already mapped every page read-write, so only the half this
	// node does not own needs tightening, and it is contiguous: a single
	// mprotect call covers it, rather than one Transition per page.
	half := cfg.NumPages / 2
	noneStart, noneCount := 0, half
	if isSecondary {
		noneStart, noneCount = half, cfg.NumPages-half
	}

	if err := r.ProtectRange(noneStart, noneCount, region.ProtNone); err != nil {
		_ = r.Close()

		return nil, fmt.Errorf("node: apply initial split: %w", err)
	}

	peers, err := wire.Bootstrap(ctx, cfg.Role, wire.Endpoints{
		LocalAddr:  cfg.LocalAddr,
		RemoteAddr: cfg.RemoteAddr,
	})
	if err != nil {
		_ = r.Close()

		return nil, fmt.Errorf("node: bootstrap transport: %w", err)
	}

	server := pageserver.New(peers.In, r, t)
	handler := fault.New(peers.Out, r, t)

	var g errgroup.Group

	g.Go(func() error {
		if err := server.Serve(); err != nil {
			return fmt.Errorf("node: page server: %w", err)
		}

		return nil
	})

	n := &Node{
		region:  r,
		table:   t,
		peers:   peers,
		server:  server,
		handler: handler,
		group:   &g,
	}

	log.Printf("dsm: %s node ready, base=%#x pages=%d", cfg.Role, r.BaseAddress(), r.NumPages())

	return n, nil
}

// BaseAddress returns the region's fixed base address.
func (n *Node) BaseAddress() uintptr { return n.region.BaseAddress() }

// PageSize returns the host page size the region was reserved with.
func (n *Node) PageSize() int { return n.region.PageSize() }

// Access routes the raw memory access made by touch through the Fault
// Handler's trampoline, pulling the owning page from the peer first if needed. See
// fault.Handler.Access for the full contract.
func (n *Node) Access(touch func() error) error {
	return n.handler.Access(n.region, touch)
}

// Stats reports lightweight lifecycle diagnostics.
type Stats struct {
	ResidentPages uint
	TotalPages    int
}

// Stats returns the current resident page count, for logging at shutdown
// or on a monitoring tick.
func (n *Node) Stats() Stats {
	return Stats{
		ResidentPages: n.table.ResidentCount(),
		TotalPages:    n.table.NumPages(),
	}
}

// Shutdown closes the transport and unmaps the region. No attempt is made
// to drain in-flight requests or notify the peer; the peer observes EOF
// and exits on its own. Shutdown stops the Page Server goroutine as a
// side effect of closing its connection, and joins it before returning.
func (n *Node) Shutdown() error {
	closeErr := n.peers.Close()
	serverErr := n.group.Wait()
	if errors.Is(serverErr, net.ErrClosed) {
		// The server's read failed because we closed its connection above.
		serverErr = nil
	}
	regionErr := n.region.Close()

	stats := n.Stats()
	log.Printf("dsm: shutdown, resident=%d/%d", stats.ResidentPages, stats.TotalPages)

	for _, err := range []error{closeErr, serverErr, regionErr} {
		if err != nil {
			return fmt.Errorf("node: shutdown: %w", err)
		}
	}

	return nil
}
