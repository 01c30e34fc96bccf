package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shivansh/dsm/internal/node"
	"github.com/shivansh/dsm/internal/wire"
)

const defaultPageSize = 4096

var (
	role        string
	numPages    int
	pageSize    int
	baseAddress uint64
	localAddr   string
	remoteAddr  string
)

func parseFlags() {
	flag.StringVar(&role, "role", "", "peer role: primary or secondary")
	flag.IntVar(&numPages, "pages", 0, "number of pages in the shared region")
	flag.IntVar(&pageSize, "page-size", defaultPageSize, "page size in bytes, must match the host")
	flag.Uint64Var(&baseAddress, "base", 0, "fixed virtual base address, 0 picks the default")
	flag.StringVar(&localAddr, "listen", "", "local host:port to bind and listen on")
	flag.StringVar(&remoteAddr, "peer", "", "remote peer host:port to connect to")

	flag.Parse()
}

func parseRole(s string) (wire.Role, error) {
	switch s {
	case "primary":
		return wire.Primary, nil
	case "secondary":
		return wire.Secondary, nil
	default:
		return 0, fmt.Errorf("unknown role %q, want primary or secondary", s)
	}
}

func run() int {
	parseFlags()

	r, err := parseRole(role)
	if err != nil {
		log.Printf("dsm: %v", err)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, node.Config{
		Role:        r,
		NumPages:    numPages,
		PageSize:    pageSize,
		BaseAddress: uintptr(baseAddress),
		LocalAddr:   localAddr,
		RemoteAddr:  remoteAddr,
	})
	if err != nil {
		log.Printf("dsm: start: %v", err)

		return 1
	}

	<-ctx.Done()
	stop()

	if err := n.Shutdown(); err != nil {
		log.Printf("dsm: shutdown: %v", err)

		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
