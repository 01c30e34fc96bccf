// Package region reserves the shared virtual memory region and mediates
// host-level protection changes on it. It is the Region Manager of the
// coherence engine: everything else in this module talks to memory only
// through a Region.
package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultBaseAddress is the fixed virtual address both peers must agree on.
// The hardcoded address lets raw pointers embedded in the shared region mean
// the same page on either side; see DESIGN.md for the accepted fragility.
const DefaultBaseAddress uintptr = 1 << 30

// Prot mirrors the host protection bits a page can carry.
type Prot int

const (
	ProtNone  Prot = unix.PROT_NONE
	ProtRead  Prot = unix.PROT_READ
	ProtWrite Prot = unix.PROT_READ | unix.PROT_WRITE
)

// Config describes the region to reserve.
type Config struct {
	// BaseAddress is the fixed virtual address for the region. Both peers
	// must be started with the same value.
	BaseAddress uintptr
	NumPages    int
	PageSize    int
}

// Region is the reserved, page-granular shared memory segment.
type Region struct {
	base     uintptr
	pageSize int
	numPages int
	mem      []byte
}

// Reserve maps numPages*pageSize bytes of anonymous memory at the fixed
// base address and returns a Region with every page initially read-write
// at the host mapping layer (callers tighten protection per page next).
func Reserve(cfg Config) (*Region, error) {
	if cfg.NumPages <= 0 {
		return nil, fmt.Errorf("region: numPages must be positive, got %d", cfg.NumPages)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("region: pageSize must be positive, got %d", cfg.PageSize)
	}

	length := cfg.NumPages * cfg.PageSize

	mem, err := mmapFixed(cfg.BaseAddress, length)
	if err != nil {
		return nil, fmt.Errorf("region: reserve at %#x: %w", cfg.BaseAddress, err)
	}

	return &Region{
		base:     cfg.BaseAddress,
		pageSize: cfg.PageSize,
		numPages: cfg.NumPages,
		mem:      mem,
	}, nil
}

// BaseAddress returns the fixed base address of the region.
func (r *Region) BaseAddress() uintptr { return r.base }

// PageSize returns the host page size this region was reserved with.
func (r *Region) PageSize() int { return r.pageSize }

// NumPages returns the number of pages in the region.
func (r *Region) NumPages() int { return r.numPages }

// PageOf returns the page index that addr falls into, and whether addr
// lies within the region at all.
func (r *Region) PageOf(addr uintptr) (page int, ok bool) {
	if addr < r.base {
		return 0, false
	}

	offset := addr - r.base
	if offset >= uintptr(r.numPages*r.pageSize) {
		return 0, false
	}

	return int(offset / uintptr(r.pageSize)), true
}

func (r *Region) slice(page int) []byte {
	start := page * r.pageSize
	return r.mem[start : start+r.pageSize]
}

func (r *Region) sliceRange(start, count int) []byte {
	from := start * r.pageSize
	to := from + count*r.pageSize
	return r.mem[from:to]
}

// Protect applies prot to the given page's host mapping.
func (r *Region) Protect(page int, prot Prot) error {
	if page < 0 || page >= r.numPages {
		return fmt.Errorf("region: page %d out of range [0, %d)", page, r.numPages)
	}

	if err := unix.Mprotect(r.slice(page), int(prot)); err != nil {
		return fmt.Errorf("region: mprotect page %d to %v: %w", page, prot, err)
	}

	return nil
}

// ProtectRange applies prot to pages [start, start+count) in a single
// mprotect call, rather than one syscall per page. Useful for the initial
// ownership split, which always tightens one contiguous half of the
// region at once.
func (r *Region) ProtectRange(start, count int, prot Prot) error {
	if count == 0 {
		return nil
	}
	if start < 0 || count < 0 || start+count > r.numPages {
		return fmt.Errorf("region: range [%d, %d) out of bounds [0, %d)", start, start+count, r.numPages)
	}

	if err := unix.Mprotect(r.sliceRange(start, count), int(prot)); err != nil {
		return fmt.Errorf("region: mprotect range [%d, %d) to %v: %w", start, start+count, prot, err)
	}

	return nil
}

// ReadPage copies the current contents of page into a freshly allocated
// slice of length PageSize.
func (r *Region) ReadPage(page int) ([]byte, error) {
	if page < 0 || page >= r.numPages {
		return nil, fmt.Errorf("region: page %d out of range [0, %d)", page, r.numPages)
	}

	out := make([]byte, r.pageSize)
	copy(out, r.slice(page))

	return out, nil
}

// WritePage overwrites page with data, which must be exactly PageSize bytes.
func (r *Region) WritePage(page int, data []byte) error {
	if page < 0 || page >= r.numPages {
		return fmt.Errorf("region: page %d out of range [0, %d)", page, r.numPages)
	}
	if len(data) != r.pageSize {
		return fmt.Errorf("region: page %d write needs %d bytes, got %d", page, r.pageSize, len(data))
	}

	copy(r.slice(page), data)

	return nil
}

// Close unmaps the region. The region must not be used afterwards.
func (r *Region) Close() error {
	if err := unix.Munmap(r.mem); err != nil {
		return fmt.Errorf("region: munmap: %w", err)
	}

	return nil
}
