package coherence

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/shivansh/dsm/internal/region"
)

// protector is the subset of *region.Region the Table needs. A narrow
// interface keeps the table unit-testable without a real mmap'd region.
type protector interface {
	Protect(page int, prot region.Prot) error
}

// Table is the Page Lock Table: one mutex per page, guarding that page's
// access mode. Both the Fault Handler and the Page Server acquire a page's
// lock before calling Transition, so the pair {host protection bits, mode}
// never diverges and never needs its own separate lock.
type Table struct {
	region protector
	locks  []sync.Mutex
	modes  []Mode

	// resident tracks, per page, whether the local mode is not None. It is
	// a read-side convenience for diagnostics (see Stats), not a second
	// source of truth: every write goes through Transition, which updates
	// modes and resident together.
	resident   *bitset.BitSet
	residentMu sync.Mutex
}

// New creates a Table for numPages pages, each starting in initial[i].
func New(r protector, initial []Mode) *Table {
	t := &Table{
		region:   r,
		locks:    make([]sync.Mutex, len(initial)),
		modes:    make([]Mode, len(initial)),
		resident: bitset.New(uint(len(initial))),
	}

	copy(t.modes, initial)
	for p, m := range initial {
		if m != None {
			t.resident.Set(uint(p))
		}
	}

	return t
}

// NumPages returns the number of pages tracked by the table.
func (t *Table) NumPages() int { return len(t.modes) }

// Lock acquires page p's lock. Callers must release it with Unlock.
func (t *Table) Lock(p int) { t.locks[p].Lock() }

// Unlock releases page p's lock.
func (t *Table) Unlock(p int) { t.locks[p].Unlock() }

// Mode returns page p's current mode. The caller must hold p's lock.
func (t *Table) Mode(p int) Mode { return t.modes[p] }

// Transition applies mode to page p's host protection bits and then to the
// in-memory mode, atomically from the point of view of any other holder of
// p's lock. The caller must already hold p's lock.
func (t *Table) Transition(p int, mode Mode) error {
	var prot region.Prot

	switch mode {
	case None:
		prot = region.ProtNone
	case Read:
		prot = region.ProtRead
	case Write:
		prot = region.ProtWrite
	default:
		return fmt.Errorf("coherence: unknown mode %v", mode)
	}

	if err := t.region.Protect(p, prot); err != nil {
		return fmt.Errorf("coherence: transition page %d to %v: %w", p, mode, err)
	}

	t.modes[p] = mode

	t.residentMu.Lock()
	if mode == None {
		t.resident.Clear(uint(p))
	} else {
		t.resident.Set(uint(p))
	}
	t.residentMu.Unlock()

	return nil
}

// ResidentCount returns the number of pages currently held locally in Read
// or Write mode.
func (t *Table) ResidentCount() uint {
	t.residentMu.Lock()
	defer t.residentMu.Unlock()

	return t.resident.Count()
}

// InitialSplit computes the initial per-page modes for a node, matching the
// source's bias: the secondary owns the first half in Write, the primary
// the mirror half; numPages/2 rounds toward the secondary on odd counts.
func InitialSplit(numPages int, isSecondary bool) []Mode {
	modes := make([]Mode, numPages)
	half := numPages / 2

	for p := 0; p < numPages; p++ {
		secondaryOwns := p < half
		if secondaryOwns == isSecondary {
			modes[p] = Write
		} else {
			modes[p] = None
		}
	}

	return modes
}
