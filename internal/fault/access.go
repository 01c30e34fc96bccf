package fault

import (
	"fmt"
	"runtime/debug"
)

// locator maps a faulting address back to a page index, and reports
// whether the address lies in the region at all.
type locator interface {
	PageOf(addr uintptr) (page int, ok bool)
}

// ErrOutOfRegion is the value Access panics with when a fault occurs
// outside the shared region: such a fault is not this component's to
// handle, and must not be swallowed.
type ErrOutOfRegion struct {
	Addr uintptr
}

func (e ErrOutOfRegion) Error() string {
	return fmt.Sprintf("fault: address %#x is outside the shared region", e.Addr)
}

// faultAddresser is the unstable but documented interface the panic value
// from debug.SetPanicOnFault implements: "the runtime.Error ... may have
// an additional method: Addr() uintptr". This is the only avenue Go gives
// a program to recover a faulting address without raw signal hooks.
type faultAddresser interface {
	Addr() uintptr
}

// Access is the trampoline application code routes a raw memory access
// through. It enables fault-to-panic delivery for the calling goroutine,
// runs touch (which must dereference a pointer into the region to trigger
// a real fault on a None-mode page), and if touch faults, resolves the
// owning page and retries touch exactly once. Go cannot resume the
// faulting instruction the way a C signal handler returning does — the
// panic unwinds the frame — so retrying the access from the top is the
// Go-native equivalent of returning to the interrupted instruction, which
// retries and now succeeds.
func (h *Handler) Access(locate locator, touch func() error) (err error) {
	attempt := func() (retry bool, err error) {
		debug.SetPanicOnFault(true)
		defer debug.SetPanicOnFault(false)

		defer func() {
			r := recover()
			if r == nil {
				return
			}

			fa, ok := r.(faultAddresser)
			if !ok {
				panic(r)
			}

			addr := fa.Addr()

			page, inRegion := locate.PageOf(addr)
			if !inRegion {
				panic(ErrOutOfRegion{Addr: addr})
			}

			if resolveErr := h.EnsureWritable(page); resolveErr != nil {
				err = resolveErr

				return
			}

			retry = true
		}()

		return retry, touch()
	}

	retry, err := attempt()
	if err != nil {
		return err
	}
	if !retry {
		return nil
	}

	return touch()
}
