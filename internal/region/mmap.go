package region

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapFixed maps length bytes of anonymous, private memory at the fixed
// address base. unix.Mmap never exposes a caller-chosen address, so a
// fixed mapping has to go through the raw syscall directly.
func mmapFixed(base uintptr, length int) ([]byte, error) {
	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		base,
		uintptr(length),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_FIXED),
		^uintptr(0), // fd: -1
		0,
	)
	if errno != 0 {
		return nil, fmt.Errorf("mmap: %w", errno)
	}
	if addr != base {
		return nil, fmt.Errorf("mmap: kernel ignored MAP_FIXED, got %#x want %#x", addr, base)
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length), nil
}
