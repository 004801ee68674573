//go:build linux

// package mboxmmap accesses the mailbox register bank through a
// /dev/mem mapping. It implements lpcmbox.RegisterTransport for hosts
// where the bank is memory mapped, the usual arrangement on a BMC.
package mboxmmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Transport maps a physical register window read-write and performs
// byte-granular access against it. Create with Open, release with
// Close.
type Transport struct {
	f   *os.File
	mem []byte
	// off is the offset of the requested window within the
	// page-aligned mapping.
	off  int
	size int
}

// Open maps size bytes of physical address space starting at phys.
// The mapping is widened to page alignment as mmap requires; accesses
// are still bounds-checked against the requested window only.
func Open(phys uintptr, size int) (*Transport, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid window size %d", size)
	}
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/mem: %w", err)
	}
	page := uintptr(unix.Getpagesize())
	aligned, off := alignWindow(phys, page)
	mem, err := unix.Mmap(int(f.Fd()), int64(aligned), off+size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mapping 0x%x: %w", phys, err)
	}
	return &Transport{f: f, mem: mem, off: off, size: size}, nil
}

// alignWindow returns the page-aligned base below phys and the offset
// of phys within it.
func alignWindow(phys, page uintptr) (aligned uintptr, off int) {
	aligned = phys &^ (page - 1)
	return aligned, int(phys - aligned)
}

// ReadByte reads the register at window offset addr.
func (t *Transport) ReadByte(addr uint32) (byte, error) {
	if int(addr) >= t.size {
		return 0, fmt.Errorf("register 0x%x outside mapped window", addr)
	}
	return t.mem[t.off+int(addr)], nil
}

// WriteByte writes b to the register at window offset addr.
func (t *Transport) WriteByte(addr uint32, b byte) error {
	if int(addr) >= t.size {
		return fmt.Errorf("register 0x%x outside mapped window", addr)
	}
	t.mem[t.off+int(addr)] = b
	return nil
}

// Close unmaps the window and closes /dev/mem.
func (t *Transport) Close() error {
	err := unix.Munmap(t.mem)
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}
