//go:build linux

package mboxmmap

import (
	"fmt"
	"testing"
)

func TestAlignWindow(t *testing.T) {
	const page = 0x1000
	testCases := []struct {
		phys        uintptr
		wantAligned uintptr
		wantOff     int
	}{
		{phys: 0x1e789000, wantAligned: 0x1e789000, wantOff: 0},
		{phys: 0x1e789200, wantAligned: 0x1e789000, wantOff: 0x200},
		{phys: 0x1e789fff, wantAligned: 0x1e789000, wantOff: 0xfff},
		{phys: 0x0, wantAligned: 0x0, wantOff: 0},
	}
	for _, tC := range testCases {
		t.Run(fmt.Sprintf("phys=%#x", tC.phys), func(t *testing.T) {
			aligned, off := alignWindow(tC.phys, page)
			if aligned != tC.wantAligned || off != tC.wantOff {
				t.Fatalf("expected (%#x, %#x), got (%#x, %#x)",
					tC.wantAligned, tC.wantOff, aligned, off)
			}
		})
	}
}

func TestBoundsChecks(t *testing.T) {
	// Exercise the window bounds without hardware by constructing the
	// transport over plain memory.
	trp := &Transport{mem: make([]byte, 0x1200), off: 0x200, size: 0x1000}
	if err := trp.WriteByte(0x248, 0x81); err != nil {
		t.Fatal(err)
	}
	got, err := trp.ReadByte(0x248)
	if err != nil || got != 0x81 {
		t.Fatalf("expected 0x81, got %#x err=%v", got, err)
	}
	if _, err := trp.ReadByte(0x1000); err == nil {
		t.Error("read past the window must fail")
	}
	if err := trp.WriteByte(0x1000, 0); err == nil {
		t.Error("write past the window must fail")
	}
}
