//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package dma provides page-aligned, bus-addressable memory suitable
// for device DMA. It is the seam between the storage drivers and the
// kernel's virtual-memory subsystem: drivers obtain buffers through a
// Provider and hand out bus addresses obtained via Translate, never
// raw pointers.
package dma

import (
	"os"
)

type (
	// Layout describes the size and alignment of an allocation.
	Layout struct {
		Size      int
		Alignment int
	}

	// Buffer is a live DMA-capable allocation. The virtual base is
	// page-aligned and the backing pages stay resident for the
	// lifetime of the buffer.
	Buffer struct {
		mapping []byte
		data    []byte
		virt    uintptr
		bus     uint64
		layout  Layout
	}

	// Provider supplies DMA-capable memory and virtual-to-bus
	// address translation for the buffers it has allocated.
	Provider interface {
		// Allocate returns a page-aligned buffer of exactly size bytes.
		Allocate(size int) (*Buffer, error)
		// Release returns the buffer's memory. Releasing a buffer
		// that is not live is an error.
		Release(*Buffer) error
		// Translate converts a virtual address inside a live buffer
		// to its bus address.
		Translate(virt uintptr) (uint64, error)
	}

	// BusResolver is implemented by providers that can hand back the
	// memory behind a bus address. Device doubles use it to emulate
	// bus-mastering access to buffers they were given addresses for.
	BusResolver interface {
		Resolve(bus uint64, length int) ([]byte, error)
	}
)

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Address returns the buffer's virtual base address.
func (b *Buffer) Address() uintptr {
	return b.virt
}

// BusAddress returns the buffer's bus base address.
func (b *Buffer) BusAddress() uint64 {
	return b.bus
}

// Layout returns the layout the buffer was allocated with.
func (b *Buffer) Layout() Layout {
	return b.layout
}

// Size returns the usable buffer size in bytes.
func (b *Buffer) Size() int {
	return b.layout.Size
}

// PageAlign rounds size up to the next multiple of the system page size.
func PageAlign(size int) int {
	pageSize := os.Getpagesize()
	return (size + pageSize - 1) &^ (pageSize - 1)
}
