//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

import (
	"fmt"
	"sync"

	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
)

// DeviceAllocator tracks every DMA-capable allocation made on behalf
// of the protocol engine, keyed by virtual address, so that each one
// can be reversed exactly once on deallocation. It implements the
// Allocator capability consumed by the engine and is also used
// directly by the driver for transfer staging buffers.
//
// The table lock is held only for table mutations, never across an
// underlying memory operation's failure handling, and nothing blocking
// is done while it is held.
type DeviceAllocator struct {
	log      logging.Logger
	provider dma.Provider

	mu          sync.Mutex
	allocations map[uintptr]*dma.Buffer
}

// NewDeviceAllocator returns a DeviceAllocator obtaining memory from
// the given provider.
func NewDeviceAllocator(log logging.Logger, provider dma.Provider) *DeviceAllocator {
	return &DeviceAllocator{
		log:         log,
		provider:    provider,
		allocations: make(map[uintptr]*dma.Buffer),
	}
}

// AllocateBuffer obtains a page-aligned DMA-capable buffer of exactly
// size bytes and records it in the allocation table.
func (a *DeviceAllocator) AllocateBuffer(size int) (*dma.Buffer, error) {
	buf, err := a.provider.Allocate(size)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.allocations[buf.Address()] = buf
	a.mu.Unlock()

	a.log.Debugf("nvme: allocate size %#x at %#x", size, buf.Address())

	return buf, nil
}

// ReleaseBuffer releases a staging buffer obtained from AllocateBuffer.
func (a *DeviceAllocator) ReleaseBuffer(buf *dma.Buffer) {
	a.Deallocate(buf.Address())
}

// Allocate implements the Allocator capability: the protocol engine
// receives the buffer's virtual address as an opaque integer handle.
func (a *DeviceAllocator) Allocate(size int) (uintptr, error) {
	buf, err := a.AllocateBuffer(size)
	if err != nil {
		return 0, err
	}
	return buf.Address(), nil
}

// Deallocate removes the allocation record for addr and releases the
// underlying memory using the recorded layout. Deallocating an address
// with no record is an internal-consistency violation and panics: the
// engine only ever frees addresses it was given, so an unknown address
// means the shared memory model has diverged and continuing would risk
// corrupting physical memory.
func (a *DeviceAllocator) Deallocate(addr uintptr) {
	a.mu.Lock()
	buf, found := a.allocations[addr]
	if found {
		delete(a.allocations, addr)
	}
	a.mu.Unlock()

	if !found {
		panic(fmt.Sprintf("nvme: deallocate of untracked address %#x", addr))
	}

	a.log.Debugf("nvme: deallocate address %#x", addr)

	if err := a.provider.Release(buf); err != nil {
		a.log.Errorf("nvme: release of %#x failed: %s", addr, err)
	}
}

// Translate converts a previously allocated virtual address to its bus
// address. The address must currently be mapped; it always is for
// allocator-provided addresses, so a failed translation panics for the
// same reason an unknown deallocation does.
func (a *DeviceAllocator) Translate(addr uintptr) uint64 {
	bus, err := a.provider.Translate(addr)
	if err != nil {
		panic(fmt.Sprintf("nvme: translate of unmapped address %#x: %s", addr, err))
	}

	return bus
}

// LiveAllocations returns the number of tracked allocations.
func (a *DeviceAllocator) LiveAllocations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocations)
}
