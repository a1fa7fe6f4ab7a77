//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dma

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// MockProviderConfig configures a MockProvider's failure injection.
type MockProviderConfig struct {
	AllocateErr  error
	ReleaseErr   error
	TranslateErr error
}

// MockProvider implements Provider and BusResolver over plain heap
// allocations, for tests that don't want to touch mmap.
type MockProvider struct {
	cfg MockProviderConfig

	mu            sync.Mutex
	live          map[uintptr]*Buffer
	nextBus       uint64
	AllocateCalls int
	ReleaseCalls  int
}

// NewMockProvider returns a MockProvider with the given config.
func NewMockProvider(cfg *MockProviderConfig) *MockProvider {
	if cfg == nil {
		cfg = &MockProviderConfig{}
	}
	return &MockProvider{
		cfg:     *cfg,
		live:    make(map[uintptr]*Buffer),
		nextBus: busAddressBase,
	}
}

// Allocate returns a heap-backed buffer of exactly size bytes.
func (p *MockProvider) Allocate(size int) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.AllocateCalls++
	if p.cfg.AllocateErr != nil {
		return nil, p.cfg.AllocateErr
	}
	if size <= 0 {
		return nil, errors.Errorf("invalid allocation size %d", size)
	}

	data := make([]byte, size)
	buf := &Buffer{
		data: data,
		virt: uintptr(unsafe.Pointer(&data[0])),
		bus:  p.nextBus,
		layout: Layout{
			Size:      size,
			Alignment: 1,
		},
	}
	p.nextBus += uint64(PageAlign(size))
	p.live[buf.virt] = buf

	return buf, nil
}

// Release drops the buffer from the live set.
func (p *MockProvider) Release(buf *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReleaseCalls++
	if p.cfg.ReleaseErr != nil {
		return p.cfg.ReleaseErr
	}
	if buf == nil {
		return errors.New("nil buffer")
	}
	if live, found := p.live[buf.virt]; !found || live != buf {
		return errors.Errorf("release of unknown buffer at %#x", buf.virt)
	}
	delete(p.live, buf.virt)

	return nil
}

// Translate resolves a virtual address inside a live buffer to its
// bus address.
func (p *MockProvider) Translate(virt uintptr) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.TranslateErr != nil {
		return 0, p.cfg.TranslateErr
	}
	for base, buf := range p.live {
		if virt >= base && virt < base+uintptr(buf.layout.Size) {
			return buf.bus + uint64(virt-base), nil
		}
	}

	return 0, errors.Errorf("no live mapping contains address %#x", virt)
}

// Resolve hands back the memory behind a bus address range.
func (p *MockProvider) Resolve(bus uint64, length int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, buf := range p.live {
		if bus >= buf.bus && bus+uint64(length) <= buf.bus+uint64(buf.layout.Size) {
			offset := bus - buf.bus
			return buf.data[offset : offset+uint64(length)], nil
		}
	}

	return nil, errors.Errorf("no live mapping contains bus range %#x+%#x", bus, length)
}

// LiveCount returns the number of live buffers.
func (p *MockProvider) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
