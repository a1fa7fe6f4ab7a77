//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dma

import (
	"os"
	"sync"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/kestrel-os/kestrel/src/storage/logging"
)

// busAddressBase is the first bus address handed out by a MmapProvider.
// Nonzero so that a zero bus address can never name a live buffer.
const busAddressBase = 0x10000000

// MmapProvider implements Provider on top of anonymous memory
// mappings. Mappings are page-aligned by construction and locked into
// memory where permitted, which approximates the stable-residency
// guarantee device DMA needs on a hosted target. Bus addresses are
// synthesized from a private address space; Translate is total over
// live buffers and fails for anything else.
type MmapProvider struct {
	log logging.Logger

	mu      sync.Mutex
	live    map[uintptr]*Buffer
	nextBus uint64
}

// NewMmapProvider returns a Provider backed by anonymous mmap.
func NewMmapProvider(log logging.Logger) *MmapProvider {
	return &MmapProvider{
		log:     log,
		live:    make(map[uintptr]*Buffer),
		nextBus: busAddressBase,
	}
}

// Allocate maps size bytes of page-aligned anonymous memory.
func (p *MmapProvider) Allocate(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid allocation size %d", size)
	}

	mapLen := PageAlign(size)
	mapping, err := unix.Mmap(-1, 0, mapLen,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", humanize.IBytes(uint64(mapLen)))
	}

	// Pinning can fail under a constrained RLIMIT_MEMLOCK; the
	// mapping is still usable, just not guaranteed resident.
	if err := unix.Mlock(mapping); err != nil {
		p.log.Debugf("mlock of %s buffer failed: %s",
			humanize.IBytes(uint64(mapLen)), err)
	}

	buf := &Buffer{
		mapping: mapping,
		data:    mapping[:size],
		virt:    uintptr(unsafe.Pointer(&mapping[0])),
		layout: Layout{
			Size:      size,
			Alignment: os.Getpagesize(),
		},
	}

	p.mu.Lock()
	buf.bus = p.nextBus
	p.nextBus += uint64(mapLen)
	p.live[buf.virt] = buf
	p.mu.Unlock()

	p.log.Debugf("dma: allocated %s at %#x (bus %#x)",
		humanize.IBytes(uint64(size)), buf.virt, buf.bus)

	return buf, nil
}

// Release unmaps a previously allocated buffer.
func (p *MmapProvider) Release(buf *Buffer) error {
	if buf == nil {
		return errors.New("nil buffer")
	}

	p.mu.Lock()
	live, found := p.live[buf.virt]
	if found && live == buf {
		delete(p.live, buf.virt)
	} else {
		found = false
	}
	p.mu.Unlock()

	if !found {
		return errors.Errorf("release of unknown buffer at %#x", buf.virt)
	}

	mapping := buf.mapping
	buf.mapping = nil
	buf.data = nil
	if err := unix.Munmap(mapping); err != nil {
		return errors.Wrapf(err, "munmap %#x", buf.virt)
	}

	p.log.Debugf("dma: released %s at %#x",
		humanize.IBytes(uint64(buf.layout.Size)), buf.virt)

	return nil
}

// Translate resolves a virtual address inside a live buffer to its
// bus address.
func (p *MmapProvider) Translate(virt uintptr) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for base, buf := range p.live {
		if virt >= base && virt < base+uintptr(buf.layout.Size) {
			return buf.bus + uint64(virt-base), nil
		}
	}

	return 0, errors.Errorf("no live mapping contains address %#x", virt)
}

// Resolve hands back the memory behind a bus address range; used by
// device doubles standing in for bus-mastering hardware.
func (p *MmapProvider) Resolve(bus uint64, length int) ([]byte, error) {
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
func (p *MmapProvider) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
