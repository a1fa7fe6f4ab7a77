//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dma_test

import (
	"os"
	"testing"

	"github.com/pkg/errors"

	"github.com/kestrel-os/kestrel/src/storage/common/test"
	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
)

func TestDma_PageAlign(t *testing.T) {
	pageSize := os.Getpagesize()

	for name, tc := range map[string]struct {
		size     int
		expected int
	}{
		"single byte":    {size: 1, expected: pageSize},
		"exactly a page": {size: pageSize, expected: pageSize},
		"page plus one":  {size: pageSize + 1, expected: 2 * pageSize},
	} {
		t.Run(name, func(t *testing.T) {
			test.AssertEqual(t, tc.expected, dma.PageAlign(tc.size), "")
		})
	}
}

func TestDma_MmapProvider_Allocate(t *testing.T) {
	log, _ := logging.NewTestLogger(t.Name())
	provider := dma.NewMmapProvider(log)

	buf, err := provider.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Release(buf)

	test.AssertEqual(t, 100, buf.Size(), "unexpected buffer size")
	test.AssertEqual(t, 100, len(buf.Bytes()), "unexpected contents length")
	test.AssertEqual(t, uintptr(0), buf.Address()%uintptr(os.Getpagesize()),
		"buffer not page-aligned")
	test.AssertEqual(t, 1, provider.LiveCount(), "unexpected live count")
}

func TestDma_MmapProvider_AllocateBadSize(t *testing.T) {
	log, _ := logging.NewTestLogger(t.Name())
	provider := dma.NewMmapProvider(log)

	for name, size := range map[string]int{
		"zero":     0,
		"negative": -1,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := provider.Allocate(size)
			test.CmpErr(t, errors.New("invalid allocation size"), err)
		})
	}
}

func TestDma_MmapProvider_Translate(t *testing.T) {
	log, _ := logging.NewTestLogger(t.Name())
	provider := dma.NewMmapProvider(log)

	buf, err := provider.Allocate(512)
	if err != nil {
		t.Fatal(err)
	}

	base, err := provider.Translate(buf.Address())
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, buf.BusAddress(), base, "unexpected base translation")

	offset, err := provider.Translate(buf.Address() + 17)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, buf.BusAddress()+17, offset, "unexpected offset translation")

	if err := provider.Release(buf); err != nil {
		t.Fatal(err)
	}

	_, err = provider.Translate(buf.Address())
	test.CmpErr(t, errors.New("no live mapping"), err)
}

func TestDma_MmapProvider_ReleaseUnknown(t *testing.T) {
	log, _ := logging.NewTestLogger(t.Name())
	provider := dma.NewMmapProvider(log)

	buf, err := provider.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}

	if err := provider.Release(buf); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, 0, provider.LiveCount(), "unexpected live count")

	test.CmpErr(t, errors.New("release of unknown buffer"), provider.Release(buf))
}

func TestDma_MmapProvider_UniqueAddresses(t *testing.T) {
	log, _ := logging.NewTestLogger(t.Name())
	provider := dma.NewMmapProvider(log)

	seenVirt := make(map[uintptr]struct{})
	seenBus := make(map[uint64]struct{})
	bufs := make([]*dma.Buffer, 0, 8)

	for i := 0; i < 8; i++ {
		buf, err := provider.Allocate(4096)
		if err != nil {
			t.Fatal(err)
		}
		if _, found := seenVirt[buf.Address()]; found {
			t.Fatalf("duplicate virtual address %#x", buf.Address())
		}
		if _, found := seenBus[buf.BusAddress()]; found {
			t.Fatalf("duplicate bus address %#x", buf.BusAddress())
		}
		seenVirt[buf.Address()] = struct{}{}
		seenBus[buf.BusAddress()] = struct{}{}
		bufs = append(bufs, buf)
	}

	for _, buf := range bufs {
		if err := provider.Release(buf); err != nil {
			t.Fatal(err)
		}
	}
	test.AssertEqual(t, 0, provider.LiveCount(), "unexpected live count")
}
