//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/kestrel-os/kestrel/src/storage/common/test"
	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
)

type testDriverSetup struct {
	driver     *Driver
	backend    *MockBackend
	controller *MockController
	provider   *dma.MockProvider
}

func testDriver(t *testing.T, cfg *MockBackendConfig) *testDriverSetup {
	t.Helper()

	if cfg == nil {
		cfg = &MockBackendConfig{}
	}
	if cfg.Namespaces == nil {
		cfg.Namespaces = []Namespace{MockNamespace(1), MockNamespace(2)}
	}

	log, _ := logging.NewTestLogger(t.Name())
	backend := NewMockBackend(cfg)
	provider := dma.NewMockProvider(nil)

	driver, err := NewDriver(log, DefaultMockPCIDevice(), backend, provider, 2)
	if err != nil {
		t.Fatal(err)
	}

	return &testDriverSetup{
		driver:     driver,
		backend:    backend,
		controller: backend.Controller,
		provider:   provider,
	}
}

func TestNvme_NewDriver(t *testing.T) {
	for name, tc := range map[string]struct {
		device  *MockPCIDevice
		cfg     *MockBackendConfig
		expErr  error
		expLine uint8
	}{
		"success": {
			device:  DefaultMockPCIDevice(),
			expLine: 11,
		},
		"bar map failure": {
			device: &MockPCIDevice{BarMapFails: true, IRQ: 11},
			expErr: FaultBarMapFailed(0),
		},
		"controller rejected": {
			device: DefaultMockPCIDevice(),
			cfg:    &MockBackendConfig{InitErr: errors.New("unsupported controller")},
			expErr: FaultControllerInitFailed(errors.New("unsupported controller")),
		},
		"no interrupt line": {
			device: &MockPCIDevice{BarBase: 0xfebf0000, BarSize: 0x4000, NoIRQ: true},
			expErr: FaultNoInterruptLine,
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, _ := logging.NewTestLogger(t.Name())

			driver, gotErr := NewDriver(log, tc.device, NewMockBackend(tc.cfg),
				dma.NewMockProvider(nil), 2)

			test.CmpErr(t, tc.expErr, gotErr)
			if tc.expErr != nil {
				return
			}
			test.AssertEqual(t, tc.expLine, driver.InterruptLine(),
				"unexpected interrupt line")
		})
	}
}

func TestNvme_Driver_NamespaceCount(t *testing.T) {
	for name, tc := range map[string]struct {
		cfg      *MockBackendConfig
		expCount int
		expErr   error
	}{
		"two namespaces": {
			expCount: 2,
		},
		"no namespaces": {
			cfg:      &MockBackendConfig{Namespaces: []Namespace{}},
			expCount: 0,
		},
		"identify failure": {
			cfg:    &MockBackendConfig{IdentifyErr: errors.New("admin queue timeout")},
			expErr: FaultIdentifyFailed(errors.New("admin queue timeout")),
		},
	} {
		t.Run(name, func(t *testing.T) {
			ts := testDriver(t, tc.cfg)

			gotCount, gotErr := ts.driver.NamespaceCount()
			test.CmpErr(t, tc.expErr, gotErr)
			if tc.expErr != nil {
				return
			}
			test.AssertEqual(t, tc.expCount, gotCount, "unexpected namespace count")
		})
	}
}

func TestNvme_Driver_NamespaceByteSize(t *testing.T) {
	ns := MockNamespace(3)

	for name, tc := range map[string]struct {
		index   int
		expSize uint64
		expErr  error
	}{
		"valid index":    {index: 0, expSize: ns.ByteSize()},
		"negative index": {index: -1, expErr: FaultNamespaceNotFound(-1, 1)},
		"out of range":   {index: 1, expErr: FaultNamespaceNotFound(1, 1)},
	} {
		t.Run(name, func(t *testing.T) {
			ts := testDriver(t, &MockBackendConfig{Namespaces: []Namespace{ns}})

			gotSize, gotErr := ts.driver.NamespaceByteSize(tc.index)
			test.CmpErr(t, tc.expErr, gotErr)
			if tc.expErr != nil {
				return
			}
			test.AssertEqual(t, tc.expSize, gotSize, "unexpected namespace size")
		})
	}
}

func TestNvme_Driver_QueuePairLifecycle(t *testing.T) {
	ts := testDriver(t, nil)

	id, err := ts.driver.CreateIOQueuePair(1, 8)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, QueuePairID(0), id, "unexpected queue pair id")

	// Namespace descriptors are fetched fresh for the create.
	test.AssertEqual(t, 1, ts.controller.IdentifyCalls, "expected an identify per create")
	test.AssertEqual(t, uint32(2), ts.controller.Pairs[0].Namespace.ID,
		"queue pair bound to wrong namespace")

	if err := ts.driver.DeleteIOQueuePair(id); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, 1, ts.controller.DeleteCalls, "unexpected delete call count")

	test.CmpErr(t, FaultQueuePairNotFound(id), ts.driver.DeleteIOQueuePair(id))
}

func TestNvme_Driver_CreateQueuePairBadNamespace(t *testing.T) {
	ts := testDriver(t, nil)

	_, err := ts.driver.CreateIOQueuePair(5, 8)
	test.CmpErr(t, FaultNamespaceNotFound(5, 2), err)
	test.AssertEqual(t, 0, ts.controller.CreateCalls, "controller called for bad namespace")
}

func TestNvme_Driver_WriteStaging(t *testing.T) {
	ts := testDriver(t, nil)

	id, err := ts.driver.CreateIOQueuePair(0, 8)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("on-disk bytes")
	if err := ts.driver.WriteToIOQueuePair(id, payload, 42); err != nil {
		t.Fatal(err)
	}

	qp := ts.controller.Pairs[0]
	test.AssertEqual(t, 1, qp.WriteCalls, "unexpected write call count")
	test.AssertEqual(t, len(payload), qp.LastLen, "unexpected transfer length")
	test.AssertEqual(t, uint64(42), qp.LastLBA, "unexpected LBA")

	// The staging buffer is gone once the transfer completes.
	if _, err := ts.provider.Resolve(qp.LastBus, qp.LastLen); err == nil {
		t.Fatal("expected staging buffer to be released after transfer")
	}
	test.AssertEqual(t, 0, ts.driver.Allocator().LiveAllocations(),
		"staging buffer leaked")
}

func TestNvme_Driver_ReadStaging(t *testing.T) {
	ts := testDriver(t, nil)

	id, err := ts.driver.CreateIOQueuePair(0, 8)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 512)
	if err := ts.driver.ReadFromIOQueuePair(id, buf, 7); err != nil {
		t.Fatal(err)
	}

	qp := ts.controller.Pairs[0]
	test.AssertEqual(t, 1, qp.ReadCalls, "unexpected read call count")
	test.AssertEqual(t, 512, qp.LastLen, "unexpected transfer length")
	test.AssertEqual(t, uint64(7), qp.LastLBA, "unexpected LBA")
	test.AssertEqual(t, 0, ts.driver.Allocator().LiveAllocations(),
		"staging buffer leaked")
}

func TestNvme_Driver_TransferBufferTooBig(t *testing.T) {
	data := MockControllerData()
	ts := testDriver(t, &MockBackendConfig{Data: &data})

	id, err := ts.driver.CreateIOQueuePair(0, 8)
	if err != nil {
		t.Fatal(err)
	}

	tooBig := make([]byte, data.MaxTransferSize+1)
	allocsBefore := ts.provider.AllocateCalls

	test.CmpErr(t, FaultBufferTooBig(len(tooBig), data.MaxTransferSize),
		ts.driver.WriteToIOQueuePair(id, tooBig, 0))
	test.CmpErr(t, FaultBufferTooBig(len(tooBig), data.MaxTransferSize),
		ts.driver.ReadFromIOQueuePair(id, tooBig, 0))

	// No allocation and no hardware submission for rejected transfers.
	test.AssertEqual(t, allocsBefore, ts.provider.AllocateCalls,
		"staging allocated for rejected transfer")
	test.AssertEqual(t, 0, ts.controller.Pairs[0].WriteCalls, "write was submitted")
	test.AssertEqual(t, 0, ts.controller.Pairs[0].ReadCalls, "read was submitted")
}

func TestNvme_Driver_TransferErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		cfg    *MockBackendConfig
		read   bool
		expErr error
	}{
		"write failure": {
			cfg:    &MockBackendConfig{WriteErr: errors.New("media error")},
			expErr: FaultWriteFailed(errors.New("media error")),
		},
		"read failure": {
			cfg:    &MockBackendConfig{ReadErr: errors.New("media error")},
			read:   true,
			expErr: FaultReadFailed(errors.New("media error")),
		},
	} {
		t.Run(name, func(t *testing.T) {
			ts := testDriver(t, tc.cfg)

			id, err := ts.driver.CreateIOQueuePair(0, 8)
			if err != nil {
				t.Fatal(err)
			}

			buf := make([]byte, 64)
			if tc.read {
				err = ts.driver.ReadFromIOQueuePair(id, buf, 0)
			} else {
				err = ts.driver.WriteToIOQueuePair(id, buf, 0)
			}
			test.CmpErr(t, tc.expErr, err)

			// No leak on the error path.
			test.AssertEqual(t, 0, ts.driver.Allocator().LiveAllocations(),
				"staging buffer leaked on failure")
		})
	}
}

func TestNvme_Driver_TransferUnknownQueuePair(t *testing.T) {
	ts := testDriver(t, nil)

	buf := make([]byte, 32)
	test.CmpErr(t, FaultQueuePairNotFound(0), ts.driver.WriteToIOQueuePair(0, buf, 0))
	test.CmpErr(t, FaultQueuePairNotFound(0), ts.driver.ReadFromIOQueuePair(0, buf, 0))
	test.AssertEqual(t, 0, ts.driver.Allocator().LiveAllocations(),
		"staging buffer leaked for unknown queue pair")
}

func TestNvme_Driver_ZeroLengthTransfer(t *testing.T) {
	ts := testDriver(t, nil)

	id, err := ts.driver.CreateIOQueuePair(0, 8)
	if err != nil {
		t.Fatal(err)
	}

	if err := ts.driver.WriteToIOQueuePair(id, nil, 0); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, 0, ts.provider.AllocateCalls, "allocated for empty transfer")
	test.AssertEqual(t, 0, ts.controller.Pairs[0].WriteCalls, "submitted empty transfer")
}

func TestNvme_Driver_ControllerProperties(t *testing.T) {
	data := ControllerData{MaxTransferSize: 4096, MaxQueueEntries: 64}
	ts := testDriver(t, &MockBackendConfig{Data: &data})

	test.AssertEqual(t, 4096, ts.driver.MaxTransferSize(), "unexpected max transfer size")
	test.AssertEqual(t, uint16(64), ts.driver.MaxQueueEntries(), "unexpected max queue entries")
}

func TestNvme_Driver_Close(t *testing.T) {
	ts := testDriver(t, nil)

	for i := 0; i < 2; i++ {
		if _, err := ts.driver.CreateIOQueuePair(0, 8); err != nil {
			t.Fatal(err)
		}
	}

	if err := ts.driver.Close(); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, 2, ts.controller.DeleteCalls, "expected all pairs deleted")
}
