//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

// MockControllerData returns controller properties suitable for most
// tests.
func MockControllerData() ControllerData {
	return ControllerData{
		MaxTransferSize: 128 * 1024,
		MaxQueueEntries: 1024,
	}
}

// MockNamespace returns a namespace descriptor with a capacity derived
// from the variadic index.
func MockNamespace(varIdx ...uint32) Namespace {
	idx := uint32(1)
	if len(varIdx) > 0 {
		idx = varIdx[0]
	}
	return Namespace{
		ID:         idx,
		BlockCount: uint64(idx) * 2048,
		BlockSize:  512,
	}
}

// MockBackendConfig configures the mock protocol engine.
type MockBackendConfig struct {
	InitErr     error
	IdentifyErr error
	Namespaces  []Namespace
	CreateErr   error
	DeleteErr   error
	ReadErr     error
	WriteErr    error
	Data        *ControllerData
}

// MockBackend implements Backend and hands out MockControllers.
type MockBackend struct {
	cfg        MockBackendConfig
	InitCalls  int
	Controller *MockController
}

// NewMockBackend returns a MockBackend with the given config.
func NewMockBackend(cfg *MockBackendConfig) *MockBackend {
	if cfg == nil {
		cfg = &MockBackendConfig{}
	}
	return &MockBackend{cfg: *cfg}
}

func (b *MockBackend) Init(base uintptr, mem Allocator) (Controller, error) {
	b.InitCalls++
	if b.cfg.InitErr != nil {
		return nil, b.cfg.InitErr
	}
	b.Controller = &MockController{cfg: &b.cfg, Base: base, Mem: mem}
	return b.Controller, nil
}

// MockController implements Controller and records call activity.
type MockController struct {
	cfg  *MockBackendConfig
	Base uintptr
	Mem  Allocator

	IdentifyCalls int
	CreateCalls   int
	DeleteCalls   int
	Pairs         []*MockQueuePair
}

func (c *MockController) IdentifyNamespaces(startID uint32) ([]Namespace, error) {
	c.IdentifyCalls++
	if c.cfg.IdentifyErr != nil {
		return nil, c.cfg.IdentifyErr
	}

	namespaces := make([]Namespace, 0, len(c.cfg.Namespaces))
	for _, ns := range c.cfg.Namespaces {
		if ns.ID >= startID {
			namespaces = append(namespaces, ns)
		}
	}
	return namespaces, nil
}

func (c *MockController) CreateIOQueuePair(ns Namespace, entries uint16) (QueuePair, error) {
	c.CreateCalls++
	if c.cfg.CreateErr != nil {
		return nil, c.cfg.CreateErr
	}

	qp := &MockQueuePair{cfg: c.cfg, Namespace: ns, Entries: entries}
	c.Pairs = append(c.Pairs, qp)
	return qp, nil
}

func (c *MockController) DeleteIOQueuePair(qp QueuePair) error {
	c.DeleteCalls++
	if c.cfg.DeleteErr != nil {
		return c.cfg.DeleteErr
	}

	if mqp, ok := qp.(*MockQueuePair); ok {
		mqp.Deleted = true
	}
	return nil
}

func (c *MockController) Data() ControllerData {
	if c.cfg.Data != nil {
		return *c.cfg.Data
	}
	return MockControllerData()
}

// MockQueuePair implements QueuePair and records submissions.
type MockQueuePair struct {
	cfg       *MockBackendConfig
	Namespace Namespace
	Entries   uint16
	Deleted   bool

	ReadCalls  int
	WriteCalls int
	LastBus    uint64
	LastLen    int
	LastLBA    uint64
}

func (qp *MockQueuePair) Read(bus uint64, length int, lba uint64) error {
	qp.ReadCalls++
	qp.LastBus, qp.LastLen, qp.LastLBA = bus, length, lba
	return qp.cfg.ReadErr
}

func (qp *MockQueuePair) Write(bus uint64, length int, lba uint64) error {
	qp.WriteCalls++
	qp.LastBus, qp.LastLen, qp.LastLBA = bus, length, lba
	return qp.cfg.WriteErr
}

// MockPCIDevice implements PCIDevice.
type MockPCIDevice struct {
	BarBase     uintptr
	BarSize     uint64
	BarMapFails bool
	IRQ         uint8
	NoIRQ       bool
}

// DefaultMockPCIDevice returns a device with a plausible BAR window
// and interrupt line.
func DefaultMockPCIDevice() *MockPCIDevice {
	return &MockPCIDevice{
		BarBase: 0xfebf0000,
		BarSize: 0x4000,
		IRQ:     11,
	}
}

func (d *MockPCIDevice) MemoryMapBar(index int) (uintptr, uint64, bool) {
	if d.BarMapFails {
		return 0, 0, false
	}
	return d.BarBase, d.BarSize, true
}

func (d *MockPCIDevice) InterruptLine() (uint8, bool) {
	if d.NoIRQ {
		return 0, false
	}
	return d.IRQ, true
}
