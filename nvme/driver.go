//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

import (
	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
)

// registerBarIndex is the BAR holding the controller register window.
const registerBarIndex = 0

// Driver exposes namespace discovery and block-level I/O on one NVMe
// controller. It owns the controller handle, the device allocator, the
// queue-pair registry, and the device's interrupt line for its
// lifetime.
//
// Construct one Driver per probed device and hand it to whatever
// reaches it (syscall dispatch, interrupt handling) explicitly; the
// package keeps no ambient instance.
type Driver struct {
	log           logging.Logger
	controller    Controller
	allocator     *DeviceAllocator
	registry      *QueuePairRegistry
	interruptLine uint8
	metrics       *Metrics
}

// NewDriver initializes the protocol engine on the given PCI device
// and returns a ready driver. Initialization fails if the register BAR
// cannot be mapped, if the engine rejects the hardware, or if the
// device exposes no usable interrupt line; failures are propagated,
// not retried.
func NewDriver(log logging.Logger, device PCIDevice, backend Backend, provider dma.Provider, qpCapacity int) (*Driver, error) {
	base, size, ok := device.MemoryMapBar(registerBarIndex)
	if !ok {
		return nil, FaultBarMapFailed(registerBarIndex)
	}
	log.Debugf("nvme: mapped BAR %d at %#x (size %#x)", registerBarIndex, base, size)

	allocator := NewDeviceAllocator(log, provider)
	controller, err := backend.Init(base, allocator)
	if err != nil {
		return nil, FaultControllerInitFailed(err)
	}
	log.Debugf("nvme: controller data: %+v", controller.Data())

	line, ok := device.InterruptLine()
	if !ok {
		return nil, FaultNoInterruptLine
	}

	return &Driver{
		log:           log,
		controller:    controller,
		allocator:     allocator,
		registry:      NewQueuePairRegistry(log, controller, qpCapacity),
		interruptLine: line,
	}, nil
}

// EnableMetrics attaches transfer metrics to the driver and registers
// them with the given registerer.
func (d *Driver) EnableMetrics(reg metricsRegisterer) error {
	m, err := NewMetrics(reg)
	if err != nil {
		return err
	}
	d.metrics = m
	return nil
}

// InterruptLine returns the device interrupt line retained at probe.
func (d *Driver) InterruptLine() uint8 {
	return d.interruptLine
}

// Allocator returns the driver's device allocator.
func (d *Driver) Allocator() *DeviceAllocator {
	return d.allocator
}

// MaxTransferSize returns the controller's maximum transfer size in
// bytes.
func (d *Driver) MaxTransferSize() int {
	return d.controller.Data().MaxTransferSize
}

// MaxQueueEntries returns the maximum entry count the controller
// supports per queue.
func (d *Driver) MaxQueueEntries() uint16 {
	return d.controller.Data().MaxQueueEntries
}

// identifyNamespaces issues a fresh identification request; results
// are never cached.
func (d *Driver) identifyNamespaces() ([]Namespace, error) {
	namespaces, err := d.controller.IdentifyNamespaces(0)
	if err != nil {
		return nil, FaultIdentifyFailed(err)
	}
	return namespaces, nil
}

// NamespaceCount reports the number of namespaces the controller
// exposes.
func (d *Driver) NamespaceCount() (int, error) {
	namespaces, err := d.identifyNamespaces()
	if err != nil {
		return 0, err
	}
	return len(namespaces), nil
}

// NamespaceByteSize reports the byte capacity of the namespace at the
// given index.
func (d *Driver) NamespaceByteSize(index int) (uint64, error) {
	namespaces, err := d.identifyNamespaces()
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(namespaces) {
		return 0, FaultNamespaceNotFound(index, len(namespaces))
	}
	return namespaces[index].ByteSize(), nil
}

// CreateIOQueuePair creates a queue pair bound to the namespace at the
// given index and returns its id. The namespace is re-identified under
// the registry lock; descriptors are transient and never reused across
// calls.
func (d *Driver) CreateIOQueuePair(nsIndex int, entries uint16) (QueuePairID, error) {
	id, err := d.registry.Create(entries, func() (Namespace, error) {
		namespaces, err := d.identifyNamespaces()
		if err != nil {
			return Namespace{}, err
		}
		if nsIndex < 0 || nsIndex >= len(namespaces) {
			return Namespace{}, FaultNamespaceNotFound(nsIndex, len(namespaces))
		}
		return namespaces[nsIndex], nil
	})
	if err != nil {
		return 0, err
	}

	d.metrics.IncQueuePairs()
	return id, nil
}

// DeleteIOQueuePair tears down the queue pair with the given id.
func (d *Driver) DeleteIOQueuePair(id QueuePairID) error {
	if err := d.registry.Delete(id); err != nil {
		return err
	}

	d.metrics.DecQueuePairs()
	return nil
}

// LiveQueuePairs returns the ids of all currently live queue pairs in
// ascending order.
func (d *Driver) LiveQueuePairs() []QueuePairID {
	return d.registry.Live()
}

// ReadFromIOQueuePair reads len(buf) bytes starting at the logical
// block address lba through the queue pair with the given id.
//
// The transfer is staged: caller buffers carry no alignment or
// residency guarantees, so the read lands in a freshly allocated
// DMA-capable buffer and is copied out afterwards. The staging buffer
// is released on every path.
func (d *Driver) ReadFromIOQueuePair(id QueuePairID, buf []byte, lba uint64) error {
	if err := d.stageTransfer(id, buf, lba, false); err != nil {
		d.metrics.IncFailure(opRead)
		return err
	}

	d.metrics.AddTransfer(opRead, len(buf))
	return nil
}

// WriteToIOQueuePair writes buf starting at the logical block address
// lba through the queue pair with the given id. A failed write is
// never observable as a partial write at this level; see
// ReadFromIOQueuePair for the staging protocol.
func (d *Driver) WriteToIOQueuePair(id QueuePairID, buf []byte, lba uint64) error {
	if err := d.stageTransfer(id, buf, lba, true); err != nil {
		d.metrics.IncFailure(opWrite)
		return err
	}

	d.metrics.AddTransfer(opWrite, len(buf))
	return nil
}

func (d *Driver) stageTransfer(id QueuePairID, buf []byte, lba uint64, write bool) error {
	// The bound is a controller property, fetched at use time.
	maxTransfer := d.controller.Data().MaxTransferSize
	if len(buf) > maxTransfer {
		return FaultBufferTooBig(len(buf), maxTransfer)
	}
	if len(buf) == 0 {
		return nil
	}

	staging, err := d.allocator.AllocateBuffer(len(buf))
	if err != nil {
		return FaultAllocationFailed(len(buf), err)
	}
	defer d.allocator.ReleaseBuffer(staging)

	bus := d.allocator.Translate(staging.Address())

	if write {
		copy(staging.Bytes(), buf)
		return d.registry.With(id, func(qp QueuePair) error {
			if err := qp.Write(bus, len(buf), lba); err != nil {
				return FaultWriteFailed(err)
			}
			return nil
		})
	}

	err = d.registry.With(id, func(qp QueuePair) error {
		if err := qp.Read(bus, len(buf), lba); err != nil {
			return FaultReadFailed(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	copy(buf, staging.Bytes())
	return nil
}

// Close force-deletes all live queue pairs. Intended for shutdown;
// the first teardown failure is reported after all deletions have been
// attempted.
func (d *Driver) Close() error {
	var firstErr error
	for _, id := range d.registry.Live() {
		if err := d.DeleteIOQueuePair(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
