//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package sysnvme is the upward boundary of the storage driver. The
// Dispatcher translates driver results into stable numeric codes so
// that callers never see Go error values. A dispatcher is built once
// at probe time around an explicit driver instance.
package sysnvme

import (
	"github.com/kestrel-os/kestrel/src/storage/logging"
	"github.com/kestrel-os/kestrel/src/storage/nvme"
)

// Dispatcher exposes the driver's operations at the numeric boundary.
type Dispatcher struct {
	log    logging.Logger
	driver *nvme.Driver
}

// NewDispatcher returns a Dispatcher bound to the given driver. A nil
// driver is allowed; every call then reports DeviceDoesNotExist.
func NewDispatcher(log logging.Logger, driver *nvme.Driver) *Dispatcher {
	return &Dispatcher{
		log:    log,
		driver: driver,
	}
}

// GetNumberOfNamespaces reports the number of active namespaces.
func (d *Dispatcher) GetNumberOfNamespaces() (uint32, Errno) {
	if d.driver == nil {
		return 0, DeviceDoesNotExist
	}

	count, err := d.driver.NamespaceCount()
	if err != nil {
		d.log.Errorf("sysnvme: namespace count: %s", err)
		return 0, errnoFor(err, CouldNotIdentifyNamespaces)
	}
	return uint32(count), Success
}

// GetMaxBufferSize reports the controller's maximum transfer size.
func (d *Dispatcher) GetMaxBufferSize() (uint64, Errno) {
	if d.driver == nil {
		return 0, DeviceDoesNotExist
	}
	return uint64(d.driver.MaxTransferSize()), Success
}

// GetMaxNumberOfQueueEntries reports the per-queue entry limit.
func (d *Dispatcher) GetMaxNumberOfQueueEntries() (uint16, Errno) {
	if d.driver == nil {
		return 0, DeviceDoesNotExist
	}
	return d.driver.MaxQueueEntries(), Success
}

// GetSizeOfNamespace reports the byte size of the namespace at the
// given index.
func (d *Dispatcher) GetSizeOfNamespace(index uint32) (uint64, Errno) {
	if d.driver == nil {
		return 0, DeviceDoesNotExist
	}

	size, err := d.driver.NamespaceByteSize(int(index))
	if err != nil {
		d.log.Errorf("sysnvme: namespace %d size: %s", index, err)
		return 0, errnoFor(err, NamespaceDoesNotExist)
	}
	return size, Success
}

// CreateIOQueuePair creates a queue pair bound to the namespace at the
// given index and reports its identifier.
func (d *Dispatcher) CreateIOQueuePair(nsIndex uint32, entries uint16) (nvme.QueuePairID, Errno) {
	if d.driver == nil {
		return 0, DeviceDoesNotExist
	}

	id, err := d.driver.CreateIOQueuePair(int(nsIndex), entries)
	if err != nil {
		d.log.Errorf("sysnvme: create queue pair: %s", err)
		return 0, errnoFor(err, CouldNotCreateIoQueuePair)
	}
	return id, Success
}

// DeleteIOQueuePair tears down the queue pair with the given
// identifier.
func (d *Dispatcher) DeleteIOQueuePair(id nvme.QueuePairID) Errno {
	if d.driver == nil {
		return DeviceDoesNotExist
	}

	if err := d.driver.DeleteIOQueuePair(id); err != nil {
		d.log.Errorf("sysnvme: delete queue pair %d: %s", id, err)
		return errnoFor(err, CouldNotDeleteIoQueuePair)
	}
	return Success
}

// ReadFromIOQueuePair reads len(buf) bytes at the given logical block
// address into buf.
func (d *Dispatcher) ReadFromIOQueuePair(id nvme.QueuePairID, buf []byte, lba uint64) Errno {
	if d.driver == nil {
		return DeviceDoesNotExist
	}
	if buf == nil {
		return ZeroPointerParameter
	}

	if err := d.driver.ReadFromIOQueuePair(id, buf, lba); err != nil {
		d.log.Errorf("sysnvme: read queue pair %d: %s", id, err)
		return errnoFor(err, CouldNotReadFromIoQueuePair)
	}
	return Success
}

// WriteToIOQueuePair writes buf at the given logical block address.
func (d *Dispatcher) WriteToIOQueuePair(id nvme.QueuePairID, buf []byte, lba uint64) Errno {
	if d.driver == nil {
		return DeviceDoesNotExist
	}
	if buf == nil {
		return ZeroPointerParameter
	}

	if err := d.driver.WriteToIOQueuePair(id, buf, lba); err != nil {
		d.log.Errorf("sysnvme: write queue pair %d: %s", id, err)
		return errnoFor(err, CouldNotWriteToIoQueuePair)
	}
	return Success
}
