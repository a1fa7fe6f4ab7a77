//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/kestrel-os/kestrel/src/storage/fault"
	"github.com/kestrel-os/kestrel/src/storage/fault/code"
)

var (
	// FaultDeviceNotFound represents an error where no initialized
	// NVMe controller is available.
	FaultDeviceNotFound = nvmeFault(code.NvmeDeviceNotFound,
		"no NVMe controller found",
		"verify that an NVMe device is attached and was probed successfully")

	// FaultNoInterruptLine represents an error where the PCI device
	// exposes no usable interrupt line.
	FaultNoInterruptLine = nvmeFault(code.NvmeNoInterruptLine,
		"device exposes no usable interrupt line",
		"check the platform's interrupt routing configuration")
)

// FaultBarMapFailed creates a Fault for the case where the register
// BAR could not be memory-mapped.
func FaultBarMapFailed(index int) *fault.Fault {
	return nvmeFault(
		code.NvmeBarMapFailed,
		fmt.Sprintf("unable to memory-map device BAR %d", index),
		"",
	)
}

// FaultControllerInitFailed creates a Fault for the case where the
// protocol engine rejected the controller hardware.
func FaultControllerInitFailed(err error) *fault.Fault {
	return nvmeFault(
		code.NvmeControllerInitFailed,
		fmt.Sprintf("controller initialization failed: %s", err),
		"",
	)
}

// FaultIdentifyFailed creates a Fault for a failed namespace
// identification request.
func FaultIdentifyFailed(err error) *fault.Fault {
	return nvmeFault(
		code.NvmeIdentifyFailed,
		fmt.Sprintf("unable to identify namespaces: %s", err),
		"",
	)
}

// FaultNamespaceNotFound creates a Fault for a namespace index that is
// out of range.
func FaultNamespaceNotFound(index, count int) *fault.Fault {
	return nvmeFault(
		code.NvmeNamespaceNotFound,
		fmt.Sprintf("namespace index %d out of range (%d namespaces)", index, count),
		"request a namespace index reported by a namespace scan",
	)
}

// FaultRegistryFull creates a Fault for the case where the queue-pair
// table is at capacity.
func FaultRegistryFull(capacity int) *fault.Fault {
	return nvmeFault(
		code.NvmeRegistryFull,
		fmt.Sprintf("maximum number of queue pairs (%d) already created", capacity),
		"delete an existing I/O queue pair before creating a new one",
	)
}

// FaultQueuePairNotFound creates a Fault for an operation referencing
// a queue-pair id that is not live.
func FaultQueuePairNotFound(id QueuePairID) *fault.Fault {
	return nvmeFault(
		code.NvmeQueuePairNotFound,
		fmt.Sprintf("no live I/O queue pair with id %d", id),
		"",
	)
}

// FaultQueuePairCreateFailed creates a Fault for a controller-rejected
// queue-pair creation.
func FaultQueuePairCreateFailed(err error) *fault.Fault {
	return nvmeFault(
		code.NvmeQueuePairCreateFailed,
		fmt.Sprintf("unable to create I/O queue pair: %s", err),
		"",
	)
}

// FaultQueuePairDeleteFailed creates a Fault for a controller-rejected
// queue-pair teardown.
func FaultQueuePairDeleteFailed(id QueuePairID, err error) *fault.Fault {
	return nvmeFault(
		code.NvmeQueuePairDeleteFailed,
		fmt.Sprintf("unable to delete I/O queue pair %d: %s", id, err),
		"",
	)
}

// FaultBufferTooBig creates a Fault for a transfer exceeding the
// controller's maximum transfer size.
func FaultBufferTooBig(size, max int) *fault.Fault {
	return nvmeFault(
		code.NvmeBufferTooBig,
		fmt.Sprintf("transfer of %s exceeds controller maximum of %s",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(max))),
		"split the transfer into chunks no larger than the controller maximum",
	)
}

// FaultAllocationFailed creates a Fault for a failed DMA staging
// buffer allocation.
func FaultAllocationFailed(size int, err error) *fault.Fault {
	return nvmeFault(
		code.NvmeAllocationFailed,
		fmt.Sprintf("unable to allocate %s of DMA-capable memory: %s",
			humanize.IBytes(uint64(size)), err),
		"",
	)
}

// FaultReadFailed creates a Fault for a controller-reported read
// failure.
func FaultReadFailed(err error) *fault.Fault {
	return nvmeFault(
		code.NvmeReadFailed,
		fmt.Sprintf("read from I/O queue pair failed: %s", err),
		"",
	)
}

// FaultWriteFailed creates a Fault for a controller-reported write
// failure.
func FaultWriteFailed(err error) *fault.Fault {
	return nvmeFault(
		code.NvmeWriteFailed,
		fmt.Sprintf("write to I/O queue pair failed: %s", err),
		"",
	)
}

func nvmeFault(code code.Code, desc, res string) *fault.Fault {
	return &fault.Fault{
		Domain:      "nvme",
		Code:        code,
		Description: desc,
		Resolution:  res,
	}
}
