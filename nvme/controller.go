//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package nvme implements the kernel-facing NVMe driver layer: it
// bridges callers holding ordinary virtual buffers to a hardware
// command-protocol engine that requires bus-addressable, page-aligned
// memory, and manages the lifecycle of the I/O queue pairs the
// transfers flow through.
//
// The protocol engine itself (command encoding, doorbells, completion
// handling) sits behind the Controller interface; any compliant
// implementation can be substituted, including the in-memory double in
// the sim subpackage.
package nvme

type (
	// Namespace describes one logical block range exposed by a
	// controller. Descriptors are fetched fresh from the controller
	// on each identification; they are not cached by the driver.
	Namespace struct {
		ID         uint32
		BlockCount uint64
		BlockSize  uint64
	}

	// ControllerData reports fixed properties of an initialized
	// controller.
	ControllerData struct {
		MaxTransferSize int
		MaxQueueEntries uint16
	}

	// Allocator is the memory capability handed to the protocol
	// engine. All memory the engine uses for its internal structures
	// is obtained through it, and the engine only ever refers to that
	// memory by the addresses it was given.
	//
	// Deallocate and Translate treat unknown addresses as fatal: the
	// engine freeing memory it was never given, or using an unmapped
	// address, means the shared memory model has already diverged.
	Allocator interface {
		Allocate(size int) (uintptr, error)
		Deallocate(addr uintptr)
		Translate(addr uintptr) uint64
	}

	// QueuePair is one live submission/completion queue pair bound to
	// a namespace. Read and Write operate on bus addresses previously
	// obtained from the allocator; both block until the controller
	// reports completion or failure.
	QueuePair interface {
		Read(bus uint64, length int, lba uint64) error
		Write(bus uint64, length int, lba uint64) error
	}

	// Controller is the initialized protocol engine.
	Controller interface {
		IdentifyNamespaces(startID uint32) ([]Namespace, error)
		CreateIOQueuePair(ns Namespace, entries uint16) (QueuePair, error)
		DeleteIOQueuePair(qp QueuePair) error
		Data() ControllerData
	}

	// Backend is the protocol engine's entry point, invoked once per
	// device with the mapped register window and the memory capability.
	Backend interface {
		Init(base uintptr, mem Allocator) (Controller, error)
	}

	// PCIDevice is the slice of PCI device functionality the driver
	// needs: a mapped register BAR and an interrupt line.
	PCIDevice interface {
		MemoryMapBar(index int) (base uintptr, size uint64, ok bool)
		InterruptLine() (line uint8, ok bool)
	}
)

// ByteSize returns the namespace capacity in bytes.
func (ns Namespace) ByteSize() uint64 {
	return ns.BlockCount * ns.BlockSize
}
