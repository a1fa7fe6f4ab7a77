//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package sysnvme

import (
	"fmt"

	"github.com/kestrel-os/kestrel/src/storage/fault"
	"github.com/kestrel-os/kestrel/src/storage/fault/code"
)

// Errno is the stable numeric result of a dispatcher call. Zero means
// success; the nonzero values are fixed and must never be renumbered,
// callers on the other side of the boundary match on them.
type Errno uint8

const (
	Success                     Errno = 0
	ZeroPointerParameter        Errno = 1
	DeviceDoesNotExist          Errno = 2
	CouldNotIdentifyNamespaces  Errno = 3
	NamespaceDoesNotExist       Errno = 4
	MaxNumberOfQueuesReached    Errno = 5
	CouldNotCreateIoQueuePair   Errno = 6
	CouldNotDeleteIoQueuePair   Errno = 7
	CouldNotFindIoQueuePair     Errno = 8
	BufferTooBig                Errno = 9
	CouldNotAllocateMemory      Errno = 10
	CouldNotReadFromIoQueuePair Errno = 11
	CouldNotWriteToIoQueuePair  Errno = 12
)

func (e Errno) String() string {
	switch e {
	case Success:
		return "success"
	case ZeroPointerParameter:
		return "zero pointer parameter"
	case DeviceDoesNotExist:
		return "device does not exist"
	case CouldNotIdentifyNamespaces:
		return "could not identify namespaces"
	case NamespaceDoesNotExist:
		return "namespace does not exist"
	case MaxNumberOfQueuesReached:
		return "max number of queues reached"
	case CouldNotCreateIoQueuePair:
		return "could not create io queue pair"
	case CouldNotDeleteIoQueuePair:
		return "could not delete io queue pair"
	case CouldNotFindIoQueuePair:
		return "could not find io queue pair"
	case BufferTooBig:
		return "buffer too big"
	case CouldNotAllocateMemory:
		return "could not allocate memory"
	case CouldNotReadFromIoQueuePair:
		return "could not read from io queue pair"
	case CouldNotWriteToIoQueuePair:
		return "could not write to io queue pair"
	default:
		return fmt.Sprintf("unknown errno %d", uint8(e))
	}
}

// errnoTable maps driver fault codes to boundary values.
var errnoTable = map[code.Code]Errno{
	code.NvmeDeviceNotFound:        DeviceDoesNotExist,
	code.NvmeIdentifyFailed:        CouldNotIdentifyNamespaces,
	code.NvmeNamespaceNotFound:     NamespaceDoesNotExist,
	code.NvmeRegistryFull:          MaxNumberOfQueuesReached,
	code.NvmeQueuePairCreateFailed: CouldNotCreateIoQueuePair,
	code.NvmeQueuePairDeleteFailed: CouldNotDeleteIoQueuePair,
	code.NvmeQueuePairNotFound:     CouldNotFindIoQueuePair,
	code.NvmeBufferTooBig:          BufferTooBig,
	code.NvmeAllocationFailed:      CouldNotAllocateMemory,
	code.NvmeReadFailed:            CouldNotReadFromIoQueuePair,
	code.NvmeWriteFailed:           CouldNotWriteToIoQueuePair,
}

// errnoFor translates a driver error into its boundary value. Errors
// without a registered code collapse to the operation's fallback.
func errnoFor(err error, fallback Errno) Errno {
	if err == nil {
		return Success
	}
	for c, e := range errnoTable {
		if fault.IsFaultCode(err, c) {
			return e
		}
	}
	return fallback
}
