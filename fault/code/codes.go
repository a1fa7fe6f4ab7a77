//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package code is a central repository for all storage control fault codes.
package code

import (
	"encoding/json"
	"strconv"
)

// Code represents a stable fault code.
//
// NB: All storage control errors should register their codes in the
// following block in order to avoid conflicts.
//
// Also note that new codes should always be added at the bottom of
// their respective blocks. This ensures stability of fault codes
// over time.
type Code int

// UnmarshalJSON implements a custom unmarshaler
// to convert an int or string code to a Code.
func (c *Code) UnmarshalJSON(data []byte) (err error) {
	var ic int
	if err = json.Unmarshal(data, &ic); err == nil {
		*c = Code(ic)
		return
	}

	var sc string
	if err = json.Unmarshal(data, &sc); err != nil {
		return
	}

	if ic, err = strconv.Atoi(sc); err == nil {
		*c = Code(ic)
	}
	return
}

const (
	// general fault codes
	Unknown Code = iota
	MissingSoftwareDependency
)

const (
	// NVMe driver fault codes
	NvmeUnknown Code = iota + 100
	NvmeDeviceNotFound
	NvmeBarMapFailed
	NvmeNoInterruptLine
	NvmeControllerInitFailed
	NvmeIdentifyFailed
	NvmeNamespaceNotFound
	NvmeRegistryFull
	NvmeQueuePairNotFound
	NvmeQueuePairCreateFailed
	NvmeQueuePairDeleteFailed
	NvmeBufferTooBig
	NvmeAllocationFailed
	NvmeReadFailed
	NvmeWriteFailed
)
