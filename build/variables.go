//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package build provides an importable repository of variables set at build time.
package build

var (
	// StorageVersion should be set via linker flag using the value of STORAGE_VERSION.
	StorageVersion string = "unset"
	// Revision should be set via linker flag to the VCS revision.
	Revision string
	// DriverName defines a consistent name for the NVMe driver layer.
	DriverName = "Kestrel NVMe Driver"
	// AdminToolName defines a consistent name for the admin utility.
	AdminToolName = "nvmeadm"
)
