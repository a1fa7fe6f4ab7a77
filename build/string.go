//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package build

import (
	"fmt"
	"strings"
)

func revString(version string) string {
	revParts := []string{version}
	if Revision != "" {
		revParts = append(revParts, fmt.Sprintf("g%7s", Revision)[0:7])
	}
	return strings.Join(revParts, "-")
}

// String returns a string containing the name, version, and
// revision (if set) of the binary.
func String(name string) string {
	return fmt.Sprintf("%s version %s", name, revString(StorageVersion))
}
