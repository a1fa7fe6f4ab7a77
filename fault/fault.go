//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package fault provides an error implementation with a stable
// numeric code, a human-readable description, and an optional
// resolution hint. Fault codes are registered centrally in the
// fault/code package so that boundary layers can map them to
// stable wire values.
package fault

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-os/kestrel/src/storage/fault/code"
)

const (
	// ResolutionUnknown is the default resolution for faults
	// that don't provide one.
	ResolutionUnknown = "no known resolution"

	// UnknownDomainStr is the domain used for faults without one.
	UnknownDomainStr = "unknown"
)

// UnknownFault represents an unknown fault.
var UnknownFault = &Fault{
	Domain:      UnknownDomainStr,
	Code:        code.Unknown,
	Description: "unknown fault",
}

// Fault represents a well-known error with a stable code,
// a description, and an optional resolution.
type Fault struct {
	// Domain identifies the subsystem that raised the fault.
	Domain string
	// Code is the stable numeric identifier for the fault.
	Code code.Code
	// Description is a human-readable summary of the fault.
	Description string
	// Reason optionally records the underlying cause.
	Reason string
	// Resolution optionally suggests how to resolve the fault.
	Resolution string
}

func (f *Fault) Error() string {
	desc := f.Description
	if desc == "" {
		desc = UnknownFault.Description
	}
	return fmt.Sprintf("%s: code = %d description = %q",
		sanitizeDomain(f.Domain), f.Code, desc)
}

// Equals attempts to compare the given error to this one. If they both
// resolve to the same fault code, then they are considered equivalent.
func (f *Fault) Equals(raw error) bool {
	other, ok := errors.Cause(raw).(*Fault)
	if !ok {
		return false
	}
	if f == nil || other == nil {
		return f == other
	}
	return f.Code == other.Code
}

func sanitizeDomain(domain string) string {
	if domain == "" {
		domain = UnknownDomainStr
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':':
			return '_'
		}
		return r
	}, domain)
}

// HasResolution indicates whether or not the error has
// a resolution defined.
func HasResolution(err error) bool {
	f := findFault(err)
	if f == nil || f.Resolution == "" {
		return false
	}
	return true
}

// ShowResolutionFor attempts to return the resolution string for the
// given error. If the error is not a fault or does not have a
// resolution set, the string contains ResolutionUnknown.
func ShowResolutionFor(err error) string {
	f := findFault(err)
	if f == nil {
		f = UnknownFault
	}
	res := f.Resolution
	if res == "" {
		res = ResolutionUnknown
	}
	return fmt.Sprintf("%s: code = %d resolution = %q",
		sanitizeDomain(f.Domain), f.Code, res)
}

// IsFault indicates whether or not the error is a fault.
func IsFault(err error) bool {
	return findFault(err) != nil
}

// IsFaultCode indicates whether or not the error is a fault
// with the given code.
func IsFaultCode(err error, c code.Code) bool {
	if f := findFault(err); f != nil {
		return f.Code == c
	}
	return false
}

func findFault(err error) *Fault {
	if err == nil {
		return nil
	}
	if f, ok := errors.Cause(err).(*Fault); ok {
		return f
	}
	return nil
}
