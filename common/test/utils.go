//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package test provides shared helpers for unit tests.
package test

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/kestrel-os/kestrel/src/storage/fault"
)

// AssertTrue asserts b is true.
func AssertTrue(t *testing.T, b bool, message string) {
	t.Helper()

	if !b {
		t.Fatal(message)
	}
}

// AssertFalse asserts b is false.
func AssertFalse(t *testing.T, b bool, message string) {
	t.Helper()

	if b {
		t.Fatal(message)
	}
}

// AssertEqual asserts b is equal to a.
//
// Whenever the message would be useful to augment the test name,
// pass it in; otherwise the empty string is fine.
func AssertEqual(t *testing.T, a, b interface{}, message string) {
	t.Helper()

	if reflect.DeepEqual(a, b) {
		return
	}
	if len(message) > 0 {
		message += ", "
	}

	t.Fatalf("%s%#v != %#v", message, a, b)
}

// AssertNotEqual asserts b is not equal to a.
func AssertNotEqual(t *testing.T, a, b interface{}, message string) {
	t.Helper()

	if !reflect.DeepEqual(a, b) {
		return
	}
	if len(message) > 0 {
		message += ", "
	}

	t.Fatalf("%s%#v == %#v", message, a, b)
}

// CmpErr compares two errors for equality. Two errors are considered
// equal if they are both nil, they are both faults resolving to the
// same code, or the got error string contains the want error string.
func CmpErr(t *testing.T, want, got error) {
	t.Helper()

	if want == got {
		return
	}
	if want == nil || got == nil {
		t.Fatalf("unexpected error (wanted: %v, got: %v)", want, got)
	}
	if f, ok := want.(*fault.Fault); ok {
		if !f.Equals(got) {
			t.Fatalf("unexpected fault (wanted: %s, got: %s)", want, got)
		}
		return
	}
	if !strings.Contains(got.Error(), want.Error()) {
		t.Fatalf("unexpected error (wanted: %s, got: %s)", want, got)
	}
}

// ExpectPanic runs fn and fails the test unless it panics with a
// message containing want.
func ExpectPanic(t *testing.T, want string, fn func()) {
	t.Helper()

	defer func() {
		t.Helper()

		r := recover()
		if r == nil {
			t.Fatal("expected panic, got none")
		}
		msg := fmt.Sprintf("%v", r)
		if !strings.Contains(msg, want) {
			t.Fatalf("unexpected panic message (wanted: %s, got: %s)", want, msg)
		}
	}()

	fn()
}
