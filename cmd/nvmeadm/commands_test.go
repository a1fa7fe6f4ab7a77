//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"strings"
	"testing"

	"github.com/kestrel-os/kestrel/src/storage/common/test"
	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
	"github.com/kestrel-os/kestrel/src/storage/nvme"
	"github.com/kestrel-os/kestrel/src/storage/nvme/sim"
)

func testAdmContext(t *testing.T) (*admContext, *logging.LogBuffer) {
	t.Helper()

	log, buf := logging.NewTestLogger(t.Name())
	provider := dma.NewMockProvider(nil)
	backend := sim.NewBackend(log, nil, provider)

	driver, err := nvme.NewDriver(log, sim.NewDevice(), backend, provider, 2)
	if err != nil {
		t.Fatal(err)
	}

	return &admContext{log: log, driver: driver}, buf
}

func assertLogged(t *testing.T, buf *logging.LogBuffer, want string) {
	t.Helper()

	if !strings.Contains(buf.String(), want) {
		t.Fatalf("expected %q in log output:\n%s", want, buf.String())
	}
}

func TestNvmeadm_Scan(t *testing.T) {
	ctx, buf := testAdmContext(t)

	if err := admScan(ctx); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "1 namespace(s)")
	assertLogged(t, buf, "[0] 1.0 MiB")
}

func TestNvmeadm_Info(t *testing.T) {
	ctx, buf := testAdmContext(t)

	if err := admInfo(ctx); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "max transfer size: 128 KiB")
	assertLogged(t, buf, "no live queue pairs")

	if err := admCreateQP(ctx, 0, 8); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := admInfo(ctx); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "live queue pairs:  0")
}

func TestNvmeadm_QueuePairCommands(t *testing.T) {
	ctx, buf := testAdmContext(t)

	if err := admCreateQP(ctx, 0, 8); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "created queue pair 0")

	if err := admCreateQP(ctx, 0, 0); err == nil {
		t.Fatal("expected error for zero entries")
	}

	if err := admDeleteQP(ctx, 0); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "deleted queue pair 0")

	test.CmpErr(t, nvme.FaultQueuePairNotFound(0), admDeleteQP(ctx, 0))
}

func TestNvmeadm_WriteRead(t *testing.T) {
	ctx, buf := testAdmContext(t)

	if err := admCreateQP(ctx, 0, 8); err != nil {
		t.Fatal(err)
	}

	if err := admWrite(ctx, 0, 3, "hello block", false); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "wrote 11 B at LBA 3")

	if err := admRead(ctx, 0, 3, 11); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "hello block")

	// Hex-encoded payload.
	if err := admWrite(ctx, 0, 4, "deadbeef", true); err != nil {
		t.Fatal(err)
	}
	if err := admWrite(ctx, 0, 4, "not-hex", true); err == nil {
		t.Fatal("expected error for bad hex data")
	}
	if err := admWrite(ctx, 0, 4, "", false); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestNvmeadm_ReadBadLength(t *testing.T) {
	ctx, _ := testAdmContext(t)

	if err := admCreateQP(ctx, 0, 8); err != nil {
		t.Fatal(err)
	}
	if err := admRead(ctx, 0, 0, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestNvmeadm_Version(t *testing.T) {
	ctx, buf := testAdmContext(t)

	if err := admVersion(ctx); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "nvmeadm version")
}

func TestNvmeadm_RunCmdStr(t *testing.T) {
	ctx, buf := testAdmContext(t)
	app := createGrumbleApp(ctx)

	if err := runCmdStr(app, "scan"); err != nil {
		t.Fatal(err)
	}
	assertLogged(t, buf, "1 namespace(s)")

	if err := runCmdStr(app, "no-such-command"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
