//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"encoding/hex"
	"strings"

	"github.com/desertbit/grumble"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/kestrel-os/kestrel/src/storage/build"
	"github.com/kestrel-os/kestrel/src/storage/logging"
	"github.com/kestrel-os/kestrel/src/storage/nvme"
)

// admContext carries the shell's driver instance between commands.
type admContext struct {
	log    logging.Logger
	driver *nvme.Driver
}

func addAppCommands(app *grumble.App, ctx *admContext) {
	// Command: scan
	app.AddCommand(&grumble.Command{
		Name:      "scan",
		Aliases:   nil,
		Help:      "List the controller's namespaces",
		LongHelp:  "",
		HelpGroup: "nvme",
		Run: func(c *grumble.Context) error {
			return admScan(ctx)
		},
		Completer: nil,
	})
	// Command: info
	app.AddCommand(&grumble.Command{
		Name:      "info",
		Aliases:   nil,
		Help:      "Show controller properties and live queue pairs",
		LongHelp:  "",
		HelpGroup: "nvme",
		Run: func(c *grumble.Context) error {
			return admInfo(ctx)
		},
		Completer: nil,
	})
	// Command: create-qp
	app.AddCommand(&grumble.Command{
		Name:      "create-qp",
		Aliases:   nil,
		Help:      "Create an I/O queue pair bound to a namespace",
		LongHelp:  "",
		HelpGroup: "nvme",
		Flags: func(f *grumble.Flags) {
			f.Int("n", "namespace", 0, "Namespace index to bind the queue pair to")
			f.Uint("e", "entries", 8, "Number of queue entries")
		},
		Run: func(c *grumble.Context) error {
			return admCreateQP(ctx, c.Flags.Int("namespace"), c.Flags.Uint("entries"))
		},
		Completer: nil,
	})
	// Command: delete-qp
	app.AddCommand(&grumble.Command{
		Name:      "delete-qp",
		Aliases:   nil,
		Help:      "Delete an I/O queue pair",
		LongHelp:  "",
		HelpGroup: "nvme",
		Args: func(a *grumble.Args) {
			a.Int("id", "Queue pair id to delete")
		},
		Run: func(c *grumble.Context) error {
			return admDeleteQP(ctx, c.Args.Int("id"))
		},
		Completer: nil,
	})
	// Command: write
	app.AddCommand(&grumble.Command{
		Name:    "write",
		Aliases: nil,
		Help:    "Write data through a queue pair",
		LongHelp: `Write data through a queue pair at the given logical block address.
The data argument is written as-is unless --hex is given, in which case
it is decoded from a hex string first.`,
		HelpGroup: "nvme",
		Flags: func(f *grumble.Flags) {
			f.Bool("x", "hex", false, "Decode the data argument from hex")
		},
		Args: func(a *grumble.Args) {
			a.Int("id", "Queue pair id to write through")
			a.Uint64("lba", "Logical block address to write at")
			a.String("data", "Data to write")
		},
		Run: func(c *grumble.Context) error {
			return admWrite(ctx, c.Args.Int("id"), c.Args.Uint64("lba"),
				c.Args.String("data"), c.Flags.Bool("hex"))
		},
		Completer: nil,
	})
	// Command: read
	app.AddCommand(&grumble.Command{
		Name:      "read",
		Aliases:   nil,
		Help:      "Read data through a queue pair",
		LongHelp:  "",
		HelpGroup: "nvme",
		Args: func(a *grumble.Args) {
			a.Int("id", "Queue pair id to read through")
			a.Uint64("lba", "Logical block address to read from")
			a.Int("length", "Number of bytes to read")
		},
		Run: func(c *grumble.Context) error {
			return admRead(ctx, c.Args.Int("id"), c.Args.Uint64("lba"),
				c.Args.Int("length"))
		},
		Completer: nil,
	})
	// Command: version
	app.AddCommand(&grumble.Command{
		Name:      "version",
		Aliases:   nil,
		Help:      "Print nvmeadm version",
		LongHelp:  "",
		HelpGroup: "",
		Run: func(c *grumble.Context) error {
			return admVersion(ctx)
		},
		Completer: nil,
	})
}

func admScan(ctx *admContext) error {
	count, err := ctx.driver.NamespaceCount()
	if err != nil {
		return err
	}

	ctx.log.Infof("%d namespace(s)", count)
	for i := 0; i < count; i++ {
		size, err := ctx.driver.NamespaceByteSize(i)
		if err != nil {
			return err
		}
		ctx.log.Infof("  [%d] %s", i, humanize.IBytes(size))
	}
	return nil
}

func admInfo(ctx *admContext) error {
	ctx.log.Infof("interrupt line:    %d", ctx.driver.InterruptLine())
	ctx.log.Infof("max transfer size: %s", humanize.IBytes(uint64(ctx.driver.MaxTransferSize())))
	ctx.log.Infof("max queue entries: %d", ctx.driver.MaxQueueEntries())

	live := ctx.driver.LiveQueuePairs()
	if len(live) == 0 {
		ctx.log.Info("no live queue pairs")
		return nil
	}
	ids := make([]string, len(live))
	for i, id := range live {
		ids[i] = id.String()
	}
	ctx.log.Infof("live queue pairs:  %s", strings.Join(ids, ", "))
	return nil
}

func admCreateQP(ctx *admContext, nsIndex int, entries uint) error {
	if entries == 0 || entries > uint(ctx.driver.MaxQueueEntries()) {
		return errors.Errorf("entries must be in [1, %d]", ctx.driver.MaxQueueEntries())
	}

	id, err := ctx.driver.CreateIOQueuePair(nsIndex, uint16(entries))
	if err != nil {
		return err
	}
	ctx.log.Infof("created queue pair %d on namespace index %d", id, nsIndex)
	return nil
}

func admDeleteQP(ctx *admContext, id int) error {
	if err := ctx.driver.DeleteIOQueuePair(nvme.QueuePairID(id)); err != nil {
		return err
	}
	ctx.log.Infof("deleted queue pair %d", id)
	return nil
}

func admWrite(ctx *admContext, id int, lba uint64, data string, hexData bool) error {
	buf := []byte(data)
	if hexData {
		decoded, err := hex.DecodeString(data)
		if err != nil {
			return errors.Wrap(err, "decoding hex data")
		}
		buf = decoded
	}
	if len(buf) == 0 {
		return errors.New("no data to write")
	}

	if err := ctx.driver.WriteToIOQueuePair(nvme.QueuePairID(id), buf, lba); err != nil {
		return err
	}
	ctx.log.Infof("wrote %s at LBA %d", humanize.IBytes(uint64(len(buf))), lba)
	return nil
}

func admRead(ctx *admContext, id int, lba uint64, length int) error {
	if length <= 0 {
		return errors.New("length must be positive")
	}

	buf := make([]byte, length)
	if err := ctx.driver.ReadFromIOQueuePair(nvme.QueuePairID(id), buf, lba); err != nil {
		return err
	}
	ctx.log.Infof("read %s at LBA %d:\n%s",
		humanize.IBytes(uint64(length)), lba, hex.Dump(buf))
	return nil
}

func admVersion(ctx *admContext) error {
	ctx.log.Info(build.String(build.AdminToolName))
	return nil
}
