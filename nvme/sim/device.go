//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package sim

// Device implements nvme.PCIDevice with a fixed register window and
// interrupt line, standing in for a probed PCI function.
type Device struct {
	barBase uintptr
	barSize uint64
	irq     uint8
}

// NewDevice returns a simulated PCI device.
func NewDevice() *Device {
	return &Device{
		barBase: 0xfebd0000,
		barSize: 0x4000,
		irq:     10,
	}
}

// MemoryMapBar reports the register window for BAR 0.
func (d *Device) MemoryMapBar(index int) (uintptr, uint64, bool) {
	if index != 0 {
		return 0, 0, false
	}
	return d.barBase, d.barSize, true
}

// InterruptLine reports the device's interrupt line.
func (d *Device) InterruptLine() (uint8, bool) {
	return d.irq, true
}
