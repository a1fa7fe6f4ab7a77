//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package sim provides an in-memory NVMe protocol engine implementing
// the driver's Controller capability. Namespaces are backed by byte
// slices and transfers move data through the same bus-address
// indirection real hardware would use, so the full staging path is
// exercised end to end without a device.
package sim

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kestrel-os/kestrel/src/storage/lib/dma"
	"github.com/kestrel-os/kestrel/src/storage/logging"
	"github.com/kestrel-os/kestrel/src/storage/nvme"
)

const (
	// adminQueueBytes is the size of the simulated admin queue
	// structure allocated through the memory capability at init.
	adminQueueBytes = 4096
	// queueEntryBytes is the simulated per-entry queue memory cost.
	queueEntryBytes = 64
)

type (
	// NamespaceConfig describes one simulated namespace.
	NamespaceConfig struct {
		BlockCount uint64 `yaml:"block_count"`
		BlockSize  uint64 `yaml:"block_size"`
	}

	// Config describes the simulated controller geometry.
	Config struct {
		Namespaces      []NamespaceConfig `yaml:"namespaces"`
		MaxTransferSize int               `yaml:"max_transfer_size"`
		MaxQueueEntries uint16            `yaml:"max_queue_entries"`
	}
)

// DefaultConfig returns a single-namespace controller with 1MiB of
// storage and a 128KiB transfer limit.
func DefaultConfig() *Config {
	return &Config{
		Namespaces: []NamespaceConfig{
			{BlockCount: 2048, BlockSize: 512},
		},
		MaxTransferSize: 128 * 1024,
		MaxQueueEntries: 1024,
	}
}

// Validate checks the geometry for holes.
func (c *Config) Validate() error {
	if len(c.Namespaces) == 0 {
		return errors.New("config: at least one namespace required")
	}
	for i, ns := range c.Namespaces {
		if ns.BlockCount == 0 || ns.BlockSize == 0 {
			return errors.Errorf("config: namespace %d has zero geometry", i)
		}
	}
	if c.MaxTransferSize <= 0 {
		return errors.New("config: max_transfer_size must be positive")
	}
	if c.MaxQueueEntries == 0 {
		return errors.New("config: max_queue_entries must be positive")
	}
	return nil
}

// Backend implements nvme.Backend for the simulated engine.
type Backend struct {
	log      logging.Logger
	cfg      *Config
	resolver dma.BusResolver
}

// NewBackend returns a Backend building controllers with the given
// geometry. The resolver stands in for bus-mastering hardware access
// and must belong to the same provider the driver allocates from.
func NewBackend(log logging.Logger, cfg *Config, resolver dma.BusResolver) *Backend {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Backend{
		log:      log,
		cfg:      cfg,
		resolver: resolver,
	}
}

// Init builds the simulated controller, allocating its admin queue
// structure through the provided memory capability.
func (b *Backend) Init(base uintptr, mem nvme.Allocator) (nvme.Controller, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	adminAddr, err := mem.Allocate(adminQueueBytes)
	if err != nil {
		return nil, errors.Wrap(err, "allocate admin queue")
	}

	c := &Controller{
		log:       b.log,
		cfg:       b.cfg,
		resolver:  b.resolver,
		mem:       mem,
		serial:    uuid.New().String(),
		base:      base,
		adminAddr: adminAddr,
	}
	for i, nsCfg := range b.cfg.Namespaces {
		c.stores = append(c.stores, &namespaceStore{
			desc: nvme.Namespace{
				ID:         uint32(i) + 1,
				BlockCount: nsCfg.BlockCount,
				BlockSize:  nsCfg.BlockSize,
			},
			data: make([]byte, nsCfg.BlockCount*nsCfg.BlockSize),
		})
	}

	b.log.Debugf("sim: controller %s up with %d namespace(s)",
		c.serial, len(c.stores))

	return c, nil
}

type namespaceStore struct {
	desc nvme.Namespace
	data []byte
}

// Controller is a live simulated protocol engine.
type Controller struct {
	log       logging.Logger
	cfg       *Config
	resolver  dma.BusResolver
	mem       nvme.Allocator
	serial    string
	base      uintptr
	adminAddr uintptr
	stores    []*namespaceStore
}

// Serial returns the controller's synthetic serial number.
func (c *Controller) Serial() string {
	return c.serial
}

// IdentifyNamespaces returns descriptors for all namespaces with an id
// at or above startID.
func (c *Controller) IdentifyNamespaces(startID uint32) ([]nvme.Namespace, error) {
	namespaces := make([]nvme.Namespace, 0, len(c.stores))
	for _, store := range c.stores {
		if store.desc.ID >= startID {
			namespaces = append(namespaces, store.desc)
		}
	}
	return namespaces, nil
}

// CreateIOQueuePair builds a queue pair bound to the given namespace,
// allocating its queue memory through the memory capability.
func (c *Controller) CreateIOQueuePair(ns nvme.Namespace, entries uint16) (nvme.QueuePair, error) {
	if entries == 0 {
		return nil, errors.New("queue pair needs at least one entry")
	}
	if entries > c.cfg.MaxQueueEntries {
		return nil, errors.Errorf("%d entries exceeds controller maximum of %d",
			entries, c.cfg.MaxQueueEntries)
	}

	store := c.storeFor(ns.ID)
	if store == nil {
		return nil, errors.Errorf("unknown namespace %d", ns.ID)
	}

	queueAddr, err := c.mem.Allocate(int(entries) * queueEntryBytes)
	if err != nil {
		return nil, errors.Wrap(err, "allocate queue memory")
	}

	return &queuePair{
		controller: c,
		store:      store,
		queueAddr:  queueAddr,
	}, nil
}

// DeleteIOQueuePair tears down a queue pair created by this
// controller and returns its queue memory.
func (c *Controller) DeleteIOQueuePair(qp nvme.QueuePair) error {
	sqp, ok := qp.(*queuePair)
	if !ok || sqp.controller != c {
		return errors.New("queue pair does not belong to this controller")
	}
	if sqp.deleted {
		return errors.New("queue pair already deleted")
	}

	sqp.deleted = true
	c.mem.Deallocate(sqp.queueAddr)
	return nil
}

// Data reports the configured controller properties.
func (c *Controller) Data() nvme.ControllerData {
	return nvme.ControllerData{
		MaxTransferSize: c.cfg.MaxTransferSize,
		MaxQueueEntries: c.cfg.MaxQueueEntries,
	}
}

func (c *Controller) storeFor(nsID uint32) *namespaceStore {
	for _, store := range c.stores {
		if store.desc.ID == nsID {
			return store
		}
	}
	return nil
}

type queuePair struct {
	controller *Controller
	store      *namespaceStore
	queueAddr  uintptr
	deleted    bool
}

func (qp *queuePair) extent(length int, lba uint64) ([]byte, error) {
	if qp.deleted {
		return nil, errors.New("queue pair deleted")
	}

	blockSize := qp.store.desc.BlockSize
	offset := lba * blockSize
	if offset+uint64(length) > uint64(len(qp.store.data)) {
		return nil, errors.Errorf("transfer of %d bytes at LBA %d beyond namespace end",
			length, lba)
	}
	return qp.store.data[offset : offset+uint64(length)], nil
}

func (qp *queuePair) Read(bus uint64, length int, lba uint64) error {
	src, err := qp.extent(length, lba)
	if err != nil {
		return err
	}
	dest, err := qp.controller.resolver.Resolve(bus, length)
	if err != nil {
		return errors.Wrap(err, "resolve destination buffer")
	}

	copy(dest, src)
	return nil
}

func (qp *queuePair) Write(bus uint64, length int, lba uint64) error {
	dest, err := qp.extent(length, lba)
	if err != nil {
		return err
	}
	src, err := qp.controller.resolver.Resolve(bus, length)
	if err != nil {
		return errors.Wrap(err, "resolve source buffer")
	}

	copy(dest, src)
	return nil
}
