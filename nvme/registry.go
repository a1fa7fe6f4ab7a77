//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

import (
	"sort"
	"strconv"
	"sync"

	"github.com/kestrel-os/kestrel/src/storage/logging"
)

// DefaultQueuePairCapacity bounds the number of concurrently live I/O
// queue pairs per driver instance.
const DefaultQueuePairCapacity = 2

// QueuePairID names a live I/O queue pair. Ids are unique among
// currently live pairs and are reused after deletion; callers hold
// only the id, never the underlying handle.
type QueuePairID int

func (id QueuePairID) String() string {
	return strconv.Itoa(int(id))
}

// QueuePairRegistry is the bounded table mapping ids to live queue
// pairs. It owns id assignment and reuse: creation always assigns the
// lowest id not currently in use, so reuse is deterministic and
// collision-free regardless of deletion order.
//
// One mutex serializes all table access, and queue-pair operations run
// while it is held. Hardware submissions through one driver instance
// are therefore serialized; the lock is never held across anything
// that blocks on another lock.
type QueuePairRegistry struct {
	log        logging.Logger
	controller Controller
	capacity   int

	mu    sync.Mutex
	pairs map[QueuePairID]QueuePair
}

// NewQueuePairRegistry returns a registry creating queue pairs through
// the given controller. A capacity < 1 falls back to the default.
func NewQueuePairRegistry(log logging.Logger, controller Controller, capacity int) *QueuePairRegistry {
	if capacity < 1 {
		capacity = DefaultQueuePairCapacity
	}
	return &QueuePairRegistry{
		log:        log,
		controller: controller,
		capacity:   capacity,
		pairs:      make(map[QueuePairID]QueuePair),
	}
}

// Capacity returns the maximum number of concurrently live queue pairs.
func (r *QueuePairRegistry) Capacity() int {
	return r.capacity
}

// Create builds a new queue pair bound to the namespace returned by
// resolve and inserts it under the lowest free id. The namespace is
// resolved under the table lock so that the handle passed to the
// controller cannot go stale between resolution and creation.
func (r *QueuePairRegistry) Create(entries uint16, resolve func() (Namespace, error)) (QueuePairID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pairs) >= r.capacity {
		return 0, FaultRegistryFull(r.capacity)
	}

	ns, err := resolve()
	if err != nil {
		return 0, err
	}

	qp, err := r.controller.CreateIOQueuePair(ns, entries)
	if err != nil {
		return 0, FaultQueuePairCreateFailed(err)
	}

	id := r.lowestFreeID()
	r.pairs[id] = qp

	r.log.Debugf("nvme: created I/O queue pair %d (namespace %d, %d entries)",
		id, ns.ID, entries)

	return id, nil
}

// Delete removes the entry for id and hands the owned handle back to
// the controller for teardown. A teardown failure is propagated as a
// distinct error; the entry is still removed so the id becomes free,
// rather than leaving a half-dead pair in the table.
func (r *QueuePairRegistry) Delete(id QueuePairID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	qp, found := r.pairs[id]
	if !found {
		return FaultQueuePairNotFound(id)
	}
	delete(r.pairs, id)

	if err := r.controller.DeleteIOQueuePair(qp); err != nil {
		return FaultQueuePairDeleteFailed(id, err)
	}

	r.log.Debugf("nvme: deleted I/O queue pair %d", id)

	return nil
}

// With looks up id and applies op to the queue pair while holding the
// table lock.
func (r *QueuePairRegistry) With(id QueuePairID, op func(QueuePair) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	qp, found := r.pairs[id]
	if !found {
		return FaultQueuePairNotFound(id)
	}

	return op(qp)
}

// Live returns the ids of all live queue pairs in ascending order.
func (r *QueuePairRegistry) Live() []QueuePairID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]QueuePairID, 0, len(r.pairs))
	for id := range r.pairs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// lowestFreeID scans the id space for the lowest id not currently in
// use. The caller holds the table lock and has already checked that
// the table is not full, so the scan always finds a free id.
func (r *QueuePairRegistry) lowestFreeID() QueuePairID {
	for id := QueuePairID(0); int(id) < r.capacity; id++ {
		if _, inUse := r.pairs[id]; !inUse {
			return id
		}
	}

	panic("nvme: queue pair table full past its capacity check")
}
