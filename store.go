package utubettl

import (
	"math"

	"github.com/google/btree"
)

// btreeDegree is the branching factor for every index. 32 is the value
// google/btree's own benchmarks settle on for pointer-sized items.
const btreeDegree = 32

// store is the indexed tuple store adapter described in spec section 4.1:
// a thin contract over an ordered container, exposing the three secondary
// indexes (status_pri, watch, utube) plus the primary (id) index, per spec
// section 3. Every tree holds *Task pointers; mutating a Task's ordering
// fields in place without first removing it from the trees that key on
// those fields would corrupt their invariants, so all mutation goes through
// store.updateStatus.
type store struct {
	byID      map[uint64]*Task
	primary   *btree.BTreeG[*Task] // (id)
	statusPri *btree.BTreeG[*Task] // (status, pri, id)
	watch     *btree.BTreeG[*Task] // (status, next_event, id)
	utube     *btree.BTreeG[*Task] // (status, utube, id)
}

func newStore() *store {
	return &store{
		byID:      make(map[uint64]*Task),
		primary:   btree.NewG(btreeDegree, lessPrimary),
		statusPri: btree.NewG(btreeDegree, lessStatusPri),
		watch:     btree.NewG(btreeDegree, lessWatch),
		utube:     btree.NewG(btreeDegree, lessUTube),
	}
}

func lessPrimary(a, b *Task) bool { return a.ID < b.ID }

func lessStatusPri(a, b *Task) bool {
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	if a.Pri != b.Pri {
		return a.Pri < b.Pri
	}
	return a.ID < b.ID
}

func lessWatch(a, b *Task) bool {
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	if a.NextEvent != b.NextEvent {
		return a.NextEvent < b.NextEvent
	}
	return a.ID < b.ID
}

func lessUTube(a, b *Task) bool {
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	if a.UTube != b.UTube {
		return a.UTube < b.UTube
	}
	return a.ID < b.ID
}

// maxID implements spec invariant I2: the next id is one more than the
// largest currently stored, or 0 if the store is empty.
func (s *store) maxID() uint64 {
	if max, ok := s.primary.Max(); ok {
		return max.ID + 1
	}
	return 0
}

// insert adds a brand-new task to every index. Callers must have already
// assigned a unique, monotone ID.
func (s *store) insert(t *Task) {
	s.byID[t.ID] = t
	s.primary.ReplaceOrInsert(t)
	s.statusPri.ReplaceOrInsert(t)
	s.watch.ReplaceOrInsert(t)
	s.utube.ReplaceOrInsert(t)
}

// get looks up a task by id without modifying anything.
func (s *store) get(id uint64) (*Task, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// remove deletes a task from every index and the live map. It is the only
// way a task leaves the store (spec section 3, lifecycle).
func (s *store) remove(id uint64) (*Task, bool) {
	t, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	s.primary.Delete(t)
	s.statusPri.Delete(t)
	s.watch.Delete(t)
	s.utube.Delete(t)
	return t, true
}

// updateStatus transitions a task in place, re-keying the status_pri,
// watch, and utube indexes (which all key on status) around the mutation.
// The primary index is untouched, since it keys on id alone.
func (s *store) updateStatus(t *Task, status Status, nextEvent uint64) {
	s.statusPri.Delete(t)
	s.watch.Delete(t)
	s.utube.Delete(t)

	t.Status = status
	t.NextEvent = nextEvent

	s.statusPri.ReplaceOrInsert(t)
	s.watch.ReplaceOrInsert(t)
	s.utube.ReplaceOrInsert(t)
}

// firstByStatusPri returns the lowest (pri, id) task with the given status,
// used by take and kick.
func (s *store) firstByStatusPri(status Status) (*Task, bool) {
	probe := &Task{Status: status, Pri: math.MinInt64, ID: 0}
	var found *Task
	s.statusPri.AscendGreaterOrEqual(probe, func(item *Task) bool {
		if item.Status == status {
			found = item
		}
		return false
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// firstByWatch returns the earliest-expiring (smallest next_event) task in
// the given status, used by the timekeeper's five scan heads.
func (s *store) firstByWatch(status Status) (*Task, bool) {
	probe := &Task{Status: status, NextEvent: 0, ID: 0}
	var found *Task
	s.watch.AscendGreaterOrEqual(probe, func(item *Task) bool {
		if item.Status == status {
			found = item
		}
		return false
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// firstBlockedInUTube returns the oldest (smallest id) BLOCKED task in a
// micro-tube, used by unblock_one.
func (s *store) firstBlockedInUTube(utube string) (*Task, bool) {
	probe := &Task{Status: StatusBlocked, UTube: utube, ID: 0}
	var found *Task
	s.utube.AscendGreaterOrEqual(probe, func(item *Task) bool {
		if item.Status == StatusBlocked && item.UTube == utube {
			found = item
		}
		return false
	})
	if found == nil {
		return nil, false
	}
	return found, true
}

// countUTube returns the number of tasks in the given status and tube.
func (s *store) countUTube(status Status, utube string) int {
	var n int
	probe := &Task{Status: status, UTube: utube, ID: 0}
	s.utube.AscendGreaterOrEqual(probe, func(item *Task) bool {
		if item.Status != status || item.UTube != utube {
			return false
		}
		n++
		return true
	})
	return n
}
