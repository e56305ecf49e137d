package utubettl

import "time"

// PutOptions configures Put. Zero-value fields fall back to the queue's
// configured defaults (spec section 6).
type PutOptions struct {
	// TTL overrides the queue default time-to-live for this task. Zero
	// means "use the queue default".
	TTL time.Duration

	// TTR overrides the queue default time-to-run. Zero means "use the
	// queue default".
	TTR time.Duration

	// Pri is this task's priority; lower values are served first. Zero is
	// a valid priority and the default.
	Pri int64

	// UTube is the micro-tube key. The empty string is a valid tube and
	// the default.
	UTube string

	// Delay, if positive, puts the task in StatusDelayed for this long
	// before it becomes eligible.
	Delay time.Duration
}

// Put enqueues data, returning the resulting Task (including its assigned
// ID). Per spec section 4.2: a positive Delay always yields StatusDelayed
// with the task's effective ttl extended by the delay; otherwise the task
// is admitted immediately via the limit accountant.
func (q *Queue) Put(data any, opts PutOptions) Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = q.defaultTTL
	}
	ttr := opts.TTR
	if ttr <= 0 {
		ttr = q.defaultTTR
	}

	now := nowMicros()
	t := &Task{
		ID:      q.store.maxID(),
		TTL:     ttl,
		TTR:     ttr,
		Pri:     opts.Pri,
		Created: now,
		UTube:   opts.UTube,
		Data:    data,
	}

	if opts.Delay > 0 {
		t.TTL = ttl + opts.Delay
		t.Status = StatusDelayed
		t.NextEvent = now + durationMicros(opts.Delay)
	} else {
		t.Status = q.limits.admit(q.store, t.UTube)
		t.NextEvent = addMicros(now, ttl)
	}

	q.store.insert(t)
	q.emit(t.clone(), EventPut)
	return t.clone()
}

// Take claims the highest-priority (lowest pri, then lowest id) READY task,
// transitioning it to StatusTaken with a fresh ttr deadline. It returns
// false if no task is currently READY; the core never blocks waiting for
// one, per spec section 4.2.
func (q *Queue) Take() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.store.firstByStatusPri(StatusReady)
	if !ok {
		return Task{}, false
	}

	now := nowMicros()
	q.store.updateStatus(t, StatusTaken, now+durationMicros(t.TTR))
	q.emit(t.clone(), EventTake)
	return t.clone(), true
}

// ReleaseOptions configures Release.
type ReleaseOptions struct {
	// Delay, if positive, returns the task to StatusDelayed for this long,
	// extending its ttl by the same amount. Otherwise the task goes to
	// StatusBlocked, preserving its original ttl deadline.
	Delay time.Duration
}

// Release returns a taken (or any existing) task to circulation. Per spec
// section 4.2, a task released without a Delay always lands in
// StatusBlocked (never directly StatusReady), and with a Delay in
// StatusDelayed: the subsequent unblockOne call re-promotes the oldest
// BLOCKED peer in the tube, which favours older tasks over the one just
// released.
func (q *Queue) Release(id uint64, opts ReleaseOptions) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.store.get(id)
	if !ok {
		return Task{}, false
	}
	prior := t.Status

	if opts.Delay > 0 {
		t.TTL += opts.Delay
		q.store.updateStatus(t, StatusDelayed, nowMicros()+durationMicros(opts.Delay))
	} else {
		q.store.updateStatus(t, StatusBlocked, t.Created+durationMicros(t.TTL))
	}

	q.emit(t.clone(), EventRelease)

	if prior == StatusReady || prior == StatusTaken {
		q.unblockOne(t.UTube)
	}
	return t.clone(), true
}

// Delete removes a task from the queue entirely, emitting a synthetic
// StatusDone event carrying the task's last known fields (spec invariant
// I4: StatusDone is never stored, only reported).
func (q *Queue) Delete(id uint64) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.store.remove(id)
	if !ok {
		return Task{}, false
	}
	prior := t.Status
	utube := t.UTube

	done := t.clone()
	done.Status = StatusDone
	q.emit(done, EventDelete)

	if prior == StatusReady || prior == StatusTaken {
		q.unblockOne(utube)
	}
	return done, true
}

// Bury quarantines a task unconditionally. Its next_event is left
// untouched: a buried task still carries its original ttl deadline, per
// spec section 4.2.
func (q *Queue) Bury(id uint64) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.store.get(id)
	if !ok {
		return Task{}, false
	}
	prior := t.Status
	utube := t.UTube

	q.store.updateStatus(t, StatusBuried, t.NextEvent)
	q.emit(t.clone(), EventBury)

	if prior == StatusReady || prior == StatusTaken {
		q.unblockOne(utube)
	}
	return t.clone(), true
}

// Kick admits up to n BURIED tasks (lowest pri, then smallest id, first, via
// the status_pri index), returning the number actually kicked. It stops
// early if no BURIED task remains.
func (q *Queue) Kick(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var kicked int
	for i := 0; i < n; i++ {
		t, ok := q.store.firstByStatusPri(StatusBuried)
		if !ok {
			break
		}
		q.store.updateStatus(t, q.limits.admit(q.store, t.UTube), t.NextEvent)
		q.emit(t.clone(), EventKick)
		kicked++
	}
	return kicked
}

// Peek returns a task by id without modifying it.
func (q *Queue) Peek(id uint64) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.store.get(id)
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}
