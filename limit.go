package utubettl

// limitAccountant computes micro-tube admission decisions and preserves
// spec invariant I1 (READY+TAKEN count per tube never exceeds its limit)
// across every task operation.
type limitAccountant struct {
	limits       map[string]int
	defaultLimit int
}

func newLimitAccountant(limits map[string]int) *limitAccountant {
	if limits == nil {
		limits = make(map[string]int)
	}
	return &limitAccountant{limits: limits, defaultLimit: 1}
}

func (a *limitAccountant) limitFor(utube string) int {
	if l, ok := a.limits[utube]; ok {
		return l
	}
	return a.defaultLimit
}

// admit implements spec section 4.1's admit operation: it returns the
// status a new or kicked task should enter, given the current occupancy of
// its micro-tube. TAKEN is counted first so that a full tube short-circuits
// without probing the READY count.
func (a *limitAccountant) admit(s *store, utube string) Status {
	limit := a.limitFor(utube)
	n := s.countUTube(StatusTaken, utube)
	if n < limit {
		n += s.countUTube(StatusReady, utube)
	}
	if n < limit {
		return StatusReady
	}
	return StatusBlocked
}

// unblockOne locates the oldest BLOCKED task in utube and promotes it to
// READY, emitting a change event. It is called by every operation that
// removes a READY or TAKEN task from a tube, per spec section 4.1.
func (q *Queue) unblockOne(utube string) {
	t, ok := q.store.firstBlockedInUTube(utube)
	if !ok {
		return
	}
	q.store.updateStatus(t, StatusReady, t.Created+durationMicros(t.TTL))
	q.emit(t.clone(), EventNone)
}
