package heap

import (
	"sync"

	"github.com/wippyai/faultdomain"
)

// slotTable stores heap values with owner tags, generations and borrow counts.
// A key packs a handle and its generation so stale keys never reach a reused slot.
type slotTable struct {
	slots    []slot
	freeList []Handle
	mu       sync.RWMutex
}

type slot struct {
	value    any
	owner    faultdomain.ID
	gen      uint32
	borrows  uint32
	valid    bool
	poisoned bool
}

type slotKey uint64

func makeKey(h Handle, gen uint32) slotKey {
	return slotKey(uint64(h)<<32 | uint64(gen))
}

func (k slotKey) handle() Handle { return Handle(k >> 32) }
func (k slotKey) gen() uint32    { return uint32(k) }

func newSlotTable() *slotTable {
	return &slotTable{
		slots:    make([]slot, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (t *slotTable) create(owner faultdomain.ID, value any) slotKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		s := &t.slots[h-1]
		gen := s.gen + 1
		*s = slot{value: value, owner: owner, gen: gen, valid: true}
		return makeKey(h, gen)
	}

	t.slots = append(t.slots, slot{value: value, owner: owner, gen: 1, valid: true})
	return makeKey(Handle(len(t.slots)), 1)
}

// lookup returns the slot for k. Caller must hold t.mu.
func (t *slotTable) lookup(k slotKey) (*slot, state) {
	h := k.handle()
	if h == 0 || int(h) > len(t.slots) {
		return nil, stateMoved
	}
	s := &t.slots[h-1]
	if !s.valid || s.gen != k.gen() {
		return nil, stateMoved
	}
	if s.poisoned {
		return s, statePoisoned
	}
	return s, stateOK
}

func (t *slotTable) get(k slotKey) (any, state) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, st := t.lookup(k)
	if st != stateOK {
		return nil, st
	}
	return s.value, stateOK
}

func (t *slotTable) setOwner(k slotKey, owner faultdomain.ID) state {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, st := t.lookup(k)
	if st != stateOK {
		return st
	}
	if s.borrows > 0 {
		return stateBorrowed
	}
	s.owner = owner
	return stateOK
}

func (t *slotTable) borrow(k slotKey) state {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, st := t.lookup(k)
	if st != stateOK {
		return st
	}
	s.borrows++
	return stateOK
}

func (t *slotTable) returnBorrow(k slotKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, _ := t.lookup(k)
	if s == nil || s.borrows == 0 {
		return false
	}
	s.borrows--
	return true
}

func (t *slotTable) poison(k slotKey) (faultdomain.ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, st := t.lookup(k)
	if st != stateOK {
		return 0, false
	}
	s.poisoned = true
	return s.owner, true
}

// drop frees the slot unless it is borrowed.
func (t *slotTable) drop(k slotKey) (faultdomain.ID, state) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, st := t.lookup(k)
	if s == nil {
		return 0, st
	}
	if s.borrows > 0 {
		return 0, stateBorrowed
	}
	owner := s.owner
	t.release(k.handle())
	return owner, stateOK
}

// release frees slot h. Caller must hold t.mu.
func (t *slotTable) release(h Handle) {
	s := &t.slots[h-1]
	s.value = nil
	s.valid = false
	s.poisoned = false
	s.borrows = 0
	s.owner = faultdomain.NoDomain
	t.freeList = append(t.freeList, h)
}

// reclaim frees every valid slot accepted by match and returns their handles and owners.
func (t *slotTable) reclaim(match func(*slot) bool) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	for i := range t.slots {
		s := &t.slots[i]
		if !s.valid || !match(s) {
			continue
		}
		events = append(events, Event{Handle: Handle(i + 1), Owner: s.owner, Type: EventReclaimed})
		t.release(Handle(i + 1))
	}
	return events
}

func (t *slotTable) stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var st Stats
	for _, s := range t.slots {
		if !s.valid {
			continue
		}
		st.Live++
		if s.borrows > 0 {
			st.Borrowed++
		}
		if s.poisoned {
			st.Poisoned++
		}
	}
	return st
}
