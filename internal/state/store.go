package state

import "sync"

// Store owns a State and serializes every reduction through a single
// goroutine. REST completions and push deliveries happen on arbitrary
// goroutines; funneling them through Dispatch is the only discipline
// required — the loop applies them one at a time, so the reducer itself
// needs no locking.
type Store struct {
	dispatchC  chan Event
	snapshotC  chan chan State
	subscribeC chan func(State)
	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewStore starts the dispatch loop with the empty pre-load state.
func NewStore() *Store {
	st := &Store{
		dispatchC:  make(chan Event, 64),
		snapshotC:  make(chan chan State),
		subscribeC: make(chan func(State)),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go st.run()
	return st
}

func (st *Store) run() {
	defer close(st.done)

	s := NewState()
	var subs []func(State)

	for {
		select {
		case ev := <-st.dispatchC:
			s = Reduce(s, ev)
			for _, fn := range subs {
				fn(s)
			}
		case reply := <-st.snapshotC:
			// Drain queued events first so a caller that dispatched and
			// then asked for a snapshot sees its own writes.
			for drained := false; !drained; {
				select {
				case ev := <-st.dispatchC:
					s = Reduce(s, ev)
					for _, fn := range subs {
						fn(s)
					}
				default:
					drained = true
				}
			}
			reply <- s
		case fn := <-st.subscribeC:
			subs = append(subs, fn)
		case <-st.quit:
			return
		}
	}
}

// Dispatch queues an event for reduction. Events from one goroutine are
// applied in the order dispatched.
func (st *Store) Dispatch(ev Event) {
	select {
	case st.dispatchC <- ev:
	case <-st.quit:
	}
}

// Snapshot returns the state after all previously dispatched events from
// the calling goroutine have been applied. The snapshot stays valid as
// later events are reduced; Reduce copies before modifying.
func (st *Store) Snapshot() State {
	reply := make(chan State, 1)
	select {
	case st.snapshotC <- reply:
		return <-reply
	case <-st.quit:
		return NewState()
	}
}

// Subscribe registers fn to run on the dispatch goroutine after every
// reduction. fn must not call back into the store synchronously.
func (st *Store) Subscribe(fn func(State)) {
	select {
	case st.subscribeC <- fn:
	case <-st.quit:
	}
}

// Close stops the dispatch loop. Dispatch and Snapshot become no-ops.
func (st *Store) Close() {
	st.closeOnce.Do(func() { close(st.quit) })
	<-st.done
}
