// Package sessionids implements the SessionIdentityStore collaborator
// (framer.SessionIdentityStore): the durable mapping from a FIX
// composite key to a stable session id, mirroring the SessionIds
// component described in the system this module's contracts were
// distilled from. Like every framer collaborator it is only ever
// called from the Framer's own goroutine, so it carries no locking of
// its own.
package sessionids

import "github.com/luxfi/fixgateway/internal/framer"

// Store is an in-memory SessionIdentityStore. A durable deployment
// would back this with the same store the engine itself persists
// sequence numbers to; this module only depends on the interface.
type Store struct {
	byKey  map[framer.CompositeKey]int64
	active map[int64]bool
	nextID int64
}

func New() *Store {
	return &Store{
		byKey:  make(map[framer.CompositeKey]int64),
		active: make(map[int64]bool),
	}
}

// OnLogon assigns a session id to key, minting a new one on first
// sight and reusing it on reconnect. It returns SessionIDDuplicate if
// the key is already bound to a session this store considers active —
// callers are expected to call Release once that session disconnects.
func (s *Store) OnLogon(key framer.CompositeKey) int64 {
	id, known := s.byKey[key]
	if !known {
		id = s.nextID
		s.nextID++
		s.byKey[key] = id
		s.active[id] = true
		return id
	}

	if s.active[id] {
		return framer.SessionIDDuplicate
	}

	s.active[id] = true
	return id
}

// Release marks a session id as no longer active, allowing a future
// OnLogon for the same composite key to succeed instead of reporting a
// duplicate.
func (s *Store) Release(sessionID int64) {
	delete(s.active, sessionID)
}
