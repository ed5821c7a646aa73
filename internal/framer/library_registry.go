package framer

// LibraryRegistry is the set of libraries currently connected to the
// engine, keyed by their stable library id. Like GatewaySessions it is
// only ever touched from the Framer's single thread.
type LibraryRegistry struct {
	libraries map[int32]*Library
}

func NewLibraryRegistry() *LibraryRegistry {
	return &LibraryRegistry{libraries: make(map[int32]*Library)}
}

// Connect registers a library, returning the Library record and whether
// this is the first time it has been observed (as opposed to a duplicate
// LibraryConnect from an already-registered library).
func (r *LibraryRegistry) Connect(libraryID, aeronSessionID int32, nowMs int64) (lib *Library, isNew bool) {
	if existing, ok := r.libraries[libraryID]; ok {
		existing.AeronSessionID = aeronSessionID
		existing.LastHeartbeatMs = nowMs
		return existing, false
	}
	lib = newLibrary(libraryID, aeronSessionID, nowMs)
	r.libraries[libraryID] = lib
	return lib, true
}

func (r *LibraryRegistry) Get(libraryID int32) (*Library, bool) {
	lib, ok := r.libraries[libraryID]
	return lib, ok
}

func (r *LibraryRegistry) Remove(libraryID int32) {
	delete(r.libraries, libraryID)
}

func (r *LibraryRegistry) Heartbeat(libraryID int32, nowMs int64) bool {
	lib, ok := r.libraries[libraryID]
	if !ok {
		return false
	}
	lib.LastHeartbeatMs = nowMs
	return true
}

// TimedOut returns every library whose last heartbeat is older than
// replyTimeoutMs, without mutating the registry — the caller
// (reclaimLibrary) calls Remove for each one itself.
func (r *LibraryRegistry) TimedOut(nowMs, replyTimeoutMs int64) []*Library {
	var out []*Library
	for _, lib := range r.libraries {
		if nowMs-lib.LastHeartbeatMs > replyTimeoutMs {
			out = append(out, lib)
		}
	}
	return out
}

func (r *LibraryRegistry) All() []*Library {
	out := make([]*Library, 0, len(r.libraries))
	for _, lib := range r.libraries {
		out = append(out, lib)
	}
	return out
}

func (r *LibraryRegistry) Len() int {
	return len(r.libraries)
}
