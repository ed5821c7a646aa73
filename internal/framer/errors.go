package framer

import "github.com/cockroachdb/errors"

// ErrorHandler is the collaborator hard failures are reported to —
// non-leader accepts, post-establishment socket errors, invariant
// violations (spec.md §7). It never sees soft failures (Backpressured)
// or protocol errors (those are published to the offending library via
// PublicationBus.SaveError instead).
type ErrorHandler interface {
	OnError(err error)
}

// ErrNotLeader is reported to the ErrorHandler when an accepted socket
// must be closed because this node is not the cluster leader
// (spec.md §3 invariants, §4.3 accept path step 1).
var ErrNotLeader = errors.New("framer: node is not leader, refusing connection")

// ErrFramerClosed names the closed-Framer condition. No Framer method
// returns it: after Close, DoWork returns 0 and Close returns nil.
var ErrFramerClosed = errors.New("framer: closed")

// errDialAlreadyResolved guards against polling a PendingConnect again
// after it has already handed back a conn or error.
var errDialAlreadyResolved = errors.New("framer: pending connect already resolved")

// errUnknownConnection formats the message of the SaveError published
// when a command references a connection id the Framer has no record of.
func errUnknownConnection(connectionID int64) error {
	return errors.Newf("framer: unknown connection id %d", connectionID)
}

func errUnknownLibrary(libraryID int32) error {
	return errors.Newf("framer: unknown library id %d", libraryID)
}
