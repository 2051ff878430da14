// Package errs defines the behavioral error taxonomy shared by the core
// packages, following the same package-level sentinel-error convention as
// tiny_txn's z_error.go, consolidated into one place since the taxonomy is
// explicitly cross-cutting.
package errs

import "errors"

// Kind classifies a sentinel error into one of the behavioral categories a
// caller must react to differently.
type Kind int

const (
	// KindUnknown is returned by Classify for errors with no Kind: errors
	// from outside this package, and ErrAlreadyConnected, ErrEmpty and
	// ErrUnknownPeer.
	KindUnknown Kind = iota
	KindNotConnected
	KindShuttingDown
	KindInvalid
	KindInterrupted
	KindTransient
	KindFatal
)

var (
	// ErrNotConnected is returned when an operation requires an activated
	// peer but the peer's Active is still new.
	ErrNotConnected = errors.New("kbus: peer is not connected")
	// ErrAlreadyConnected is returned by a second peer_connect call.
	ErrAlreadyConnected = errors.New("kbus: peer is already connected")
	// ErrShuttingDown is returned when acquire fails because the object
	// has been deactivated.
	ErrShuttingDown = errors.New("kbus: object is shutting down")
	// ErrInvalid marks malformed parameters, e.g. a non-odd staging
	// timestamp where one is required.
	ErrInvalid = errors.New("kbus: invalid argument")
	// ErrInterrupted marks a cancelled blocking wait; the caller may retry.
	ErrInterrupted = errors.New("kbus: wait interrupted")
	// ErrTransient marks a transient resource failure; the caller may retry.
	ErrTransient = errors.New("kbus: transient failure")
	// ErrFatal marks an internal invariant violation.
	ErrFatal = errors.New("kbus: internal invariant violation")
	// ErrEmpty marks a queue with no ready entry (RECV on an empty queue).
	ErrEmpty = errors.New("kbus: queue is empty")
	// ErrUnknownPeer marks a destination that does not resolve to a peer.
	ErrUnknownPeer = errors.New("kbus: unknown peer")
)

var kinds = map[error]Kind{
	ErrNotConnected: KindNotConnected,
	ErrShuttingDown: KindShuttingDown,
	ErrInvalid:      KindInvalid,
	ErrInterrupted:  KindInterrupted,
	ErrTransient:    KindTransient,
	ErrFatal:        KindFatal,
}

// Classify maps an error produced by this module to its behavioral Kind. It
// unwraps with errors.Is, so wrapped sentinels classify correctly.
func Classify(err error) Kind {
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
