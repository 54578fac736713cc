package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the document layer
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document does not resolve in the store (often recoverable:
//   the handle layer treats it as "still at the original empty state")
// - ErrConflict: the expected tip is stale; another writer advanced first
// - ErrUnauthorized: signer address is not in the document's ownership set
// - ErrUnavailable: transport or infrastructure failure
// - ErrAlreadyExists: creation collided with an existing document
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnavailable   = errors.New("unavailable")
	ErrAlreadyExists = errors.New("already exists")
)
