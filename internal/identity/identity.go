// Package identity manages named, password-protected account documents.
//
// An account's DID is derived from an *insecure* passphrase (the username),
// so anyone can locate it; write access is protected by immediately
// transferring ownership to a second key derived from (password, username).
// Verification is a pure ownership check: the password is never stored, only
// the address it derives.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	dErrors "givingchain/pkg/domain-errors"
	"givingchain/pkg/platform/sentinel"

	"givingchain/internal/documents"
	"givingchain/internal/keyring"
)

// UsernamePath is where the account document caches its own username so it
// can be recovered later without the caller supplying it.
const UsernamePath = "givingchain/username"

// User is the externally visible account shape.
type User struct {
	DID      string
	Username string
}

// Actor is an authenticated principal: a user plus the signing key that
// authorizes their document mutations. Every lifecycle operation takes one
// explicitly; there is no ambient current-user state.
type Actor struct {
	DID      string
	Username string
	Key      *keyring.Key
}

// Authenticated reports whether the actor carries usable credentials.
func (a Actor) Authenticated() bool {
	return a.DID != "" && a.Key != nil
}

type actorKey struct{}

// WithActor injects an authenticated actor into the context. The auth
// middleware sets this; resolvers read it and hand it to the lifecycle
// engine explicitly.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the actor from the context; the zero Actor when absent.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}

// insecureUsernameKey derives the discoverable account key. The very first
// write to the resulting document must transfer ownership away from it.
func insecureUsernameKey(username string, namespace []byte) *keyring.Key {
	return keyring.Derive([]byte(username), namespace)
}

// securePasswordKey derives the key that actually owns the account.
func securePasswordKey(username, password string) *keyring.Key {
	return keyring.Derive([]byte(password), []byte(username))
}

// Service implements registration and login over the document store.
type Service struct {
	store     documents.Store
	namespace []byte
	logger    *slog.Logger
}

func NewService(store documents.Store, namespace []byte, logger *slog.Logger) *Service {
	return &Service{store: store, namespace: namespace, logger: logger}
}

// Namespace returns the user namespace this service registers into.
func (s *Service) Namespace() []byte { return s.namespace }

// Register creates the account document for username, transfers its
// ownership to the password-derived key, and records the username inside the
// document. Fails with already_exists when the username's document already
// resolves.
func (s *Service) Register(ctx context.Context, username, password string) (Actor, error) {
	insecure := insecureUsernameKey(username, s.namespace)
	did := insecure.DID()

	_, err := s.store.ResolveLatest(ctx, did)
	switch {
	case err == nil:
		return Actor{}, dErrors.New(dErrors.CodeAlreadyExists, "account already exists")
	case !errors.Is(err, sentinel.ErrNotFound):
		return Actor{}, dErrors.Wrap(dErrors.CodeUnavailable, "account lookup failed", err)
	}

	s.logger.InfoContext(ctx, "registering account", "did", did)

	secure := securePasswordKey(username, password)
	handle, err := CreateNamed(ctx, s.store, username, password, s.namespace,
		documents.SetData(UsernamePath, username))
	if err != nil {
		return Actor{}, err
	}
	return Actor{DID: handle.DID(), Username: username, Key: secure}, nil
}

// Verify checks a username/password pair against the account document's
// ownership set and returns the authenticated actor on success.
func (s *Service) Verify(ctx context.Context, username, password string) (Actor, error) {
	secure := securePasswordKey(username, password)

	doc, err := s.FindAccount(ctx, username)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")
		}
		return Actor{}, err
	}

	for _, entry := range doc.Ownership {
		if entry == secure.Address() {
			return Actor{DID: doc.DID, Username: username, Key: secure}, nil
		}
	}
	return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")
}

// FindAccount looks up an account document by username without
// authenticating, e.g. to add a collaborator's ownership addresses.
func (s *Service) FindAccount(ctx context.Context, username string) (*documents.Document, error) {
	insecure := insecureUsernameKey(username, s.namespace)
	doc, err := s.store.ResolveLatest(ctx, insecure.DID())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(dErrors.CodeNotFound, fmt.Sprintf("no account for %q", username), err)
		}
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "account lookup failed", err)
	}
	return doc, nil
}

// CreateNamed builds a named, password-protected document in one append:
// ownership moves to the password-derived key and any extra transactions
// (profile fields, addresses) land in the same batch. The returned handle is
// bound to the secure key so the caller can keep writing.
func CreateNamed(ctx context.Context, store documents.Store, name, password string, namespace []byte, extra ...documents.Transaction) (*documents.Handle, error) {
	insecure := keyring.Derive([]byte(name), namespace)
	secure := securePasswordKey(name, password)

	handle, err := documents.FindOrCreate(ctx, store, insecure.DID(), insecure)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "named document lookup failed", err)
	}

	txns := append([]documents.Transaction{documents.SetOwnership(secure.Address())}, extra...)
	if err := handle.Apply(ctx, txns...); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.Wrap(dErrors.CodeAlreadyExists, "named document was created concurrently", err)
		default:
			return nil, dErrors.Wrap(dErrors.CodeUnavailable, "named document write failed", err)
		}
	}

	// rebind to the secure key; the insecure key lost write access above
	rebound, err := documents.FindOrCreate(ctx, store, handle.DID(), secure)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "named document reload failed", err)
	}
	return rebound, nil
}
