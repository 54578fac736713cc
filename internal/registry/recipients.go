package registry

import (
	"context"
	"fmt"

	dErrors "givingchain/pkg/domain-errors"

	"givingchain/internal/documents"
	"givingchain/internal/identity"
	"givingchain/internal/keyring"
	"givingchain/internal/trackable"
)

// RecipientNamespace scopes recipient account documents away from ordinary
// user accounts, so a facility name cannot collide with a username.
const RecipientNamespace = "givingchain/recipient"

// Document paths inside a recipient account.
const (
	RecipientAddressPath      = RecipientNamespace + "/address"
	RecipientInstructionsPath = RecipientNamespace + "/instructions"
	recipientListPath         = RecipientNamespace + "/collection"
)

// Recipient is the read model for a receiving facility.
type Recipient struct {
	DID          string
	Name         string
	Address      trackable.Address
	Instructions string
}

// CreateRecipient registers a receiving facility: a named, password-owned
// account document carrying its delivery address and dropoff instructions,
// written in the same batch as the ownership transfer.
func CreateRecipient(ctx context.Context, store documents.Store, name, password string, addr trackable.Address, instructions string) (*Recipient, error) {
	handle, err := identity.CreateNamed(ctx, store, name, password, []byte(RecipientNamespace),
		documents.SetData(RecipientAddressPath, addr),
		documents.SetData(RecipientInstructionsPath, instructions),
	)
	if err != nil {
		return nil, err
	}
	return &Recipient{
		DID:          handle.DID(),
		Name:         name,
		Address:      addr,
		Instructions: instructions,
	}, nil
}

// RecipientFromDocument assembles a recipient read model from its account
// document.
func RecipientFromDocument(doc *documents.Document) *Recipient {
	r := &Recipient{DID: doc.DID}
	if v, ok := doc.Resolve(identity.UsernamePath); ok {
		r.Name, _ = v.(string)
	}
	if v, ok := doc.Resolve(RecipientAddressPath); ok {
		if addr, ok := addressFromAny(v); ok {
			r.Address = addr
		}
	}
	if v, ok := doc.Resolve(RecipientInstructionsPath); ok {
		r.Instructions, _ = v.(string)
	}
	return r
}

// Recipients is the per-region directory of receiving facilities. Like the
// drivers registry it lives at a key derived from the region name, so every
// instance serving a region converges on the same document.
type Recipients struct {
	store  documents.Store
	handle *documents.Handle
}

// NewRecipients loads or creates the recipient directory for region.
func NewRecipients(ctx context.Context, store documents.Store, region []byte, opts ...documents.HandleOption) (*Recipients, error) {
	key := keyring.Derive(region, []byte(RecipientNamespace))
	handle, err := documents.FindOrCreate(ctx, store, key.DID(), key, opts...)
	if err != nil {
		return nil, fmt.Errorf("recipient directory %q: %w", region, err)
	}
	return &Recipients{store: store, handle: handle}, nil
}

func (r *Recipients) DID() string { return r.handle.DID() }

// Add records a recipient DID in the directory. Re-adding is a no-op.
func (r *Recipients) Add(ctx context.Context, recipientDID string) error {
	return r.handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		dids := didList(doc, recipientListPath)
		for _, existing := range dids {
			if existing == recipientDID {
				return nil, nil
			}
		}
		dids = append(dids, recipientDID)
		return []documents.Transaction{documents.SetData(recipientListPath, dids)}, nil
	})
}

// All refreshes and returns the listed recipient DIDs in insertion order.
func (r *Recipients) All(ctx context.Context) ([]string, error) {
	if err := r.handle.Refresh(ctx); err != nil {
		return nil, err
	}
	return didList(r.handle.Document(), recipientListPath), nil
}

// ResolveAll resolves every listed recipient to its read model, skipping
// entries whose account document has vanished.
func (r *Recipients) ResolveAll(ctx context.Context) ([]*Recipient, error) {
	dids, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Recipient, 0, len(dids))
	for _, did := range dids {
		doc, err := r.store.ResolveLatest(ctx, did)
		if err != nil {
			continue
		}
		out = append(out, RecipientFromDocument(doc))
	}
	return out, nil
}

// First returns the earliest-registered recipient, the default delivery
// target for a completed donation.
func (r *Recipients) First(ctx context.Context) (*Recipient, error) {
	dids, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(dids) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no recipients registered")
	}
	doc, err := r.store.ResolveLatest(ctx, dids[0])
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "recipient lookup failed", err)
	}
	return RecipientFromDocument(doc), nil
}

func addressFromAny(val any) (trackable.Address, bool) {
	tree, ok := val.(map[string]any)
	if !ok {
		return trackable.Address{}, false
	}
	var addr trackable.Address
	addr.Street, _ = tree["street"].(string)
	addr.CityStateZip, _ = tree["cityStateZip"].(string)
	return addr, addr.Street != "" || addr.CityStateZip != ""
}
