// Package registry implements the shared, passphrase-discoverable documents
// that coordinate the parties of a region: the drivers registry any engine
// instance can locate, and the recipient directory of receiving facilities.
package registry

import (
	"context"
	"fmt"

	"givingchain/internal/documents"
	"givingchain/internal/keyring"
)

// DriversPath is the node holding the registered driver DIDs.
const DriversPath = "drivers"

// Drivers is the shared registry of driver DIDs for one region. Donations
// are created with a graft onto this registry so any registered driver can
// accept them without a per-driver grant.
type Drivers struct {
	handle *documents.Handle
}

// NewDrivers derives the registry key for (region, namespace) and loads or
// creates the backing document.
func NewDrivers(ctx context.Context, store documents.Store, region, namespace []byte, opts ...documents.HandleOption) (*Drivers, error) {
	key := keyring.Derive(region, namespace)
	handle, err := documents.FindOrCreate(ctx, store, key.DID(), key, opts...)
	if err != nil {
		return nil, fmt.Errorf("drivers registry %q: %w", region, err)
	}
	return &Drivers{handle: handle}, nil
}

func (d *Drivers) DID() string { return d.handle.DID() }

// GraftableOwnership returns the ownership entries a donation document
// carries so that the registry, and transitively every driver listed in it,
// can write to the donation.
func (d *Drivers) GraftableOwnership() []string {
	return []string{
		d.DID(),
		documents.GraftEntry(d.DID(), DriversPath),
	}
}

// AddDriver appends a driver DID to the registry list. Already-registered
// drivers are left in place.
func (d *Drivers) AddDriver(ctx context.Context, driverDID string) error {
	return d.handle.Update(ctx, func(doc *documents.Document) ([]documents.Transaction, error) {
		dids := didList(doc, DriversPath)
		for _, existing := range dids {
			if existing == driverDID {
				return nil, nil
			}
		}
		dids = append(dids, driverDID)
		return []documents.Transaction{documents.SetData(DriversPath, dids)}, nil
	})
}

// List refreshes and returns the registered driver DIDs.
func (d *Drivers) List(ctx context.Context) ([]string, error) {
	if err := d.handle.Refresh(ctx); err != nil {
		return nil, err
	}
	return didList(d.handle.Document(), DriversPath), nil
}

// IsDriver reports whether did is registered.
func (d *Drivers) IsDriver(ctx context.Context, did string) (bool, error) {
	dids, err := d.List(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range dids {
		if existing == did {
			return true, nil
		}
	}
	return false, nil
}

// didList reads a list of DIDs at path; an absent node is an empty list.
func didList(doc *documents.Document, path string) []string {
	raw, found := doc.Resolve(path)
	if !found {
		return []string{}
	}
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	dids := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			dids = append(dids, s)
		}
	}
	return dids
}
