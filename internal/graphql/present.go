package graphql

import (
	"time"

	"givingchain/internal/identity"
	"givingchain/internal/registry"
	"givingchain/internal/trackable"
)

// The wire shapes are plain maps; field names here are the schema's field
// names, resolved by the default map resolver.

func presentTrackable(t *trackable.Trackable) map[string]any {
	out := map[string]any{
		"did":    t.DID,
		"name":   t.Name,
		"image":  t.Image,
		"status": string(t.Status),
		"updates": map[string]any{
			"edges": presentUpdates(t.Updates),
		},
		"metadata": presentMetadata(t.Metadata),
	}
	if t.Driver != "" {
		out["driver"] = map[string]any{"did": t.Driver}
	}
	if len(t.Collaborators) > 0 {
		edges := make([]any, 0, len(t.Collaborators))
		for _, did := range t.Collaborators {
			edges = append(edges, map[string]any{"did": did})
		}
		out["collaborators"] = map[string]any{"edges": edges}
	}
	return out
}

func presentUpdates(updates []trackable.Update) []any {
	edges := make([]any, 0, len(updates))
	for _, u := range updates {
		edges = append(edges, presentUpdate(u))
	}
	return edges
}

func presentUpdate(u trackable.Update) map[string]any {
	return map[string]any{
		"did":       u.ID,
		"timestamp": u.Timestamp.UTC().Format(time.RFC3339),
		"message":   u.Message,
		"metadata":  presentMetadata(u.Metadata),
		"userDid":   u.ActorDID,
		"userName":  u.ActorName,
	}
}

func presentMetadata(entries []trackable.MetadataEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"key":   e.Key,
			"value": e.Value.ToJSON(),
		})
	}
	return out
}

func presentRecipient(r *registry.Recipient) map[string]any {
	return map[string]any{
		"did":          r.DID,
		"name":         r.Name,
		"instructions": r.Instructions,
		"address": map[string]any{
			"street":       r.Address.Street,
			"cityStateZip": r.Address.CityStateZip,
		},
	}
}

func presentActor(a identity.Actor) map[string]any {
	return map[string]any{
		"did":      a.DID,
		"username": a.Username,
		"loggedIn": a.Authenticated(),
	}
}
