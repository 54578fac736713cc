// Package trackable models a donation document: its status state machine,
// its append-only update log, and the typed metadata attached to both.
package trackable

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"givingchain/internal/documents"
)

// Status of a donation. Transitions are monotonic and never skip forward
// states; there are no backward transitions.
type Status string

const (
	StatusCreated   Status = "Created"
	StatusPublished Status = "Published"
	StatusAccepted  Status = "Accepted"
	StatusPickedUp  Status = "PickedUp"
	StatusDelivered Status = "Delivered"
)

var statusOrder = map[Status]int{
	StatusCreated:   0,
	StatusPublished: 1,
	StatusAccepted:  2,
	StatusPickedUp:  3,
	StatusDelivered: 4,
}

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	_, ok := statusOrder[s]
	return ok
}

// Before reports whether s precedes other in the lifecycle order.
func (s Status) Before(other Status) bool {
	return statusOrder[s] < statusOrder[other]
}

// CanAdvanceTo reports whether next is the immediate successor of s.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Known() && next.Known() && statusOrder[next] == statusOrder[s]+1
}

// Address is a pickup or delivery location.
type Address struct {
	Street       string `json:"street"`
	CityStateZip string `json:"cityStateZip"`
}

// Update is one entry of the append-only update log, keyed inside the
// document by its millisecond timestamp.
type Update struct {
	ID        string
	Timestamp time.Time
	Message   string
	Metadata  []MetadataEntry
	ActorDID  string
	ActorName string
}

// Trackable is the read model assembled from a donation document.
type Trackable struct {
	DID           string
	Name          string
	Image         string
	Status        Status
	Driver        string
	Metadata      []MetadataEntry
	Collaborators []string
	Updates       []Update
}

// Document paths for trackable fields.
const (
	NamePath          = "name"
	ImagePath         = "image"
	StatusPath        = "status"
	DriverPath        = "driver"
	MetadataPath      = "metadata"
	UpdatesPath       = "updates"
	CollaboratorsPath = "collaborators"
)

// UpdatePath returns the document path for an update at the given time.
func UpdatePath(at time.Time) string {
	return fmt.Sprintf("%s/%d", UpdatesPath, at.UnixMilli())
}

// MetadataEntryPath returns the document path for one metadata key.
func MetadataEntryPath(key string) string {
	return MetadataPath + "/" + key
}

// CollaboratorPath returns the document path recording one collaborator.
func CollaboratorPath(userDID string) string {
	return CollaboratorsPath + "/" + userDID
}

// FromDocument assembles the read model from a donation document. Updates
// come back sorted by their timestamp key; absent nodes simply yield empty
// fields, matching how a half-written document should still render.
func FromDocument(doc *documents.Document) *Trackable {
	t := &Trackable{DID: doc.DID}

	if v, ok := doc.Resolve(NamePath); ok {
		t.Name, _ = v.(string)
	}
	if v, ok := doc.Resolve(ImagePath); ok {
		t.Image, _ = v.(string)
	}
	if v, ok := doc.Resolve(StatusPath); ok {
		if s, ok := v.(string); ok {
			t.Status = Status(s)
		}
	}
	if v, ok := doc.Resolve(DriverPath); ok {
		t.Driver, _ = v.(string)
	}
	if v, ok := doc.Resolve(MetadataPath); ok {
		t.Metadata = metadataFromTree(v)
	}
	if v, ok := doc.Resolve(CollaboratorsPath); ok {
		if tree, ok := v.(map[string]any); ok {
			for did := range tree {
				t.Collaborators = append(t.Collaborators, did)
			}
			sort.Strings(t.Collaborators)
		}
	}
	if v, ok := doc.Resolve(UpdatesPath); ok {
		t.Updates = updatesFromTree(v)
	}
	return t
}

func updatesFromTree(raw any) []Update {
	tree, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	type keyed struct {
		millis int64
		update Update
	}
	entries := make([]keyed, 0, len(tree))
	for key, val := range tree {
		millis, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		node, ok := val.(map[string]any)
		if !ok {
			continue
		}
		u := Update{Timestamp: time.UnixMilli(millis).UTC()}
		if s, ok := node["id"].(string); ok {
			u.ID = s
		}
		if s, ok := node["timestamp"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				u.Timestamp = ts
			}
		}
		if s, ok := node["message"].(string); ok {
			u.Message = s
		}
		if s, ok := node["userDid"].(string); ok {
			u.ActorDID = s
		}
		if s, ok := node["userName"].(string); ok {
			u.ActorName = s
		}
		u.Metadata = metadataFromTree(node["metadata"])
		entries = append(entries, keyed{millis: millis, update: u})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].millis < entries[j].millis })
	updates := make([]Update, len(entries))
	for i, e := range entries {
		updates[i] = e.update
	}
	return updates
}

// UpdateNode builds the document value for one update entry.
func UpdateNode(id string, at time.Time, message string, metadata []MetadataEntry, actorDID, actorName string) map[string]any {
	node := map[string]any{
		"id":        id,
		"timestamp": at.UTC().Format(time.RFC3339),
		"message":   message,
	}
	if actorDID != "" {
		node["userDid"] = actorDID
	}
	if actorName != "" {
		node["userName"] = actorName
	}
	if len(metadata) > 0 {
		node["metadata"] = MetadataTree(metadata)
	}
	return node
}
