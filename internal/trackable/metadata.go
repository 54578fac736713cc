package trackable

import (
	"encoding/json"
	"sort"
)

// MetadataKind tags the variants of a metadata value. The original data mixed
// addresses, image URLs, and free text under one JSON scalar; the union keeps
// the known shapes typed while Unknown carries anything a newer writer adds.
type MetadataKind string

const (
	MetadataLocation MetadataKind = "location"
	MetadataImageRef MetadataKind = "imageRef"
	MetadataFreeform MetadataKind = "freeform"
	MetadataUnknown  MetadataKind = "unknown"
)

// Well-known metadata keys used by the lifecycle engine.
const (
	LocationKey          = "location"
	InstructionsKey      = "instructions"
	ConfirmationImageKey = "confirmationImage"
)

// MetadataValue is a tagged union over the metadata shapes the lifecycle
// reads and writes. Exactly one variant field is meaningful per Kind.
type MetadataValue struct {
	Kind     MetadataKind
	Location *Address
	URL      string
	Text     string
	Raw      any
}

// MetadataEntry pairs a key with its typed value.
type MetadataEntry struct {
	Key   string
	Value MetadataValue
}

func LocationValue(a Address) MetadataValue {
	return MetadataValue{Kind: MetadataLocation, Location: &a}
}

func ImageRefValue(url string) MetadataValue {
	return MetadataValue{Kind: MetadataImageRef, URL: url}
}

func TextValue(text string) MetadataValue {
	return MetadataValue{Kind: MetadataFreeform, Text: text}
}

// ToJSON renders the value in its document representation.
func (v MetadataValue) ToJSON() any {
	switch v.Kind {
	case MetadataLocation:
		if v.Location == nil {
			return nil
		}
		return map[string]any{
			"street":       v.Location.Street,
			"cityStateZip": v.Location.CityStateZip,
		}
	case MetadataImageRef:
		return v.URL
	case MetadataFreeform:
		return v.Text
	default:
		return v.Raw
	}
}

// MetadataTree renders entries as the document's metadata map.
func MetadataTree(entries []MetadataEntry) map[string]any {
	tree := make(map[string]any, len(entries))
	for _, e := range entries {
		tree[e.Key] = e.Value.ToJSON()
	}
	return tree
}

// metadataFromTree classifies a raw metadata map back into typed entries,
// sorted by key for stable output.
func metadataFromTree(raw any) []MetadataEntry {
	tree, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	entries := make([]MetadataEntry, 0, len(tree))
	for key, val := range tree {
		entries = append(entries, MetadataEntry{Key: key, Value: classify(key, val)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// classify picks the union variant from the key and the value's shape. A key
// the lifecycle does not know, or a known key holding an unexpected shape,
// lands in Unknown with the raw value preserved.
func classify(key string, val any) MetadataValue {
	switch key {
	case LocationKey:
		if addr, ok := addressFromAny(val); ok {
			return MetadataValue{Kind: MetadataLocation, Location: addr}
		}
	case ConfirmationImageKey, "image":
		if url, ok := val.(string); ok {
			return MetadataValue{Kind: MetadataImageRef, URL: url}
		}
	case InstructionsKey:
		if text, ok := val.(string); ok {
			return MetadataValue{Kind: MetadataFreeform, Text: text}
		}
	default:
		if text, ok := val.(string); ok {
			return MetadataValue{Kind: MetadataFreeform, Text: text}
		}
	}
	return MetadataValue{Kind: MetadataUnknown, Raw: val}
}

func addressFromAny(val any) (*Address, bool) {
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, false
	}
	var addr Address
	if err := json.Unmarshal(raw, &addr); err != nil {
		return nil, false
	}
	if addr.Street == "" && addr.CityStateZip == "" {
		return nil, false
	}
	return &addr, true
}
