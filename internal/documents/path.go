package documents

import "strings"

// Paths address nodes in a document's data tree, slash-separated with
// optional leading/trailing slashes: "trackables/did:giving:abc".

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// resolvePath walks the tree and returns the value at path. The second
// return is false when any segment is missing, mirroring a store "remainder
// path": an absent node is a normal state, not an error.
func resolvePath(data map[string]any, path string) (any, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return data, true
	}
	var cur any = data
	for _, seg := range segments {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at path, creating intermediate maps as needed. A
// non-map intermediate node is replaced; append-only discipline is the
// caller's concern, the tree itself is a plain key-value structure.
func setPath(data map[string]any, path string, value any) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}
	cur := data
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}
