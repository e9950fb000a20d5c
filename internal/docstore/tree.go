package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// flatten converts a value into leaf paths relative to its root. Objects and
// arrays become interior nodes, nulls and empty containers disappear.
func flatten(value any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}

	leaves := make(map[string]json.RawMessage)
	if err := walk("", generic, leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func walk(prefix string, v any, leaves map[string]json.RawMessage) error {
	switch node := v.(type) {
	case nil:
		return nil
	case map[string]any:
		for k, child := range node {
			if _, err := CleanPath(k); err != nil || k == "" || strings.Contains(k, "/") {
				return fmt.Errorf("invalid key %q under %q", k, prefix)
			}
			if err := walk(joinRel(prefix, k), child, leaves); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, child := range node {
			if err := walk(joinRel(prefix, strconv.Itoa(i)), child, leaves); err != nil {
				return err
			}
		}
		return nil
	default:
		b, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("encode leaf %q: %w", prefix, err)
		}
		leaves[prefix] = b
		return nil
	}
}

func joinRel(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// assemble rebuilds the JSON value of a subtree from its leaves, keyed by
// path relative to the subtree root. The empty key is the root leaf itself.
func assemble(leaves map[string]json.RawMessage) (json.RawMessage, error) {
	if len(leaves) == 0 {
		return nil, ErrNotFound
	}
	if v, ok := leaves[""]; ok && len(leaves) == 1 {
		return v, nil
	}

	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, k := range keys {
		if k == "" {
			continue
		}
		segs := strings.Split(k, "/")
		node := root
		for _, seg := range segs[:len(segs)-1] {
			next, ok := node[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				node[seg] = next
			}
			node = next
		}
		last := segs[len(segs)-1]
		if _, interior := node[last].(map[string]any); interior {
			continue
		}
		node[last] = leaves[k]
	}

	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("assemble subtree: %w", err)
	}
	return out, nil
}

// relative strips base from a stored leaf path.
func relative(base, path string) string {
	if path == base {
		return ""
	}
	return strings.TrimPrefix(path, childPrefix(base))
}

// absolute is the inverse of relative.
func absolute(base, rel string) string {
	switch {
	case rel == "":
		return base
	case base == "":
		return rel
	default:
		return base + "/" + rel
	}
}

type write struct {
	path   string
	leaves map[string]json.RawMessage // empty for deletes
}

// planWrites validates and flattens a multi-path update. Writes are ordered
// by path so that a parent is replaced before its children are written.
func planWrites(values map[string]any) ([]write, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("update: no values")
	}
	writes := make([]write, 0, len(values))
	for p, v := range values {
		path, err := CleanPath(p)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, fmt.Errorf("update: refusing to write the root")
		}
		leaves, err := flatten(v)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", path, err)
		}
		writes = append(writes, write{path: path, leaves: leaves})
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].path < writes[j].path })
	return writes, nil
}
