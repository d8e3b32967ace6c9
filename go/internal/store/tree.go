package store

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// getAt walks segs below node and returns the value found there, or nil.
func getAt(node any, segs []string) any {
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// setAt writes v at segs below node and returns the new node. A nil v removes
// the leaf, and maps left empty are pruned on the way back up.
func setAt(node any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := node.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	child := setAt(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// compact drops nil values and empty maps the way the tree never stores them.
func compact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			c := compact(child)
			if c == nil {
				delete(t, k)
			} else {
				t[k] = c
			}
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		for i := range t {
			t[i] = compact(t[i])
		}
		return t
	default:
		return v
	}
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// ToValue converts a Go value into its JSON-shaped tree form.
func ToValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return compact(out), nil
}

// Decode fills dst from a tree value returned by Get or a subscription.
func Decode(value any, dst any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

func decodeDocument(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func encodeDocument(doc any) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}
