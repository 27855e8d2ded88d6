package mutator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// pathStep addresses one level of a decoded JSON tree: either an object
// key or an array index.
type pathStep struct {
	key   string
	index int
	isIdx bool
}

// jsonLeaf is one mutable site in a JSON body.
type jsonLeaf struct {
	path  []pathStep
	value any
}

// parseJSONBody decodes a JSON body preserving number formatting via
// json.Number. Returns false for malformed bodies; the caller treats
// that as "no JSON mutation sites", never as an error.
func parseJSONBody(body []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, false
	}
	return tree, true
}

// collectLeaves walks the tree depth-first and returns every scalar leaf
// with its path. Object keys are visited in sorted order so generation
// is deterministic.
func collectLeaves(tree any) []jsonLeaf {
	var leaves []jsonLeaf
	walkJSON(tree, nil, &leaves)
	return leaves
}

func walkJSON(node any, path []pathStep, out *[]jsonLeaf) {
	switch v := node.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			step := pathStep{key: key}
			walkJSON(v[key], append(path, step), out)
		}
	case []any:
		for i, item := range v {
			step := pathStep{index: i, isIdx: true}
			walkJSON(item, append(path, step), out)
		}
	default:
		leaf := jsonLeaf{path: make([]pathStep, len(path)), value: node}
		copy(leaf.path, path)
		*out = append(*out, leaf)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// patchLeaf serializes the tree with the leaf at path replaced by value,
// then restores the original value. Patch-and-restore avoids deep-copying
// the tree once per candidate mutation.
func patchLeaf(tree any, path []pathStep, value any) ([]byte, error) {
	original, err := setAtPath(tree, path, value)
	if err != nil {
		return nil, err
	}
	data, marshalErr := json.Marshal(tree)
	if _, err := setAtPath(tree, path, original); err != nil {
		return nil, err
	}
	if marshalErr != nil {
		return nil, marshalErr
	}
	return data, nil
}

// setAtPath replaces the value at path and returns the previous value.
func setAtPath(tree any, path []pathStep, value any) (any, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	node := tree
	for _, step := range path[:len(path)-1] {
		var ok bool
		node, ok = descend(node, step)
		if !ok {
			return nil, fmt.Errorf("path %s not found", pathString(path))
		}
	}

	last := path[len(path)-1]
	if last.isIdx {
		arr, ok := node.([]any)
		if !ok || last.index < 0 || last.index >= len(arr) {
			return nil, fmt.Errorf("path %s not found", pathString(path))
		}
		prev := arr[last.index]
		arr[last.index] = value
		return prev, nil
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("path %s not found", pathString(path))
	}
	prev := obj[last.key]
	obj[last.key] = value
	return prev, nil
}

func descend(node any, step pathStep) (any, bool) {
	if step.isIdx {
		arr, ok := node.([]any)
		if !ok || step.index < 0 || step.index >= len(arr) {
			return nil, false
		}
		return arr[step.index], true
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := obj[step.key]
	return child, ok
}

// pathString renders a path as "a.b[0].c" for test case descriptions.
func pathString(path []pathStep) string {
	var b strings.Builder
	for i, step := range path {
		if step.isIdx {
			b.WriteString("[" + strconv.Itoa(step.index) + "]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(step.key)
	}
	return b.String()
}

// leafString renders a leaf value for descriptions and payload audit.
func leafString(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
