package payload

import (
	"sort"
	"strings"
)

// Limits bounds a generic walk so that adversarial payloads always terminate.
type Limits struct {
	MaxDepth int // container nesting below the root
	MaxItems int // array elements visited per array
	MaxNodes int // total nodes visited
}

// DefaultLimits are used by the fallback extractors.
var DefaultLimits = Limits{MaxDepth: 8, MaxItems: 50, MaxNodes: 2000}

type frame struct {
	v     Value
	key   string
	depth int
}

// Walk visits v depth-first in document order (object keys sorted) with an
// explicit stack. key is the nearest object key above the node; array
// elements inherit the key of their array. Returning false from visit stops
// the walk.
func Walk(v Value, lim Limits, visit func(key string, depth int, node Value) bool) {
	if lim.MaxDepth <= 0 {
		lim.MaxDepth = DefaultLimits.MaxDepth
	}
	if lim.MaxItems <= 0 {
		lim.MaxItems = DefaultLimits.MaxItems
	}
	if lim.MaxNodes <= 0 {
		lim.MaxNodes = DefaultLimits.MaxNodes
	}

	stack := []frame{{v: v}}
	visited := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visited++
		if visited > lim.MaxNodes {
			return
		}
		if !visit(f.key, f.depth, f.v) {
			return
		}
		if f.depth >= lim.MaxDepth {
			continue
		}

		switch f.v.Kind() {
		case Object:
			keys := f.v.Keys()
			sort.Strings(keys)
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, frame{v: f.v.Get(keys[i]), key: keys[i], depth: f.depth + 1})
			}
		case Array:
			items := f.v.Items()
			if len(items) > lim.MaxItems {
				items = items[:lim.MaxItems]
			}
			for i := len(items) - 1; i >= 0; i-- {
				stack = append(stack, frame{v: items[i], key: f.key, depth: f.depth + 1})
			}
		}
	}
}

// KeyMatches reports whether key contains any vocabulary word (case-insensitive).
func KeyMatches(key string, vocab []string) bool {
	if key == "" {
		return false
	}
	k := strings.ToLower(key)
	for _, w := range vocab {
		if strings.Contains(k, w) {
			return true
		}
	}
	return false
}

// CollectStrings walks v and returns the string leaves whose key matches the
// vocabulary and that pass accept, de-duplicated in first-seen order.
func CollectStrings(v Value, vocab []string, lim Limits, accept func(string) bool) []string {
	seen := make(map[string]struct{})
	var out []string
	Walk(v, lim, func(key string, _ int, node Value) bool {
		if node.Kind() != String || !KeyMatches(key, vocab) {
			return true
		}
		s := strings.TrimSpace(node.String())
		if s == "" || (accept != nil && !accept(s)) {
			return true
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
		return true
	})
	return out
}
