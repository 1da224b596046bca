package engine

import (
	"maps"
	"slices"
)

// Cloner is implemented by prompt and content payloads that hold slices or
// maps, so a snapshot never aliases level data.
type Cloner interface {
	Clone() any
}

// ClonePayload returns a copy of an opaque Prompt or Content value that is
// safe to hand to a renderer. Plain values are returned as is.
func ClonePayload(v any) any {
	switch p := v.(type) {
	case nil:
		return nil
	case Cloner:
		return p.Clone()
	case map[string]string:
		return maps.Clone(p)
	case []string:
		return slices.Clone(p)
	default:
		return v
	}
}
