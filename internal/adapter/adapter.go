package adapter

import (
	"fmt"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/observe"
)

// Adapter encodes Go values into the value model of one serialization
// format. Adapters only ever see payloads: paths and kinds pass through
// untouched.
type Adapter interface {
	// Name returns the format name ("json", "yaml", "cue").
	Name() string

	// Encode converts a Replace value or Append fragment.
	Encode(v any) (any, error)
}

// Render returns a copy of c with every Replace and Append payload encoded
// by a. A nil change renders to nil.
func Render(a Adapter, c *change.Change) (*change.Change, error) {
	out, err := c.MapValues(func(_ change.Kind, v any) (any, error) {
		return a.Encode(v)
	})
	if err != nil {
		return nil, fmt.Errorf("render with %s adapter: %w", a.Name(), err)
	}
	return out, nil
}

// Observe runs fn inside an observation session over root and renders the
// resulting change with a.
func Observe[T any](a Adapter, root *T, fn func(*T) error, opts ...observe.Option) (*change.Change, error) {
	c, err := observe.Observe(root, fn, opts...)
	if err != nil {
		return nil, err
	}
	return Render(a, c)
}

// ByName returns the adapter for a format name.
func ByName(name string) (Adapter, error) {
	switch name {
	case "json":
		return JSON{}, nil
	case "yaml":
		return YAML{}, nil
	case "cue":
		return NewCUE(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q: must be json, yaml or cue", name)
	}
}
