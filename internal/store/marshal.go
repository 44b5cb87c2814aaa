package store

import (
	"fmt"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// marshalValue converts an encoded value to canonical JSON TEXT.
func marshalValue(v ir.IRValue) (string, error) {
	if v == nil {
		v = ir.IRNull{}
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

func unmarshalValue(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// encodeChange returns the wire form of c and its canonical JSON TEXT.
func encodeChange(c *change.Change) (ir.IRValue, string, error) {
	enc, err := adapter.ChangeToIR(c)
	if err != nil {
		return nil, "", fmt.Errorf("marshal change: %w", err)
	}
	data, err := ir.MarshalCanonical(enc)
	if err != nil {
		return nil, "", fmt.Errorf("marshal change: %w", err)
	}
	return enc, string(data), nil
}

func unmarshalChange(data string) (*change.Change, error) {
	c, err := adapter.UnmarshalChange([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal change: %w", err)
	}
	return c, nil
}
