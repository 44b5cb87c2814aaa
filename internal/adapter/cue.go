package adapter

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// CUE encodes payloads as cue.Value in one shared context. Values go
// through EncodeIR first, so field names match the JSON adapter.
//
// A cue.Context is not safe for concurrent use; neither is CUE.
type CUE struct {
	ctx *cue.Context
}

var _ Adapter = (*CUE)(nil)

// NewCUE creates a CUE adapter with a fresh context.
func NewCUE() *CUE {
	return &CUE{ctx: cuecontext.New()}
}

func (*CUE) Name() string { return "cue" }

func (c *CUE) Encode(v any) (any, error) {
	if cv, ok := v.(cue.Value); ok {
		return cv, nil
	}
	iv, err := EncodeIR(v)
	if err != nil {
		return nil, err
	}
	return c.encodeIR(iv)
}

func (c *CUE) encodeIR(v ir.IRValue) (cue.Value, error) {
	val := c.ctx.Encode(ir.ToAny(v))
	if err := val.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return val, nil
}

// Schema constrains the encoded form of an observed value.
type Schema struct {
	adapter *CUE
	value   cue.Value
}

// CompileSchema compiles CUE source. When def is not empty the schema is
// the value at that path, typically a definition such as "#Config".
func (c *CUE) CompileSchema(src, def string) (*Schema, error) {
	v := c.ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if def != "" {
		v = v.LookupPath(cue.ParsePath(def))
		if !v.Exists() {
			return nil, &SchemaError{Field: def, Message: "not found in schema"}
		}
	}
	return &Schema{adapter: c, value: v}, nil
}

// Validate checks that the encoded form of v is concrete and satisfies the
// schema.
func (s *Schema) Validate(v any) error {
	iv, err := EncodeIR(v)
	if err != nil {
		return err
	}
	return s.validateIR(iv)
}

func (s *Schema) validateIR(v ir.IRValue) error {
	val, err := s.adapter.encodeIR(v)
	if err != nil {
		return err
	}
	if err := s.value.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// Check applies c to a copy of base and validates the result. It returns
// the new encoded value when the result conforms.
func (s *Schema) Check(base ir.IRValue, c *change.Change) (ir.IRValue, error) {
	next, err := ApplyIR(ir.Clone(base), c)
	if err != nil {
		return nil, err
	}
	if err := s.validateIR(next); err != nil {
		return nil, err
	}
	return next, nil
}

// SchemaError reports a schema violation with its source position when
// CUE provides one.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
