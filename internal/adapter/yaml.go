package adapter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// YAML encodes payloads as *yaml.Node trees. Values go through EncodeIR
// first, so field names match the JSON adapter.
type YAML struct{}

var _ Adapter = YAML{}

func (YAML) Name() string { return "yaml" }

func (YAML) Encode(v any) (any, error) {
	if n, ok := v.(*yaml.Node); ok {
		return cloneNode(n), nil
	}
	iv, err := EncodeIR(v)
	if err != nil {
		return nil, err
	}
	return NodeFromIR(iv), nil
}

// NodeFromIR builds a YAML node for v. Mapping keys follow ir key order.
func NodeFromIR(v ir.IRValue) *yaml.Node {
	switch val := v.(type) {
	case ir.IRString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(val)}
	case ir.IRInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(val), 10)}
	case ir.IRFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatYAMLFloat(float64(val))}
	case ir.IRBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(bool(val))}
	case ir.IRArray:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range val {
			n.Content = append(n.Content, NodeFromIR(elem))
		}
		return n
	case ir.IRObject:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range val.SortedKeys() {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				NodeFromIR(val[k]),
			)
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// NodeToIR decodes a YAML node into an ir.IRValue. Mapping keys must be
// strings.
func NodeToIR(n *yaml.Node) (ir.IRValue, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return ir.FromAny(raw)
}

func formatYAMLFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !math.IsInf(f, 0) && !math.IsNaN(f) && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	out := *n
	if len(n.Content) > 0 {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = cloneNode(c)
		}
	}
	return &out
}

// NodeApplier implements change.Applier over *yaml.Node trees. Document
// nodes are unwrapped. Targets are modified in place.
type NodeApplier struct{}

var _ change.Applier = NodeApplier{}

func (NodeApplier) Apply(target any, c *change.Change) (any, error) {
	n, ok := target.(*yaml.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("yaml applier: target must be a *yaml.Node, got %T", target)
	}
	if c == nil {
		return n, nil
	}
	if err := applyNode(documentRoot(n), c, nil); err != nil {
		return nil, err
	}
	return n, nil
}

func (NodeApplier) Concat(prefix, suffix any) (any, error) {
	p, err := YAML{}.Encode(prefix)
	if err != nil {
		return nil, err
	}
	s, err := YAML{}.Encode(suffix)
	if err != nil {
		return nil, err
	}
	out := p.(*yaml.Node)
	if err := concatNode(out, s.(*yaml.Node)); err != nil {
		return nil, err
	}
	return out, nil
}

func documentRoot(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return n.Content[0]
	}
	return n
}

func payloadNode(v any) (*yaml.Node, error) {
	enc, err := YAML{}.Encode(v)
	if err != nil {
		return nil, err
	}
	return documentRoot(enc.(*yaml.Node)), nil
}

func applyNode(n *yaml.Node, c *change.Change, walked change.Path) error {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}

	if len(c.Path) == 0 {
		switch c.Operation.Kind {
		case change.Replace:
			p, err := payloadNode(c.Operation.Value)
			if err != nil {
				return change.NewOperationError(walked, "%v", err)
			}
			*n = *p
			return nil
		case change.Append:
			p, err := payloadNode(c.Operation.Value)
			if err != nil {
				return change.NewOperationError(walked, "%v", err)
			}
			if err := concatNode(n, p); err != nil {
				return change.NewOperationError(walked, "%v", err)
			}
			return nil
		case change.Batch:
			for _, child := range c.Operation.Changes {
				if err := applyNode(n, child, walked); err != nil {
					return err
				}
			}
			return nil
		default:
			return change.NewOperationError(walked, "unknown operation kind %d", int(c.Operation.Kind))
		}
	}

	seg := c.Path[0]
	rest := &change.Change{Path: c.Path[1:], Operation: c.Operation}
	here := append(append(change.Path(nil), walked...), seg)

	switch n.Kind {
	case yaml.MappingNode:
		if seg.IsIndex() {
			return change.NewIndexError(here)
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == seg.Name() {
				return applyNode(n.Content[i+1], rest, here)
			}
		}
		if len(rest.Path) > 0 || rest.Operation.Kind != change.Replace {
			return change.NewIndexError(here)
		}
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: seg.Name()},
			val,
		)
		return applyNode(val, rest, here)

	case yaml.SequenceNode:
		if !seg.IsIndex() || seg.Index() >= len(n.Content) {
			return change.NewIndexError(here)
		}
		return applyNode(n.Content[seg.Index()], rest, here)
	}
	return change.NewIndexError(here)
}

func concatNode(n, frag *yaml.Node) error {
	switch {
	case n.Kind == yaml.ScalarNode && frag.Kind == yaml.ScalarNode &&
		n.ShortTag() == "!!str" && frag.ShortTag() == "!!str":
		n.Value += frag.Value
		return nil
	case n.Kind == yaml.SequenceNode && frag.Kind == yaml.SequenceNode:
		for _, c := range frag.Content {
			n.Content = append(n.Content, cloneNode(c))
		}
		return nil
	}
	return fmt.Errorf("cannot append %s to %s", nodeKind(frag), nodeKind(n))
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar " + n.ShortTag()
	default:
		return "node"
	}
}

// ChangeToNode converts c into a YAML mapping with the same keys as the
// JSON wire form. Paths are written in flow style.
func ChangeToNode(c *change.Change) (*yaml.Node, error) {
	if c == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}

	path := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, seg := range c.Path {
		if seg.IsIndex() {
			path.Content = append(path.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(seg.Index())})
		} else {
			path.Content = append(path.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: seg.Name()})
		}
	}

	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	add := func(key string, v *yaml.Node) {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
	}
	add(keyPath, path)
	add(keyOp, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Operation.Kind.String()})

	if c.Operation.Kind == change.Batch {
		children := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, child := range c.Operation.Changes {
			cn, err := ChangeToNode(child)
			if err != nil {
				return nil, err
			}
			children.Content = append(children.Content, cn)
		}
		add(keyChanges, children)
		return n, nil
	}

	v, err := payloadNode(c.Operation.Value)
	if err != nil {
		return nil, fmt.Errorf("%s at %q: %w", c.Operation.Kind, c.Path.String(), err)
	}
	add(keyValue, v)
	return n, nil
}

// MarshalChangeYAML encodes c as a YAML document.
func MarshalChangeYAML(c *change.Change) ([]byte, error) {
	n, err := ChangeToNode(c)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

// UnmarshalChangeYAML decodes a change written by MarshalChangeYAML.
// Payloads are ir.IRValue.
func UnmarshalChangeYAML(data []byte) (*change.Change, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	v, err := NodeToIR(documentRoot(&doc))
	if err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	return ChangeFromIR(v)
}
