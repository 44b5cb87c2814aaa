package change

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Segment addresses one level of a nested value: either a field/key name
// or a sequence index.
type Segment struct {
	name    string
	index   int
	isIndex bool
}

// Field creates a name segment (struct field or map key).
func Field(name string) Segment {
	return Segment{name: name}
}

// Index creates a sequence index segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment is a sequence index.
func (s Segment) IsIndex() bool {
	return s.isIndex
}

// Name returns the field/key name. Empty for index segments.
func (s Segment) Name() string {
	return s.name
}

// Index returns the sequence index. Zero for name segments.
func (s Segment) Index() int {
	return s.index
}

// Key returns a string form usable as a map key.
// Name and index segments never collide.
func (s Segment) Key() string {
	if s.isIndex {
		return "#" + strconv.Itoa(s.index)
	}
	return "." + s.name
}

// String renders ".name" or "[3]". A name that is empty or contains
// '.', '[', ']' or '"' renders quoted, as in ["a.b"].
func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	if needsQuote(s.name) {
		return "[" + strconv.Quote(s.name) + "]"
	}
	return "." + s.name
}

func needsQuote(name string) bool {
	return name == "" || strings.ContainsAny(name, ".[]\"")
}

// MarshalJSON encodes name segments as JSON strings and index segments as
// JSON integers.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return []byte(strconv.Itoa(s.index)), nil
	}
	return json.Marshal(s.name)
}

// UnmarshalJSON accepts a JSON string or a JSON integer.
func (s *Segment) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = Field(name)
		return nil
	}
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("path segment must be a string or an integer: %s", data)
	}
	*s = Index(i)
	return nil
}

// Path is an ordered list of segments from the root to a sub-value.
// The empty path is the root itself.
type Path []Segment

// ParsePath parses a dotted path such as "bar.baz", "items[2].name",
// "[0]" or `meta["a.b"]`. The empty string is the root path. ParsePath
// reads back every path String renders.
func ParsePath(s string) (Path, error) {
	var p Path
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
		case '[':
			if i+1 < len(s) && s[i+1] == '"' {
				quoted, err := strconv.QuotedPrefix(s[i+1:])
				if err != nil {
					return nil, fmt.Errorf("invalid quoted name in path %q: %w", s, err)
				}
				i += 1 + len(quoted)
				if i >= len(s) || s[i] != ']' {
					return nil, fmt.Errorf("unterminated quoted name in path %q", s)
				}
				name, _ := strconv.Unquote(quoted)
				p = append(p, Field(name))
				i++
				continue
			}
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index in path %q", s)
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("invalid index in path %q: %w", s, err)
			}
			p = append(p, Index(n))
			i += end + 1
			continue
		}
		start := i
		for i < len(s) && s[i] != '.' && s[i] != '[' {
			i++
		}
		if start == i {
			if i < len(s) && s[i] == '[' {
				continue
			}
			return nil, fmt.Errorf("empty segment in path %q", s)
		}
		p = append(p, Field(s[start:i]))
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error.
// Use only in tests or with literal paths.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in dotted form without a leading dot,
// e.g. "bar.baz" or "items[2].name". The root path renders as "".
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i == 0 && !seg.isIndex && !needsQuote(seg.name) {
			b.WriteString(seg.name)
			continue
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// Join returns a new path with other appended. Neither input is modified.
func (p Path) Join(other Path) Path {
	out := make(Path, 0, len(p)+len(other))
	out = append(out, p...)
	return append(out, other...)
}

// Equal reports whether two paths have the same segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the root path as [] rather than null.
func (p Path) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Segment(p))
}

// Reverse reverses the path in place.
func (p Path) Reverse() {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
