package bpl

import (
	"fmt"
	"strings"
)

// Attr is a single key/value annotation attached to a declaration or
// command. Parameters are ints, strings, or expressions.
type Attr struct {
	Key    string
	Params []any
}

func (a Attr) String() string {
	var sb strings.Builder
	sb.WriteString("{:")
	sb.WriteString(a.Key)
	for i, p := range a.Params {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		switch v := p.(type) {
		case string:
			fmt.Fprintf(&sb, "%q", v)
		case Expr:
			sb.WriteString(v.String())
		default:
			fmt.Fprintf(&sb, "%v", v)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// Attrs is an ordered attribute list. Lookups are always "find by key,
// return typed value or absence"; boolean attributes are encoded by
// presence alone.
type Attrs []Attr

// Has reports whether an attribute with the given key exists.
func (as Attrs) Has(key string) bool {
	for _, a := range as {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Find returns the first attribute with the given key.
func (as Attrs) Find(key string) (Attr, bool) {
	for _, a := range as {
		if a.Key == key {
			return a, true
		}
	}
	return Attr{}, false
}

// Int returns the single integer parameter of the attribute, if present.
func (as Attrs) Int(key string) (int, bool) {
	a, ok := as.Find(key)
	if !ok || len(a.Params) != 1 {
		return 0, false
	}
	v, ok := a.Params[0].(int)
	return v, ok
}

// Str returns the single string parameter of the attribute, if present.
func (as Attrs) Str(key string) (string, bool) {
	a, ok := as.Find(key)
	if !ok || len(a.Params) != 1 {
		return "", false
	}
	v, ok := a.Params[0].(string)
	return v, ok
}

// Expr returns the single expression parameter of the attribute, if present.
func (as Attrs) Expr(key string) (Expr, bool) {
	a, ok := as.Find(key)
	if !ok || len(a.Params) != 1 {
		return nil, false
	}
	v, ok := a.Params[0].(Expr)
	return v, ok
}

// With returns a new list with the given attribute appended.
func (as Attrs) With(key string, params ...any) Attrs {
	out := make(Attrs, len(as), len(as)+1)
	copy(out, as)
	return append(out, Attr{Key: key, Params: params})
}

// Without returns a new list with every attribute of the given key removed.
func (as Attrs) Without(key string) Attrs {
	out := make(Attrs, 0, len(as))
	for _, a := range as {
		if a.Key != key {
			out = append(out, a)
		}
	}
	return out
}

func (as Attrs) String() string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
