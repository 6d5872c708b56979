package cex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gpuverify/kernelcheck/internal/bpl"
)

// ArrayShape is the per-array metadata needed to decode a raw element
// offset into a multi-dimensional access.
type ArrayShape struct {
	Name          string
	ElemWidth     int   // bits per element as verified
	SrcElemWidth  int   // bits per element in the source language
	Dims          []int // declared extents, outermost first
}

// ShapeFromDecl reads the shape from the array declaration's
// attributes: elem_width and source_elem_width integers plus a
// source_dimensions string such as "4,4".
func ShapeFromDecl(g *bpl.GlobalVar) (ArrayShape, error) {
	s := ArrayShape{Name: g.Var.Name}
	var ok bool
	if s.ElemWidth, ok = g.Var.Attrs.Int(bpl.AttrElemWidth); !ok {
		return s, fmt.Errorf("array %s: missing %s attribute", s.Name, bpl.AttrElemWidth)
	}
	if s.SrcElemWidth, ok = g.Var.Attrs.Int(bpl.AttrSourceElWidth); !ok {
		s.SrcElemWidth = s.ElemWidth
	}
	dims, ok := g.Var.Attrs.Str(bpl.AttrSourceDims)
	if !ok || dims == "*" {
		// Flat array of unknown extent.
		s.Dims = []int{-1}
		return s, nil
	}
	for _, d := range strings.Split(dims, ",") {
		d = strings.TrimSpace(d)
		if d == "*" {
			s.Dims = append(s.Dims, -1)
			continue
		}
		n, err := strconv.Atoi(d)
		if err != nil {
			return s, fmt.Errorf("array %s: bad dimension %q", s.Name, d)
		}
		s.Dims = append(s.Dims, n)
	}
	return s, nil
}

// Decode turns a raw element offset into a rendered access such as
// $$a[1][1]. The layout is row-major and byte-addressed: the last
// dimension has stride one source element, and each preceding stride
// is the product of its own extent and the next stride. A zero extent
// makes the array unindexable.
func (s ArrayShape) Decode(raw uint64) (string, error) {
	byteOffset := raw * uint64(s.ElemWidth) / 8
	if s.SrcElemWidth <= 0 || s.SrcElemWidth%8 != 0 {
		return "", fmt.Errorf("array %s: source element width %d is not a positive multiple of 8", s.Name, s.SrcElemWidth)
	}
	index := byteOffset / uint64(s.SrcElemWidth/8)

	strides := make([]uint64, len(s.Dims))
	stride := uint64(1)
	for i := len(s.Dims) - 1; i >= 0; i-- {
		if s.Dims[i] == 0 {
			return "", fmt.Errorf("array %s has a zero extent and cannot be indexed", s.Name)
		}
		strides[i] = stride
		if s.Dims[i] > 0 {
			stride *= uint64(s.Dims[i])
		} else if i != 0 {
			// Only the outermost extent may be unknown.
			return "", fmt.Errorf("array %s has an unknown inner extent and cannot be indexed", s.Name)
		}
	}

	var sb strings.Builder
	sb.WriteString(s.Name)
	for i := 0; i < len(s.Dims); i++ {
		fmt.Fprintf(&sb, "[%d]", index/strides[i])
		index %= strides[i]
	}
	return sb.String(), nil
}
