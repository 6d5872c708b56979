package cex

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// LocRecord is one source coordinate.
type LocRecord struct {
	Line int
	Col  int
	File string
	Dir  string
}

func (r LocRecord) String() string {
	return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Col)
}

// LocChain is the call/inlining chain that produced a command, from
// innermost (the immediate source line) to outermost call site. A
// well-formed chain has at least one record.
type LocChain []LocRecord

// Top is the immediate source location.
func (c LocChain) Top() LocRecord {
	if len(c) == 0 {
		panic("cex: empty source location chain")
	}
	return c[0]
}

// Less orders chains lexicographically over (dir, file, line, col)
// applied positionally, then by chain length.
func (c LocChain) Less(other LocChain) bool {
	n := len(c)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		a, b := c[i], other[i]
		if a.Dir != b.Dir {
			return a.Dir < b.Dir
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
	}
	return len(c) < len(other)
}

// Equal reports positional equality.
func (c LocChain) Equal(other LocChain) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

func (c LocChain) String() string {
	parts := make([]string, len(c))
	for i, r := range c {
		parts[i] = r.String()
	}
	return strings.Join(parts, " <- ")
}

// LocTable is the attribute-encoded side table mapping sourceloc_num
// indices to chains.
type LocTable map[int]LocChain

// ReadLocs parses the side file. Each non-empty line has the form
//
//	index: line,col,file,dir; line,col,file,dir; ...
//
// with records ordered innermost first.
func ReadLocs(r io.Reader) (LocTable, error) {
	table := make(LocTable)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idxStr, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("locs line %d: missing index", lineNo)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil {
			return nil, fmt.Errorf("locs line %d: bad index: %w", lineNo, err)
		}
		var chain LocChain
		for _, rec := range strings.Split(rest, ";") {
			fields := strings.Split(rec, ",")
			if len(fields) != 4 {
				return nil, fmt.Errorf("locs line %d: record needs line,col,file,dir", lineNo)
			}
			ln, err := strconv.Atoi(strings.TrimSpace(fields[0]))
			if err != nil {
				return nil, fmt.Errorf("locs line %d: bad line number: %w", lineNo, err)
			}
			col, err := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err != nil {
				return nil, fmt.Errorf("locs line %d: bad column: %w", lineNo, err)
			}
			chain = append(chain, LocRecord{
				Line: ln,
				Col:  col,
				File: strings.TrimSpace(fields[2]),
				Dir:  strings.TrimSpace(fields[3]),
			})
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("locs line %d: empty chain", lineNo)
		}
		table[idx] = chain
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// SortChains orders and deduplicates candidate chains.
func SortChains(chains []LocChain) []LocChain {
	sort.Slice(chains, func(i, j int) bool {
		return chains[i].Less(chains[j])
	})
	out := chains[:0]
	for i, c := range chains {
		if i == 0 || !c.Equal(chains[i-1]) {
			out = append(out, c)
		}
	}
	return out
}
