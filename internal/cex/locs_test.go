package cex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLocs(t *testing.T) {
	t.Parallel()

	src := `
# index: line,col,file,dir records, innermost first
0: 10,4,kernel.cl,/src
1: 12,8,kernel.cl,/src; 30,2,main.cl,/src
`
	table, err := ReadLocs(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, table, 2)

	assert.Equal(t, LocChain{{Line: 10, Col: 4, File: "kernel.cl", Dir: "/src"}}, table[0])
	assert.Equal(t, LocChain{
		{Line: 12, Col: 8, File: "kernel.cl", Dir: "/src"},
		{Line: 30, Col: 2, File: "main.cl", Dir: "/src"},
	}, table[1])

	assert.Equal(t, "kernel.cl:12:8", table[1].Top().String())
	assert.Equal(t, "kernel.cl:12:8 <- main.cl:30:2", table[1].String())
}

func TestReadLocsErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		err  string
	}{
		{"missing index", "10,4,kernel.cl,/src\n", "missing index"},
		{"bad index", "x: 10,4,kernel.cl,/src\n", "bad index"},
		{"short record", "0: 10,4,kernel.cl\n", "record needs line,col,file,dir"},
		{"bad line number", "0: ten,4,kernel.cl,/src\n", "bad line number"},
		{"bad column", "0: 10,four,kernel.cl,/src\n", "bad column"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadLocs(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestSortChains(t *testing.T) {
	t.Parallel()

	a := LocChain{{Line: 10, Col: 1, File: "k.cl", Dir: "/src"}}
	b := LocChain{{Line: 12, Col: 1, File: "k.cl", Dir: "/src"}}
	long := LocChain{
		{Line: 10, Col: 1, File: "k.cl", Dir: "/src"},
		{Line: 30, Col: 2, File: "main.cl", Dir: "/src"},
	}

	got := SortChains([]LocChain{b, long, a, b, a})
	require.Len(t, got, 3)
	assert.True(t, got[0].Equal(a))
	assert.True(t, got[1].Equal(long))
	assert.True(t, got[2].Equal(b))
}
