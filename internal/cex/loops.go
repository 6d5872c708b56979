package cex

import "github.com/gpuverify/kernelcheck/internal/bpl"

// blockGraph is the successor relation of one implementation.
type blockGraph struct {
	blocks map[string]*bpl.Block
	succ   map[string][]string
	pred   map[string][]string
}

func newBlockGraph(impl *bpl.Implementation) *blockGraph {
	g := &blockGraph{
		blocks: make(map[string]*bpl.Block),
		succ:   make(map[string][]string),
		pred:   make(map[string][]string),
	}
	for _, b := range impl.Blocks {
		g.blocks[b.Label] = b
		if gt, ok := b.Transfer.(*bpl.GotoCmd); ok {
			for _, t := range gt.Targets {
				g.succ[b.Label] = append(g.succ[b.Label], t)
				g.pred[t] = append(g.pred[t], b.Label)
			}
		}
	}
	return g
}

// reach collects every label reachable over edges without re-entering
// the excluded label.
func (g *blockGraph) reach(from string, edges map[string][]string, exclude string) map[string]bool {
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range edges[n] {
			if next == exclude || seen[next] {
				continue
			}
			seen[next] = true
			stack = append(stack, next)
		}
	}
	return seen
}

// LoopNodes returns the blocks of the natural loop headed at the given
// label: the head plus every block that lies on a cycle through it.
func LoopNodes(impl *bpl.Implementation, head string) []*bpl.Block {
	g := newBlockGraph(impl)
	hb, ok := g.blocks[head]
	if !ok {
		return nil
	}
	forward := g.reach(head, g.succ, head)
	backward := g.reach(head, g.pred, head)
	out := []*bpl.Block{hb}
	for _, b := range impl.Blocks {
		if b.Label != head && forward[b.Label] && backward[b.Label] {
			out = append(out, b)
		}
	}
	return out
}
