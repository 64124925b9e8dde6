package dialect

// DomTree holds immediate dominators of a control-flow graph rooted at
// block 0, computed with the iterative algorithm of Cooper, Harvey and
// Kennedy over reverse postorder. It is correct for irreducible graphs.
type DomTree struct {
	idom []int // -1 for unreachable blocks
	post []int // postorder number, -1 for unreachable blocks
	rpo  []int
}

// Dominators computes the dominator tree of a graph of n blocks.
func Dominators(n int, succs func(int) []int) *DomTree {
	d := &DomTree{
		idom: make([]int, n),
		post: make([]int, n),
	}
	for i := range d.idom {
		d.idom[i] = -1
		d.post[i] = -1
	}
	if n == 0 {
		return d
	}

	// Iterative DFS postorder.
	type frame struct {
		block int
		next  int
	}
	visited := make([]bool, n)
	var order []int
	stack := []frame{{block: 0}}
	visited[0] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := succs(top.block)
		if top.next < len(out) {
			s := out[top.next]
			top.next++
			if s >= 0 && s < n && !visited[s] {
				visited[s] = true
				stack = append(stack, frame{block: s})
			}
			continue
		}
		d.post[top.block] = len(order)
		order = append(order, top.block)
		stack = stack[:len(stack)-1]
	}

	d.rpo = make([]int, len(order))
	for i, b := range order {
		d.rpo[len(order)-1-i] = b
	}

	preds := make([][]int, n)
	for _, b := range d.rpo {
		for _, s := range succs(b) {
			if s >= 0 && s < n {
				preds[s] = append(preds[s], b)
			}
		}
	}

	d.idom[0] = 0
	for changed := true; changed; {
		changed = false
		for _, b := range d.rpo[1:] {
			newIdom := -1
			for _, p := range preds[b] {
				if d.idom[p] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
				} else {
					newIdom = d.intersect(p, newIdom)
				}
			}
			if newIdom != d.idom[b] {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
	return d
}

func (d *DomTree) intersect(a, b int) int {
	for a != b {
		for d.post[a] < d.post[b] {
			a = d.idom[a]
		}
		for d.post[b] < d.post[a] {
			b = d.idom[b]
		}
	}
	return a
}

// Reachable reports whether block b is reachable from the entry.
func (d *DomTree) Reachable(b int) bool {
	return b >= 0 && b < len(d.post) && d.post[b] >= 0
}

// IDom returns the immediate dominator of b; the entry is its own.
func (d *DomTree) IDom(b int) int {
	return d.idom[b]
}

// Dominates reports whether a dominates b. Every block dominates itself.
func (d *DomTree) Dominates(a, b int) bool {
	if !d.Reachable(a) || !d.Reachable(b) {
		return false
	}
	for {
		if a == b {
			return true
		}
		if b == 0 {
			return false
		}
		b = d.idom[b]
	}
}

// ReversePostorder returns the reachable blocks in reverse postorder.
func (d *DomTree) ReversePostorder() []int {
	return append([]int(nil), d.rpo...)
}

// Preorder returns the reachable blocks in dominator-tree preorder,
// visiting children in increasing index. Every block appears after all of
// its dominators.
func (d *DomTree) Preorder() []int {
	if len(d.rpo) == 0 {
		return nil
	}
	children := make([][]int, len(d.idom))
	for b := 1; b < len(d.idom); b++ {
		if d.Reachable(b) {
			children[d.idom[b]] = append(children[d.idom[b]], b)
		}
	}
	out := make([]int, 0, len(d.rpo))
	stack := []int{0}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, b)
		kids := children[b]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}
