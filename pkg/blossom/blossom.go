// Package blossom computes maximum-weight matchings in general graphs using
// Edmonds' blossom algorithm with dual variables, in O(n^3) time.
//
// Weights are int64. Dual variables are kept doubled (slack = u_i + u_j - 2w),
// so with integer weights every dual stays an integer and the S-to-S edge
// delta (slack/2) is exact.
//
// The solver is deterministic: the same vertex count and edge order always
// produce the same matching.
package blossom

import (
	"errors"
	"fmt"
)

// ErrInvalidEdge is returned for self-loops and out-of-range endpoints.
var ErrInvalidEdge = errors.New("blossom: invalid edge")

// Edge is an undirected weighted edge between vertices U and V.
type Edge struct {
	U, V   int
	Weight int64
}

// MaxWeightMatching returns mate, where mate[v] is the vertex matched to v
// or -1 if v is unmatched. Vertices are 0..n-1. Edges with non-positive
// weight never improve the objective and are therefore never selected.
// The matching maximizes total weight, not cardinality.
func MaxWeightMatching(n int, edges []Edge) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative vertex count %d", ErrInvalidEdge, n)
	}
	for _, e := range edges {
		if e.U < 0 || e.V < 0 || e.U >= n || e.V >= n || e.U == e.V {
			return nil, fmt.Errorf("%w: %d-%d (n=%d)", ErrInvalidEdge, e.U, e.V, n)
		}
	}

	mate := make([]int, n)
	for i := range mate {
		mate[i] = -1
	}
	if n == 0 || len(edges) == 0 {
		return mate, nil
	}

	s := newSolver(n, edges)
	s.solve()

	for v := 0; v < n; v++ {
		if s.mate[v] >= 0 {
			mate[v] = s.endpoint[s.mate[v]]
		}
	}
	return mate, nil
}

// Weight sums the weights of matched edges. Parallel edges count once,
// with the largest weight.
func Weight(mate []int, edges []Edge) int64 {
	best := make(map[[2]int]int64)
	for _, e := range edges {
		u, v := e.U, e.V
		if u > v {
			u, v = v, u
		}
		if mate[u] != v {
			continue
		}
		k := [2]int{u, v}
		if w, ok := best[k]; !ok || e.Weight > w {
			best[k] = e.Weight
		}
	}
	var total int64
	for _, w := range best {
		total += w
	}
	return total
}

// ══════════════════════════════════════════════════════════════════════════════
// SOLVER STATE
//
// Vertices are 0..n-1, blossoms n..2n-1. Edge k has endpoints 2k and 2k+1;
// endpoint p belongs to vertex endpoint[p], and p^1 is the opposite end.
// Labels: 0 free, 1 S (outer), 2 T (inner); 5 marks a blossom during scan.
// ══════════════════════════════════════════════════════════════════════════════

type solver struct {
	n     int
	edges []Edge

	endpoint  []int
	neighbend [][]int

	// mate[v] is the remote endpoint of v's matched edge, or -1.
	mate []int

	label    []int
	labelend []int

	inblossom     []int
	blossomparent []int
	blossomchilds [][]int
	blossombase   []int
	blossomendps  [][]int

	bestedge         []int
	blossombestedges [][]int
	unusedblossoms   []int

	dualvar   []int64
	allowedge []bool
	queue     []int
}

func newSolver(n int, edges []Edge) *solver {
	nedge := len(edges)

	var maxweight int64
	for _, e := range edges {
		if e.Weight > maxweight {
			maxweight = e.Weight
		}
	}

	s := &solver{
		n:                n,
		edges:            edges,
		endpoint:         make([]int, 2*nedge),
		neighbend:        make([][]int, n),
		mate:             fill(n, -1),
		label:            make([]int, 2*n),
		labelend:         fill(2*n, -1),
		inblossom:        make([]int, n),
		blossomparent:    fill(2*n, -1),
		blossomchilds:    make([][]int, 2*n),
		blossombase:      fill(2*n, -1),
		blossomendps:     make([][]int, 2*n),
		bestedge:         fill(2*n, -1),
		blossombestedges: make([][]int, 2*n),
		unusedblossoms:   make([]int, 0, n),
		dualvar:          make([]int64, 2*n),
		allowedge:        make([]bool, nedge),
	}

	for k, e := range edges {
		s.endpoint[2*k] = e.U
		s.endpoint[2*k+1] = e.V
		s.neighbend[e.U] = append(s.neighbend[e.U], 2*k+1)
		s.neighbend[e.V] = append(s.neighbend[e.V], 2*k)
	}
	for v := 0; v < n; v++ {
		s.inblossom[v] = v
		s.blossombase[v] = v
		s.dualvar[v] = maxweight
	}
	for b := n; b < 2*n; b++ {
		s.unusedblossoms = append(s.unusedblossoms, b)
	}
	return s
}

func fill(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// at indexes s with Python-style negative wrap-around.
func at(s []int, i int) int {
	n := len(s)
	return s[((i%n)+n)%n]
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func rotate(s []int, i int) []int {
	out := make([]int, 0, len(s))
	out = append(out, s[i:]...)
	return append(out, s[:i]...)
}

func (s *solver) slack(k int) int64 {
	e := s.edges[k]
	return s.dualvar[e.U] + s.dualvar[e.V] - 2*e.Weight
}

// leaves returns the vertices contained in (possibly nested) blossom b.
func (s *solver) leaves(b int) []int {
	if b < s.n {
		return []int{b}
	}
	var out []int
	for _, t := range s.blossomchilds[b] {
		if t < s.n {
			out = append(out, t)
		} else {
			out = append(out, s.leaves(t)...)
		}
	}
	return out
}

// assignLabel labels the top-level blossom of w with t, reached via endpoint p.
func (s *solver) assignLabel(w, t, p int) {
	b := s.inblossom[w]
	s.label[w], s.label[b] = t, t
	s.labelend[w], s.labelend[b] = p, p
	s.bestedge[w], s.bestedge[b] = -1, -1

	switch t {
	case 1:
		s.queue = append(s.queue, s.leaves(b)...)
	case 2:
		base := s.blossombase[b]
		s.assignLabel(s.endpoint[s.mate[base]], 1, s.mate[base]^1)
	}
}

// scanBlossom traces back from v and w to find a common base (new blossom)
// or returns -1 if they reach different roots (augmenting path).
func (s *solver) scanBlossom(v, w int) int {
	var path []int
	base := -1

	for v != -1 || w != -1 {
		b := s.inblossom[v]
		if s.label[b]&4 != 0 {
			base = s.blossombase[b]
			break
		}
		path = append(path, b)
		s.label[b] = 5

		if s.labelend[b] == -1 {
			v = -1
		} else {
			v = s.endpoint[s.labelend[b]]
			b = s.inblossom[v]
			v = s.endpoint[s.labelend[b]]
		}
		if w != -1 {
			v, w = w, v
		}
	}

	for _, b := range path {
		s.label[b] = 1
	}
	return base
}

// addBlossom builds a new S-blossom with the given base through edge k.
func (s *solver) addBlossom(base, k int) {
	v, w := s.edges[k].U, s.edges[k].V
	bb := s.inblossom[base]
	bv := s.inblossom[v]
	bw := s.inblossom[w]

	b := s.unusedblossoms[len(s.unusedblossoms)-1]
	s.unusedblossoms = s.unusedblossoms[:len(s.unusedblossoms)-1]

	s.blossombase[b] = base
	s.blossomparent[b] = -1
	s.blossomparent[bb] = b

	var path, endps []int
	for bv != bb {
		s.blossomparent[bv] = b
		path = append(path, bv)
		endps = append(endps, s.labelend[bv])
		v = s.endpoint[s.labelend[bv]]
		bv = s.inblossom[v]
	}
	path = append(path, bb)
	reverseInts(path)
	reverseInts(endps)
	endps = append(endps, 2*k)

	for bw != bb {
		s.blossomparent[bw] = b
		path = append(path, bw)
		endps = append(endps, s.labelend[bw]^1)
		w = s.endpoint[s.labelend[bw]]
		bw = s.inblossom[w]
	}

	s.blossomchilds[b] = path
	s.blossomendps[b] = endps
	s.label[b] = 1
	s.labelend[b] = s.labelend[bb]
	s.dualvar[b] = 0

	for _, leaf := range s.leaves(b) {
		if s.label[s.inblossom[leaf]] == 2 {
			s.queue = append(s.queue, leaf)
		}
		s.inblossom[leaf] = b
	}

	bestedgeto := fill(2*s.n, -1)
	for _, sub := range path {
		var nblists [][]int
		if s.blossombestedges[sub] == nil {
			for _, leaf := range s.leaves(sub) {
				nb := make([]int, len(s.neighbend[leaf]))
				for i, p := range s.neighbend[leaf] {
					nb[i] = p / 2
				}
				nblists = append(nblists, nb)
			}
		} else {
			nblists = [][]int{s.blossombestedges[sub]}
		}

		for _, nblist := range nblists {
			for _, kk := range nblist {
				j := s.edges[kk].V
				if s.inblossom[j] == b {
					j = s.edges[kk].U
				}
				bj := s.inblossom[j]
				if bj != b && s.label[bj] == 1 &&
					(bestedgeto[bj] == -1 || s.slack(kk) < s.slack(bestedgeto[bj])) {
					bestedgeto[bj] = kk
				}
			}
		}
		s.blossombestedges[sub] = nil
		s.bestedge[sub] = -1
	}

	best := make([]int, 0)
	for _, kk := range bestedgeto {
		if kk != -1 {
			best = append(best, kk)
		}
	}
	s.blossombestedges[b] = best
	s.bestedge[b] = -1
	for _, kk := range best {
		if s.bestedge[b] == -1 || s.slack(kk) < s.slack(s.bestedge[b]) {
			s.bestedge[b] = kk
		}
	}
}

// expandBlossom dissolves blossom b. At the end of a stage (endstage) nested
// zero-dual blossoms are expanded recursively; mid-stage a T-blossom's
// children are relabelled so the alternating tree stays consistent.
func (s *solver) expandBlossom(b int, endstage bool) {
	for _, sub := range s.blossomchilds[b] {
		s.blossomparent[sub] = -1
		switch {
		case sub < s.n:
			s.inblossom[sub] = sub
		case endstage && s.dualvar[sub] == 0:
			s.expandBlossom(sub, endstage)
		default:
			for _, leaf := range s.leaves(sub) {
				s.inblossom[leaf] = sub
			}
		}
	}

	if !endstage && s.label[b] == 2 {
		childs := s.blossomchilds[b]
		endps := s.blossomendps[b]

		entrychild := s.inblossom[s.endpoint[s.labelend[b]^1]]
		j := indexOf(childs, entrychild)
		var jstep, endptrick int
		if j&1 != 0 {
			j -= len(childs)
			jstep = 1
			endptrick = 0
		} else {
			jstep = -1
			endptrick = 1
		}

		p := s.labelend[b]
		for j != 0 {
			s.label[s.endpoint[p^1]] = 0
			s.label[s.endpoint[at(endps, j-endptrick)^endptrick^1]] = 0
			s.assignLabel(s.endpoint[p^1], 2, p)
			s.allowedge[at(endps, j-endptrick)/2] = true
			j += jstep
			p = at(endps, j-endptrick) ^ endptrick
			s.allowedge[p/2] = true
			j += jstep
		}

		bv := at(childs, j)
		s.label[s.endpoint[p^1]] = 2
		s.label[bv] = 2
		s.labelend[s.endpoint[p^1]] = p
		s.labelend[bv] = p
		s.bestedge[bv] = -1
		j += jstep

		for at(childs, j) != entrychild {
			bv = at(childs, j)
			if s.label[bv] == 1 {
				j += jstep
				continue
			}
			found := -1
			for _, leaf := range s.leaves(bv) {
				if s.label[leaf] != 0 {
					found = leaf
					break
				}
			}
			if found >= 0 {
				s.label[found] = 0
				s.label[s.endpoint[s.mate[s.blossombase[bv]]]] = 0
				s.assignLabel(found, 2, s.labelend[found])
			}
			j += jstep
		}
	}

	s.label[b] = -1
	s.labelend[b] = -1
	s.blossomchilds[b] = nil
	s.blossomendps[b] = nil
	s.blossombase[b] = -1
	s.blossombestedges[b] = nil
	s.bestedge[b] = -1
	s.unusedblossoms = append(s.unusedblossoms, b)
}

// augmentBlossom swaps matched and unmatched edges along the even path
// from vertex v to the base of blossom b, making v the new base.
func (s *solver) augmentBlossom(b, v int) {
	t := v
	for s.blossomparent[t] != b {
		t = s.blossomparent[t]
	}
	if t >= s.n {
		s.augmentBlossom(t, v)
	}

	childs := s.blossomchilds[b]
	endps := s.blossomendps[b]
	i := indexOf(childs, t)
	j := i
	var jstep, endptrick int
	if i&1 != 0 {
		j -= len(childs)
		jstep = 1
		endptrick = 0
	} else {
		jstep = -1
		endptrick = 1
	}

	for j != 0 {
		j += jstep
		t = at(childs, j)
		p := at(endps, j-endptrick) ^ endptrick
		if t >= s.n {
			s.augmentBlossom(t, s.endpoint[p])
		}
		j += jstep
		t = at(childs, j)
		if t >= s.n {
			s.augmentBlossom(t, s.endpoint[p^1])
		}
		s.mate[s.endpoint[p]] = p ^ 1
		s.mate[s.endpoint[p^1]] = p
	}

	s.blossomchilds[b] = rotate(childs, i)
	s.blossomendps[b] = rotate(endps, i)
	s.blossombase[b] = s.blossombase[s.blossomchilds[b][0]]
}

// augmentMatching flips the augmenting path through edge k.
func (s *solver) augmentMatching(k int) {
	e := s.edges[k]
	for _, start := range [2][2]int{{e.U, 2*k + 1}, {e.V, 2 * k}} {
		sv, p := start[0], start[1]
		for {
			bs := s.inblossom[sv]
			if bs >= s.n {
				s.augmentBlossom(bs, sv)
			}
			s.mate[sv] = p
			if s.labelend[bs] == -1 {
				break
			}
			t := s.endpoint[s.labelend[bs]]
			bt := s.inblossom[t]
			sv = s.endpoint[s.labelend[bt]]
			j := s.endpoint[s.labelend[bt]^1]
			if bt >= s.n {
				s.augmentBlossom(bt, j)
			}
			s.mate[j] = s.labelend[bt]
			p = s.labelend[bt] ^ 1
		}
	}
}

func (s *solver) solve() {
	n := s.n

	for stage := 0; stage < n; stage++ {
		for i := range s.label {
			s.label[i] = 0
			s.bestedge[i] = -1
		}
		for b := n; b < 2*n; b++ {
			s.blossombestedges[b] = nil
		}
		for k := range s.allowedge {
			s.allowedge[k] = false
		}
		s.queue = s.queue[:0]

		for v := 0; v < n; v++ {
			if s.mate[v] == -1 && s.label[s.inblossom[v]] == 0 {
				s.assignLabel(v, 1, -1)
			}
		}

		augmented := false
	substage:
		for {
			for len(s.queue) > 0 && !augmented {
				v := s.queue[len(s.queue)-1]
				s.queue = s.queue[:len(s.queue)-1]

				for _, p := range s.neighbend[v] {
					k := p / 2
					w := s.endpoint[p]
					if s.inblossom[v] == s.inblossom[w] {
						continue
					}

					var kslack int64
					if !s.allowedge[k] {
						kslack = s.slack(k)
						if kslack <= 0 {
							s.allowedge[k] = true
						}
					}

					switch {
					case s.allowedge[k]:
						switch {
						case s.label[s.inblossom[w]] == 0:
							s.assignLabel(w, 2, p^1)
						case s.label[s.inblossom[w]] == 1:
							if base := s.scanBlossom(v, w); base >= 0 {
								s.addBlossom(base, k)
							} else {
								s.augmentMatching(k)
								augmented = true
							}
						case s.label[w] == 0:
							s.label[w] = 2
							s.labelend[w] = p ^ 1
						}
					case s.label[s.inblossom[w]] == 1:
						b := s.inblossom[v]
						if s.bestedge[b] == -1 || kslack < s.slack(s.bestedge[b]) {
							s.bestedge[b] = k
						}
					case s.label[w] == 0:
						if s.bestedge[w] == -1 || kslack < s.slack(s.bestedge[w]) {
							s.bestedge[w] = k
						}
					}

					if augmented {
						break
					}
				}
			}
			if augmented {
				break
			}

			// No augmenting path with the current duals: pick the smallest
			// dual change that creates a new tight edge or ends the stage.
			deltatype := 1
			delta := s.dualvar[0]
			for v := 1; v < n; v++ {
				if s.dualvar[v] < delta {
					delta = s.dualvar[v]
				}
			}
			deltaedge, deltablossom := -1, -1

			for v := 0; v < n; v++ {
				if s.label[s.inblossom[v]] == 0 && s.bestedge[v] != -1 {
					if d := s.slack(s.bestedge[v]); d < delta {
						delta = d
						deltatype = 2
						deltaedge = s.bestedge[v]
					}
				}
			}
			for b := 0; b < 2*n; b++ {
				if s.blossomparent[b] == -1 && s.label[b] == 1 && s.bestedge[b] != -1 {
					if d := s.slack(s.bestedge[b]) / 2; d < delta {
						delta = d
						deltatype = 3
						deltaedge = s.bestedge[b]
					}
				}
			}
			for b := n; b < 2*n; b++ {
				if s.blossombase[b] >= 0 && s.blossomparent[b] == -1 && s.label[b] == 2 &&
					s.dualvar[b] < delta {
					delta = s.dualvar[b]
					deltatype = 4
					deltablossom = b
				}
			}

			for v := 0; v < n; v++ {
				switch s.label[s.inblossom[v]] {
				case 1:
					s.dualvar[v] -= delta
				case 2:
					s.dualvar[v] += delta
				}
			}
			for b := n; b < 2*n; b++ {
				if s.blossombase[b] >= 0 && s.blossomparent[b] == -1 {
					switch s.label[b] {
					case 1:
						s.dualvar[b] += delta
					case 2:
						s.dualvar[b] -= delta
					}
				}
			}

			switch deltatype {
			case 1:
				break substage
			case 2:
				s.allowedge[deltaedge] = true
				i, j := s.edges[deltaedge].U, s.edges[deltaedge].V
				if s.label[s.inblossom[i]] == 0 {
					i = j
				}
				s.queue = append(s.queue, i)
			case 3:
				s.allowedge[deltaedge] = true
				s.queue = append(s.queue, s.edges[deltaedge].U)
			case 4:
				s.expandBlossom(deltablossom, false)
			}
		}

		if !augmented {
			break
		}

		for b := n; b < 2*n; b++ {
			if s.blossomparent[b] == -1 && s.blossombase[b] >= 0 && s.label[b] == 1 && s.dualvar[b] == 0 {
				s.expandBlossom(b, true)
			}
		}
	}
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
