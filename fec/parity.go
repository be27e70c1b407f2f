package fec

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// ParityCheckMatrix is a sparse binary parity-check matrix stored as the
// adjacency lists of its Tanner graph. Variable nodes are codeword bit
// positions 0..n-1, check nodes are parity constraints 0..m-1, and every
// non-zero entry is an edge. Nodes and edges are plain integer indices into
// flat slices so the decoder can walk the graph in both directions without
// chasing pointers.
//
// A ParityCheckMatrix is immutable after construction and safe to share
// between any number of encoders and decoders running concurrently.
type ParityCheckMatrix struct {
	n int // codeword length (variable nodes)
	m int // number of parity checks (check nodes)

	// checkVars[c] lists the variable nodes participating in check c.
	// checkEdges[c] holds the flat edge id of each entry, in the same order.
	checkVars  [][]int
	checkEdges [][]int

	// varChecks[v] lists the checks variable v participates in.
	// varEdges[v] holds the matching flat edge ids.
	varChecks [][]int
	varEdges  [][]int

	numEdges int
}

// NewParityCheckMatrix builds a parity-check matrix for codeword length n
// from per-check variable index lists: checks[c] holds the positions of the
// non-zero entries in row c. Indices must be in range and unique per row,
// every row must be non-empty, and every variable must appear in at least
// one check (an unchecked variable would make the Tanner graph disconnected).
func NewParityCheckMatrix(n int, checks [][]int) (*ParityCheckMatrix, error) {
	m := len(checks)
	if n <= 0 || m <= 0 || m >= n {
		return nil, fmt.Errorf("fec: invalid code dimensions n=%d m=%d", n, m)
	}

	h := &ParityCheckMatrix{
		n:          n,
		m:          m,
		checkVars:  make([][]int, m),
		checkEdges: make([][]int, m),
		varChecks:  make([][]int, n),
		varEdges:   make([][]int, n),
	}

	edge := 0
	for c, vars := range checks {
		if len(vars) == 0 {
			return nil, fmt.Errorf("fec: check %d has no variables", c)
		}
		seen := make(map[int]bool, len(vars))
		h.checkVars[c] = make([]int, 0, len(vars))
		h.checkEdges[c] = make([]int, 0, len(vars))
		for _, v := range vars {
			if v < 0 || v >= n {
				return nil, fmt.Errorf("fec: check %d references variable %d outside [0,%d)", c, v, n)
			}
			if seen[v] {
				return nil, fmt.Errorf("fec: check %d references variable %d twice", c, v)
			}
			seen[v] = true
			h.checkVars[c] = append(h.checkVars[c], v)
			h.checkEdges[c] = append(h.checkEdges[c], edge)
			h.varChecks[v] = append(h.varChecks[v], c)
			h.varEdges[v] = append(h.varEdges[v], edge)
			edge++
		}
	}
	h.numEdges = edge

	for v := 0; v < n; v++ {
		if len(h.varChecks[v]) == 0 {
			return nil, fmt.Errorf("fec: variable %d participates in no check", v)
		}
	}

	return h, nil
}

// ParityCheckFromDense builds a parity-check matrix from dense 0/1 rows.
// Convenient for small codes; large codes should use the sparse constructor.
func ParityCheckFromDense(rows [][]uint8) (*ParityCheckMatrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("fec: empty parity-check matrix")
	}
	n := len(rows[0])
	checks := make([][]int, len(rows))
	for c, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("fec: ragged parity-check matrix at row %d", c)
		}
		for v, bit := range row {
			switch bit {
			case 0:
			case 1:
				checks[c] = append(checks[c], v)
			default:
				return nil, fmt.Errorf("fec: non-binary entry %d at (%d,%d)", bit, c, v)
			}
		}
	}
	return NewParityCheckMatrix(n, checks)
}

// Hamming84 returns the parity-check matrix of the (8,4) extended Hamming
// code in systematic form H = [P | I]. It corrects any single bit error and
// detects double errors, and is small enough to verify by hand, which makes
// it the standard smoke-test code for the whole chain.
func Hamming84() *ParityCheckMatrix {
	h, err := ParityCheckFromDense([][]uint8{
		{0, 1, 1, 1, 1, 0, 0, 0},
		{1, 0, 1, 1, 0, 1, 0, 0},
		{1, 1, 0, 1, 0, 0, 1, 0},
		{1, 1, 1, 0, 0, 0, 0, 1},
	})
	if err != nil {
		panic(err) // fixed table, cannot fail
	}
	return h
}

// Gallager constructs a pseudo-random regular LDPC code with n variable
// nodes, n-k check nodes and the given column weight, using the supplied
// seed. The same (n, k, colWeight, seed) always yields the same matrix.
// Columns are permuted after construction so that the last n-k columns form
// an invertible square, guaranteeing NewEncoder succeeds on the result.
func Gallager(n, k, colWeight int, seed uint64) (*ParityCheckMatrix, error) {
	m := n - k
	if n <= 0 || k <= 0 || m <= 0 {
		return nil, fmt.Errorf("fec: invalid code dimensions n=%d k=%d", n, k)
	}
	if colWeight < 2 || colWeight > m {
		return nil, fmt.Errorf("fec: column weight %d out of range [2,%d]", colWeight, m)
	}

	rng := rand.New(rand.NewSource(seed))

	// A few attempts: a random regular matrix is occasionally rank
	// deficient, in which case we redraw rather than fail.
	for attempt := 0; attempt < 32; attempt++ {
		checks := drawRegular(n, m, colWeight, rng)
		perm, ok := systematicPermutation(n, checks)
		if !ok {
			continue
		}
		permuted := make([][]int, m)
		for c, vars := range checks {
			permuted[c] = make([]int, len(vars))
			for i, v := range vars {
				permuted[c][i] = perm[v]
			}
		}
		return NewParityCheckMatrix(n, permuted)
	}
	return nil, fmt.Errorf("fec: failed to draw full-rank regular code n=%d k=%d w=%d: %w",
		n, k, colWeight, ErrSingularMatrix)
}

// drawRegular assigns colWeight distinct checks to every variable, spreading
// edges as evenly as possible over checks by always drawing from the least
// loaded ones.
func drawRegular(n, m, colWeight int, rng *rand.Rand) [][]int {
	checks := make([][]int, m)
	load := make([]int, m)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}

	for v := 0; v < n; v++ {
		// Sort check indices by load with random tie-break: shuffle
		// first, then stable-select the lightest colWeight checks.
		rng.Shuffle(m, func(i, j int) { order[i], order[j] = order[j], order[i] })
		picked := pickLightest(order, load, colWeight)
		for _, c := range picked {
			checks[c] = append(checks[c], v)
			load[c]++
		}
	}
	return checks
}

// pickLightest selects count check indices with the smallest load, scanning
// in the (shuffled) order given.
func pickLightest(order []int, load []int, count int) []int {
	picked := make([]int, 0, count)
	used := make(map[int]bool, count)
	for len(picked) < count {
		best := -1
		for _, c := range order {
			if used[c] {
				continue
			}
			if best == -1 || load[c] < load[best] {
				best = c
			}
		}
		picked = append(picked, best)
		used[best] = true
	}
	return picked
}

// systematicPermutation runs GF(2) elimination with column pivoting over the
// sparse rows and returns a column permutation that moves an invertible
// m-column set to the tail of the matrix. Returns ok=false when the matrix
// is rank deficient.
func systematicPermutation(n int, checks [][]int) ([]int, bool) {
	m := len(checks)
	rows := denseRows(n, checks)
	words := (n + 63) / 64

	colOrder := make([]int, n)
	for i := range colOrder {
		colOrder[i] = i
	}
	swapCols := func(a, b int) {
		if a == b {
			return
		}
		for r := range rows {
			ba := rows[r][a/64] >> (uint(a) % 64) & 1
			bb := rows[r][b/64] >> (uint(b) % 64) & 1
			if ba != bb {
				rows[r][a/64] ^= 1 << (uint(a) % 64)
				rows[r][b/64] ^= 1 << (uint(b) % 64)
			}
		}
		colOrder[a], colOrder[b] = colOrder[b], colOrder[a]
	}

	k := n - m
	for i := 0; i < m; i++ {
		col := k + i
		pivot := -1
		// Prefer a pivot already in the tail block, fall back to any
		// remaining column.
		for j := col; j < n && pivot == -1; j++ {
			for r := i; r < m; r++ {
				if rows[r][j/64]>>(uint(j)%64)&1 == 1 {
					swapCols(col, j)
					rows[i], rows[r] = rows[r], rows[i]
					pivot = r
					break
				}
			}
		}
		if pivot == -1 {
			for j := 0; j < k && pivot == -1; j++ {
				for r := i; r < m; r++ {
					if rows[r][j/64]>>(uint(j)%64)&1 == 1 {
						swapCols(col, j)
						rows[i], rows[r] = rows[r], rows[i]
						pivot = r
						break
					}
				}
			}
		}
		if pivot == -1 {
			return nil, false
		}
		for r := 0; r < m; r++ {
			if r != i && rows[r][col/64]>>(uint(col)%64)&1 == 1 {
				for w := 0; w < words; w++ {
					rows[r][w] ^= rows[i][w]
				}
			}
		}
	}

	// colOrder maps new position -> original column; invert it.
	perm := make([]int, n)
	for newPos, orig := range colOrder {
		perm[orig] = newPos
	}
	return perm, true
}

// denseRows expands sparse per-check variable lists into bitset rows.
func denseRows(n int, checks [][]int) [][]uint64 {
	words := (n + 63) / 64
	rows := make([][]uint64, len(checks))
	for c, vars := range checks {
		rows[c] = make([]uint64, words)
		for _, v := range vars {
			rows[c][v/64] |= 1 << (uint(v) % 64)
		}
	}
	return rows
}

// N returns the codeword length (number of variable nodes).
func (h *ParityCheckMatrix) N() int { return h.n }

// M returns the number of parity checks (check nodes).
func (h *ParityCheckMatrix) M() int { return h.m }

// K returns the information-word length n-m of a full-rank code.
func (h *ParityCheckMatrix) K() int { return h.n - h.m }

// Edges returns the number of edges in the Tanner graph.
func (h *ParityCheckMatrix) Edges() int { return h.numEdges }

// CheckSyndrome counts the violated parity checks of a hard-decision
// codeword. Zero means the word is a valid codeword.
func (h *ParityCheckMatrix) CheckSyndrome(bits []uint8) (int, error) {
	if len(bits) != h.n {
		return 0, fmt.Errorf("fec: codeword length %d, want %d: %w", len(bits), h.n, ErrShapeMismatch)
	}
	violated := 0
	for c := 0; c < h.m; c++ {
		x := uint8(0)
		for _, v := range h.checkVars[c] {
			x ^= bits[v] & 1
		}
		if x != 0 {
			violated++
		}
	}
	return violated, nil
}
