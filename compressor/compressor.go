package compressor

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Matrix is a dense row-major table of ints.
type Matrix struct {
	entries []int
	rows    int
	cols    int
}

func NewMatrix(entries []int, cols int) (*Matrix, error) {
	if len(entries) == 0 {
		return nil, errors.New("a matrix needs at least one entry")
	}
	if cols <= 0 {
		return nil, errors.Errorf("column count must be >=1; got: %v", cols)
	}
	if len(entries)%cols != 0 {
		return nil, errors.Errorf("entry count is not a multiple of column count; entries: %v, columns: %v", len(entries), cols)
	}
	return &Matrix{
		entries: entries,
		rows:    len(entries) / cols,
		cols:    cols,
	}, nil
}

func (m *Matrix) Size() (int, int) {
	return m.rows, m.cols
}

func (m *Matrix) row(r int) []int {
	return m.entries[r*m.cols : (r+1)*m.cols]
}

type Table interface {
	Compress(m *Matrix) error
	Lookup(row, col int) (int, error)
	Size() (int, int)

	// Footprint returns the number of ints the table keeps.
	Footprint() int
}

var (
	_ Table = &UniqueRowTable{}
	_ Table = &DisplacedRowTable{}
)

func checkRange(row, col, rows, cols int) error {
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return errors.Errorf("index out of range: [%v, %v]; size: [%v, %v]", row, col, rows, cols)
	}
	return nil
}

// UniqueRowTable stores each distinct row once.
type UniqueRowTable struct {
	Rows     []int
	RowRefs  []int
	RowCount int
	ColCount int
}

func NewUniqueRowTable() *UniqueRowTable {
	return &UniqueRowTable{}
}

func (t *UniqueRowTable) Compress(m *Matrix) error {
	refs := make([]int, m.rows)
	seen := map[string]int{}
	var rows []int
	for r := 0; r < m.rows; r++ {
		row := m.row(r)
		var b strings.Builder
		for _, v := range row {
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(',')
		}
		k := b.String()
		ref, ok := seen[k]
		if !ok {
			ref = len(seen)
			seen[k] = ref
			rows = append(rows, row...)
		}
		refs[r] = ref
	}
	t.Rows = rows
	t.RowRefs = refs
	t.RowCount = m.rows
	t.ColCount = m.cols
	return nil
}

func (t *UniqueRowTable) Lookup(row, col int) (int, error) {
	if err := checkRange(row, col, t.RowCount, t.ColCount); err != nil {
		return 0, err
	}
	return t.Rows[t.RowRefs[row]*t.ColCount+col], nil
}

func (t *UniqueRowTable) Size() (int, int) {
	return t.RowCount, t.ColCount
}

func (t *UniqueRowTable) Footprint() int {
	return len(t.Rows) + len(t.RowRefs)
}

// noOwner marks a slot of a DisplacedRowTable no row occupies.
const noOwner = -1

// DisplacedRowTable overlays sparse rows into one vector. Each row is shifted
// until its non-empty entries fall into free slots; Owners records which row
// a slot belongs to.
type DisplacedRowTable struct {
	Empty    int
	Entries  []int
	Owners   []int
	Offsets  []int
	RowCount int
	ColCount int
}

func NewDisplacedRowTable(empty int) *DisplacedRowTable {
	return &DisplacedRowTable{
		Empty: empty,
	}
}

func (t *DisplacedRowTable) Compress(m *Matrix) error {
	type sparseRow struct {
		num  int
		cols []int
	}
	rows := make([]sparseRow, m.rows)
	for r := 0; r < m.rows; r++ {
		rows[r].num = r
		for c, v := range m.row(r) {
			if v != t.Empty {
				rows[r].cols = append(rows[r].cols, c)
			}
		}
	}
	// Placing dense rows first leaves the gaps to the sparse ones.
	sort.SliceStable(rows, func(i, j int) bool {
		return len(rows[i].cols) > len(rows[j].cols)
	})

	size := len(m.entries) + m.cols
	entries := make([]int, size)
	owners := make([]int, size)
	for i := range entries {
		entries[i] = t.Empty
		owners[i] = noOwner
	}
	offsets := make([]int, m.rows)
	top := 0
	for _, sr := range rows {
		if len(sr.cols) == 0 {
			continue
		}
		off := 0
		for !fits(owners, off, sr.cols) {
			off++
		}
		offsets[sr.num] = off
		row := m.row(sr.num)
		for _, c := range sr.cols {
			entries[off+c] = row[c]
			owners[off+c] = sr.num
		}
		if off+m.cols > top {
			top = off + m.cols
		}
	}

	t.Entries = entries[:top]
	t.Owners = owners[:top]
	t.Offsets = offsets
	t.RowCount = m.rows
	t.ColCount = m.cols
	return nil
}

func fits(owners []int, off int, cols []int) bool {
	for _, c := range cols {
		if owners[off+c] != noOwner {
			return false
		}
	}
	return true
}

func (t *DisplacedRowTable) Lookup(row, col int) (int, error) {
	if err := checkRange(row, col, t.RowCount, t.ColCount); err != nil {
		return t.Empty, err
	}
	i := t.Offsets[row] + col
	if i >= len(t.Owners) || t.Owners[i] != row {
		return t.Empty, nil
	}
	return t.Entries[i], nil
}

func (t *DisplacedRowTable) Size() (int, int) {
	return t.RowCount, t.ColCount
}

func (t *DisplacedRowTable) Footprint() int {
	return len(t.Entries) + len(t.Owners) + len(t.Offsets)
}

// Smallest compresses m with every table kind and returns the smallest result.
func Smallest(m *Matrix, empty int) (Table, error) {
	var best Table
	for _, t := range []Table{NewUniqueRowTable(), NewDisplacedRowTable(empty)} {
		if err := t.Compress(m); err != nil {
			return nil, err
		}
		if best == nil || t.Footprint() < best.Footprint() {
			best = t
		}
	}
	return best, nil
}
