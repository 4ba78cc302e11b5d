package chapters

import (
	"errors"
	"fmt"
)

var ErrRowOutOfRange = errors.New("row index out of range")

// SelectionModel is the ordered list of scanned chapters the user picks from.
// Sequence numbers are dense over selected rows and recomputed on every
// mutation. It is not safe for concurrent use.
type SelectionModel struct {
	rows []ChapterRecord
	seq  []int
}

func NewSelectionModel(records []ChapterRecord) *SelectionModel {
	m := &SelectionModel{}
	m.Replace(records)
	return m
}

// Replace swaps in the result of a new scan.
func (m *SelectionModel) Replace(records []ChapterRecord) {
	m.rows = make([]ChapterRecord, len(records))
	copy(m.rows, records)
	m.renumber()
}

func (m *SelectionModel) Len() int {
	return len(m.rows)
}

func (m *SelectionModel) Row(i int) (ChapterRecord, error) {
	if err := m.check(i); err != nil {
		return ChapterRecord{}, err
	}
	return m.rows[i], nil
}

// Rows returns a copy of every row.
func (m *SelectionModel) Rows() []ChapterRecord {
	out := make([]ChapterRecord, len(m.rows))
	copy(out, m.rows)
	return out
}

func (m *SelectionModel) Toggle(i int) error {
	if err := m.check(i); err != nil {
		return err
	}
	m.rows[i].Selected = !m.rows[i].Selected
	m.renumber()
	return nil
}

// ToggleAll selects every row unless all are already selected, in which case
// it deselects every row.
func (m *SelectionModel) ToggleAll() {
	target := m.SelectedCount() != len(m.rows)
	for i := range m.rows {
		m.rows[i].Selected = target
	}
	m.renumber()
}

// SetIllustration sets the image for one row. Selection is untouched.
func (m *SelectionModel) SetIllustration(i int, path string) error {
	if err := m.check(i); err != nil {
		return err
	}
	m.rows[i].IllustrationPath = path
	return nil
}

// SequenceNumber is the 1-based position of row i among selected rows, or
// false if the row is not selected.
func (m *SelectionModel) SequenceNumber(i int) (int, bool) {
	if i < 0 || i >= len(m.rows) || m.seq[i] == 0 {
		return 0, false
	}
	return m.seq[i], true
}

func (m *SelectionModel) SelectedCount() int {
	n := 0
	for _, r := range m.rows {
		if r.Selected {
			n++
		}
	}
	return n
}

// Selected returns the selected rows in file order.
func (m *SelectionModel) Selected() []ChapterRecord {
	out := make([]ChapterRecord, 0, len(m.rows))
	for _, r := range m.rows {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}

func (m *SelectionModel) renumber() {
	m.seq = make([]int, len(m.rows))
	n := 0
	for i, r := range m.rows {
		if r.Selected {
			n++
			m.seq[i] = n
		}
	}
}

func (m *SelectionModel) check(i int) error {
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("%w: %d (have %d rows)", ErrRowOutOfRange, i, len(m.rows))
	}
	return nil
}
