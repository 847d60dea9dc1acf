package btree

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tinybase/tinybase/internal/record"
	"github.com/tinybase/tinybase/internal/storage"
)

// Condition is a typed single-column comparison against stored tuples.
type Condition struct {
	Column string
	Op     record.Operator
	Code   record.TypeCode
	Value  record.Value
}

// UpdateSet is a typed column assignment for an in-place update.
type UpdateSet struct {
	Column string
	Code   record.TypeCode
	Value  record.Value
}

// Row is one decoded result tuple.
type Row []record.TypeValue

// Select collects the tuples matching the optional condition and projects
// the requested columns. A single "*" expands to the full schema.
func (t *Table) Select(columns []string, where *Condition) ([]Row, error) {
	var cells [][]byte
	var err error

	if where != nil && t.schema.IsPrimaryKey(where.Column) && where.Value != nil {
		cells, err = t.pullTuplesWithPrimary(where)
	} else {
		cells, err = t.pullTuples()
	}
	if err != nil {
		return nil, err
	}

	return t.filterTuples(cells, columns, where)
}

// RowCount returns the number of tuples in the table.
func (t *Table) RowCount() (int, error) {
	cells, err := t.pullTuples()
	if err != nil {
		return 0, err
	}
	return len(cells), nil
}

// Update rewrites columns of the single row keyed by an equality condition
// on the primary key. Same-width and narrower values rewrite in place; wider
// values are rejected per column. Returns the number of columns updated.
func (t *Table) Update(sets []UpdateSet, where Condition) (int, error) {
	key, ok := where.Value.(int32)
	if !ok {
		return 0, errors.New("update requires an INT primary key condition")
	}

	target, err := t.searchPage(t.rootPage, key)
	if err != nil {
		return 0, err
	}

	page := t.pages[target]
	cell, found, err := page.FindCell(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	updated := 0
	for _, set := range sets {
		index := t.schema.ColumnIndex(set.Column)
		if index < 0 {
			return updated, errors.Errorf("unknown column %s", set.Column)
		}

		next, ok := updateCellValue(cell, index, set.Code, set.Value)
		if !ok {
			t.log.WithFields(logrus.Fields{
				"table":  t.schema.TableName,
				"column": set.Column,
			}).Warn("update rejected: replacement value is wider than the stored value")
			continue
		}
		cell = next
		updated++
	}

	if updated == 0 {
		return 0, nil
	}

	if _, err := page.UpdateCell(key, cell); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete removes the single row keyed by an equality condition on the
// primary key, reporting whether a row was removed. Heap bytes are reclaimed
// by the reorder pass.
func (t *Table) Delete(where Condition) (bool, error) {
	key, ok := where.Value.(int32)
	if !ok {
		return false, errors.New("delete requires an INT primary key condition")
	}

	target, err := t.searchPage(t.rootPage, key)
	if err != nil {
		return false, err
	}

	page := t.pages[target]
	index := page.GetCellIndex(key)
	if index < 0 {
		return false, nil
	}

	page.DeleteCell(index)
	if err := page.UpdateInfo(); err != nil {
		return false, err
	}
	return true, page.Reorder()
}

// minLeaf descends left-most pointers to the leaf holding the smallest key.
func (t *Table) minLeaf() (storage.PageIndex, error) {
	current := t.rootPage
	for !t.pages[current].IsLeaf() {
		child, err := t.pages[current].GetLeftMostPagePointer()
		if err != nil {
			return 0, err
		}
		current = child
	}
	return current, nil
}

// maxLeaf descends right-most pointers to the leaf holding the largest key.
func (t *Table) maxLeaf() storage.PageIndex {
	current := t.rootPage
	for !t.pages[current].IsLeaf() {
		current = t.pages[current].RightMostPointer()
	}
	return current
}

// pullTuples walks the whole leaf chain from the minimum leaf.
func (t *Table) pullTuples() ([][]byte, error) {
	start, err := t.minLeaf()
	if err != nil {
		return nil, err
	}

	var cells [][]byte
	current := start
	for {
		page := t.pages[current]
		for i := 0; i < page.CellNum(); i++ {
			cell, err := page.GetCell(i)
			if err != nil {
				return nil, err
			}
			cells = append(cells, cell)
		}

		next := page.RightMostPointer()
		if next == 0 {
			return cells, nil
		}
		current = next
	}
}

// pullTuplesWithPrimary narrows the leaf walk using the primary key index:
// the operator maps to a start and end leaf on the ordered chain.
func (t *Table) pullTuplesWithPrimary(where *Condition) ([][]byte, error) {
	key, ok := where.Value.(int32)
	if !ok {
		return t.pullTuples()
	}

	target, err := t.searchPage(t.rootPage, key)
	if err != nil {
		return nil, err
	}
	min, err := t.minLeaf()
	if err != nil {
		return nil, err
	}
	max := t.maxLeaf()

	var start, end storage.PageIndex
	switch where.Op {
	case record.Equal:
		start, end = target, target
	case record.Unequal:
		start, end = min, max
	case record.Larger, record.NotSmaller:
		start, end = target, max
	case record.Smaller, record.NotLarger:
		start, end = min, target
	default:
		start, end = min, max
	}

	var cells [][]byte
	current := start
	for {
		page := t.pages[current]
		for i := 0; i < page.CellNum(); i++ {
			cell, err := page.GetCell(i)
			if err != nil {
				return nil, err
			}
			cells = append(cells, cell)
		}

		if current == end {
			return cells, nil
		}
		next := page.RightMostPointer()
		if next == 0 {
			return cells, nil
		}
		current = next
	}
}

// filterTuples applies the condition to each cell and projects the selected
// columns.
func (t *Table) filterTuples(cells [][]byte, columns []string, where *Condition) ([]Row, error) {
	ordinals, err := t.projection(columns)
	if err != nil {
		return nil, err
	}

	whereIndex := -1
	if where != nil {
		whereIndex = t.schema.ColumnIndex(where.Column)
		if whereIndex < 0 {
			return nil, errors.Errorf("unknown column %s", where.Column)
		}
	}

	rows := make([]Row, 0, len(cells))
	for _, cell := range cells {
		if where != nil {
			code := cellTypeCode(cell, whereIndex)
			value := cellValue(cell, whereIndex)
			if !record.Compare(value, where.Value, code, where.Code, where.Op) {
				continue
			}
		}
		rows = append(rows, Row(cellValues(cell, ordinals)))
	}

	return rows, nil
}

// projection resolves the selected column names to schema ordinals.
func (t *Table) projection(columns []string) ([]int, error) {
	if len(columns) == 1 && columns[0] == "*" {
		all := make([]int, len(t.schema.Columns))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	ordinals := make([]int, 0, len(columns))
	for _, name := range columns {
		index := t.schema.ColumnIndex(name)
		if index < 0 {
			return nil, errors.Errorf("unknown column %s", name)
		}
		ordinals = append(ordinals, index)
	}
	return ordinals, nil
}
