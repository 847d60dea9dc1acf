package btree

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tinybase/tinybase/internal/record"
	"github.com/tinybase/tinybase/internal/storage"
)

// FanoutUnset marks a table whose fanout has not been learned yet.
const FanoutUnset = int32(math.MaxInt32)

// ErrDuplicateKey is returned when an insert collides with an existing
// primary key.
var ErrDuplicateKey = errors.New("duplicate primary key")

// cellPivot is the median chosen when a page splits: the median key of the
// page's keys plus the incoming key, and its rank among the existing keys.
type cellPivot struct {
	index int
	key   storage.CellKey
}

// Table is a B+Tree over the pages of one table file. Pages are owned
// elements of a slice indexed by page number; pages refer to each other by
// index only. A Table is owned exclusively by the catalog registry.
type Table struct {
	path   string
	file   *storage.File
	pages  []*storage.Page
	schema Schema

	rootPage storage.PageIndex
	fanout   int32

	log logrus.FieldLogger
}

// Create creates a new table file with a single empty leaf as page zero.
func Create(path string, schema Schema, log logrus.FieldLogger) (*Table, error) {
	file, err := storage.Create(path)
	if err != nil {
		return nil, err
	}

	t := &Table{
		path:   path,
		file:   file,
		schema: schema,
		fanout: FanoutUnset,
		log:    log,
	}

	if _, err := t.createPage(storage.TableLeafPage); err != nil {
		return nil, err
	}

	return t, nil
}

// Load opens an existing table file, parses every page and rebuilds the
// in-memory parent links from the known root.
func Load(path string, schema Schema, rootPage, fanout int32, log logrus.FieldLogger) (*Table, error) {
	file, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	size, err := file.Size()
	if err != nil {
		return nil, err
	}
	if size%storage.PageSize != 0 {
		panic("table file size is not a multiple of the page size")
	}

	t := &Table{
		path:     path,
		file:     file,
		schema:   schema,
		rootPage: storage.PageIndex(rootPage),
		fanout:   fanout,
		log:      log,
	}

	for i := int64(0); i < size/storage.PageSize; i++ {
		page := storage.NewPage(file, i*storage.PageSize)
		if err := page.ParseInfo(); err != nil {
			return nil, err
		}
		t.pages = append(t.pages, page)
	}

	if err := t.loadParent(t.rootPage); err != nil {
		return nil, err
	}

	return t, nil
}

// Schema returns the table schema.
func (t *Table) Schema() *Schema {
	return &t.schema
}

// RootPage returns the current root page index.
func (t *Table) RootPage() int32 {
	return int32(t.rootPage)
}

// Fanout returns the learned fanout, or FanoutUnset.
func (t *Table) Fanout() int32 {
	return t.fanout
}

// Path returns the table file path.
func (t *Table) Path() string {
	return t.path
}

// Close closes the table file.
func (t *Table) Close() error {
	return t.file.Close()
}

// Insert adds one tuple to the tree. The first value is the primary key;
// a colliding key rejects the insert with ErrDuplicateKey and no mutation.
func (t *Table) Insert(codes []record.TypeCode, values []record.Value) error {
	key := values[0].(int32)

	target, err := t.searchPage(t.rootPage, key)
	if err != nil {
		return err
	}

	if t.pages[target].IsKeyDuplicate(key) {
		return errors.Wrapf(ErrDuplicateKey, "key %d in %s", key, t.schema.TableName)
	}

	cell := prepareLeafCell(codes, values)

	if t.fanout == FanoutUnset && !t.pages[target].HasSpace(len(cell)) {
		t.updateFanout(target)
	}

	return t.insertCell(target, key, cell, nil)
}

// searchPage descends from current to the leaf responsible for key.
func (t *Table) searchPage(current storage.PageIndex, key storage.CellKey) (storage.PageIndex, error) {
	page := t.pages[current]
	if page.IsLeaf() {
		return current, nil
	}

	min, max := page.GetCellKeyRange()

	switch {
	case key < min:
		child, err := page.GetLeftMostPagePointer()
		if err != nil {
			return 0, err
		}
		return t.searchPage(child, key)
	case key >= max:
		return t.searchPage(page.RightMostPointer(), key)
	default:
		// a key equal to a separator lives in the subtree right of that cell
		rank := page.GetLowerBound(key)
		if page.IsKeyDuplicate(key) {
			rank++
		}
		child, err := page.GetCellLeftPointer(rank)
		if err != nil {
			return 0, err
		}
		return t.searchPage(child, key)
	}
}

// insertCell places a cell into target, splitting and propagating up the
// tree on overflow. rightChild carries the new right sibling while a split
// propagates; it is nil on the initial leaf insert.
func (t *Table) insertCell(target storage.PageIndex, key storage.CellKey, cell []byte, rightChild *storage.PageIndex) error {
	page := t.pages[target]

	if !t.willOverflow(target) && page.HasSpace(len(cell)) {
		if !page.IsLeaf() {
			rank := page.GetLowerBound(key)
			if rank == page.CellNum() {
				page.SetRightMostPointer(*rightChild)
			} else if err := page.SetCellLeftPointer(rank, *rightChild); err != nil {
				return err
			}
		} else if rightChild != nil {
			page.SetRightMostPointer(*rightChild)
		}
		return page.InsertCell(key, cell)
	}

	pivot := t.getCellPivot(target, key)

	var newPage storage.PageIndex
	var err error
	if page.IsLeaf() {
		newPage, err = t.splitLeafPage(target, pivot, key, cell)
	} else {
		newPage, err = t.splitInteriorPage(target, pivot, key, cell, *rightChild)
	}
	if err != nil {
		return err
	}

	var parent storage.PageIndex
	if t.isRoot(target) {
		parent, err = t.createPage(storage.TableInteriorPage)
		if err != nil {
			return err
		}
		t.rootPage = parent
		t.log.WithFields(logrus.Fields{
			"table": t.schema.TableName,
			"root":  parent,
		}).Debug("root split")
	} else {
		parent = t.pages[target].Parent()
	}

	t.pages[target].SetParent(parent)
	t.pages[newPage].SetParent(parent)

	interior := prepareInteriorCell(target, pivot.key)
	return t.insertCell(parent, pivot.key, interior, &newPage)
}

// splitLeafPage moves every cell with key >= pivot.key into a fresh leaf,
// links the new leaf into the ordered chain, and slots the incoming cell
// into the proper half.
func (t *Table) splitLeafPage(target storage.PageIndex, pivot cellPivot, key storage.CellKey, cell []byte) (storage.PageIndex, error) {
	newIndex, err := t.createPage(storage.TableLeafPage)
	if err != nil {
		return 0, err
	}

	targetPage := t.pages[target]
	newPage := t.pages[newIndex]

	// slots compact after each delete, so the pivot rank is reused until the
	// high half has moved over
	for targetPage.CellNum() > pivot.index {
		moveKey, err := targetPage.GetCellKey(pivot.index)
		if err != nil {
			return 0, err
		}
		moveCell, err := targetPage.GetCell(pivot.index)
		if err != nil {
			return 0, err
		}
		if err := newPage.InsertCell(moveKey, moveCell); err != nil {
			return 0, err
		}
		targetPage.DeleteCell(pivot.index)
	}

	// the new leaf inherits the chain link; the target now points at it
	newPage.SetRightMostPointer(targetPage.RightMostPointer())
	targetPage.SetRightMostPointer(newIndex)

	if err := targetPage.UpdateInfo(); err != nil {
		return 0, err
	}
	if err := newPage.UpdateInfo(); err != nil {
		return 0, err
	}
	if err := targetPage.Reorder(); err != nil {
		return 0, err
	}

	if key < pivot.key {
		err = targetPage.InsertCell(key, cell)
	} else {
		err = newPage.InsertCell(key, cell)
	}
	if err != nil {
		return 0, err
	}

	t.log.WithFields(logrus.Fields{
		"table": t.schema.TableName,
		"page":  target,
		"new":   newIndex,
		"pivot": pivot.key,
	}).Debug("leaf split")

	return newIndex, nil
}

// splitInteriorPage splits an interior page around the pivot. The pivot cell
// itself is promoted by the caller; this rewires the children of both halves
// according to where the incoming key falls.
func (t *Table) splitInteriorPage(target storage.PageIndex, pivot cellPivot, key storage.CellKey, cell []byte, rightChild storage.PageIndex) (storage.PageIndex, error) {
	targetPage := t.pages[target]
	keys := targetPage.KeySet()
	min, max := keys[0], keys[len(keys)-1]
	oldRightMost := targetPage.RightMostPointer()

	leftOfPivot, err := targetPage.GetCellLeftPointer(pivot.index)
	if err != nil {
		return 0, err
	}

	newIndex, err := t.createPage(storage.TableInteriorPage)
	if err != nil {
		return 0, err
	}
	newPage := t.pages[newIndex]

	newRightMost := oldRightMost
	targetRightMost := leftOfPivot
	insertIntoNew := false
	skipInsert := false

	switch {
	case key > max:
		newRightMost = rightChild
		insertIntoNew = true
	case key < min:
		if err := targetPage.SetCellLeftPointer(0, rightChild); err != nil {
			return 0, err
		}
	case key == pivot.key:
		if err := targetPage.SetCellLeftPointer(pivot.index, rightChild); err != nil {
			return 0, err
		}
		skipInsert = true
	case pivot.index > 0 && key < keys[pivot.index-1]:
		if err := targetPage.SetCellLeftPointer(targetPage.GetLowerBound(key), rightChild); err != nil {
			return 0, err
		}
	case pivot.index+1 < len(keys) && key > keys[pivot.index+1]:
		if err := targetPage.SetCellLeftPointer(targetPage.GetLowerBound(key), rightChild); err != nil {
			return 0, err
		}
		insertIntoNew = true
	case key < pivot.key:
		targetRightMost = rightChild
	default:
		// pivot.key < key < keys[pivot.index+1]
		if err := targetPage.SetCellLeftPointer(pivot.index+1, rightChild); err != nil {
			return 0, err
		}
		insertIntoNew = true
	}

	newPage.SetRightMostPointer(newRightMost)

	copyIndex := pivot.index + 1
	if key == pivot.key {
		copyIndex = pivot.index
	}

	for i := copyIndex; i < len(keys); i++ {
		moveKey, err := targetPage.GetCellKey(i)
		if err != nil {
			return 0, err
		}
		moveCell, err := targetPage.GetCell(i)
		if err != nil {
			return 0, err
		}
		if err := newPage.InsertCell(moveKey, moveCell); err != nil {
			return 0, err
		}
	}

	for targetPage.CellNum() > pivot.index {
		targetPage.DeleteCell(pivot.index)
	}

	targetPage.SetRightMostPointer(targetRightMost)

	if err := targetPage.UpdateInfo(); err != nil {
		return 0, err
	}
	if err := newPage.UpdateInfo(); err != nil {
		return 0, err
	}
	if err := targetPage.Reorder(); err != nil {
		return 0, err
	}

	if !skipInsert {
		side := targetPage
		if insertIntoNew {
			side = newPage
		}
		if err := side.InsertCell(key, cell); err != nil {
			return 0, err
		}
	}

	if err := t.updateParent(target); err != nil {
		return 0, err
	}
	if err := t.updateParent(newIndex); err != nil {
		return 0, err
	}

	t.log.WithFields(logrus.Fields{
		"table": t.schema.TableName,
		"page":  target,
		"new":   newIndex,
		"pivot": pivot.key,
	}).Debug("interior split")

	return newIndex, nil
}

// getCellPivot picks the median of the page's keys plus the incoming key and
// its rank among the existing keys.
func (t *Table) getCellPivot(page storage.PageIndex, key storage.CellKey) cellPivot {
	keys := t.pages[page].KeySet()
	merged := append(keys, key)
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

	pivotKey := merged[len(merged)/2]
	return cellPivot{
		index: t.pages[page].GetLowerBound(pivotKey),
		key:   pivotKey,
	}
}

// createPage appends a zeroed page of the given type to the file.
func (t *Table) createPage(pageType storage.PageType) (storage.PageIndex, error) {
	index := storage.PageIndex(len(t.pages))
	page := storage.NewPage(t.file, int64(index)*storage.PageSize)

	if err := page.Clear(); err != nil {
		return 0, err
	}
	page.SetType(pageType)
	if err := page.UpdateInfo(); err != nil {
		return 0, err
	}

	t.pages = append(t.pages, page)
	return index, nil
}

func (t *Table) isRoot(page storage.PageIndex) bool {
	return page == t.rootPage
}

// willOverflow forces a split before the free-space test once the fanout is
// known.
func (t *Table) willOverflow(page storage.PageIndex) bool {
	if t.fanout == FanoutUnset {
		return false
	}
	return int32(t.pages[page].CellNum())+1 > t.fanout-1
}

// updateFanout freezes the fanout the first time a leaf cannot accept a new
// cell.
func (t *Table) updateFanout(page storage.PageIndex) {
	t.fanout = int32(t.pages[page].CellNum()) + 1
	t.log.WithFields(logrus.Fields{
		"table":  t.schema.TableName,
		"fanout": t.fanout,
	}).Debug("fanout learned")
}

// updateParent points every child referenced from an interior page at it.
func (t *Table) updateParent(page storage.PageIndex) error {
	p := t.pages[page]
	if p.IsLeaf() {
		return nil
	}

	for i := 0; i < p.CellNum(); i++ {
		child, err := p.GetCellLeftPointer(i)
		if err != nil {
			return err
		}
		t.pages[child].SetParent(page)
	}

	if right := p.RightMostPointer(); right != 0 {
		t.pages[right].SetParent(page)
	}

	return nil
}

// loadParent walks the tree from page, setting each child's parent link.
func (t *Table) loadParent(page storage.PageIndex) error {
	p := t.pages[page]
	if p.IsLeaf() {
		return nil
	}

	for i := 0; i < p.CellNum(); i++ {
		child, err := p.GetCellLeftPointer(i)
		if err != nil {
			return err
		}
		t.pages[child].SetParent(page)
		if err := t.loadParent(child); err != nil {
			return err
		}
	}

	right := p.RightMostPointer()
	t.pages[right].SetParent(page)
	return t.loadParent(right)
}
