package storage

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// Page is one 512-byte slotted page of a table file. The header, slot array
// and cell heap live on disk; the sorted key set and the parent link are
// in-memory state rebuilt by ParseInfo or maintained by the mutators.
type Page struct {
	file *File
	base int64

	pageType          PageType
	cellNum           uint8
	cellContentOffset uint16
	rightMostPointer  uint32

	cellPointers []uint16
	keys         []CellKey

	parent PageIndex
}

// NewPage wraps the page starting at the given byte offset. The in-memory
// state is empty until ParseInfo runs or cells are inserted.
func NewPage(file *File, base int64) *Page {
	return &Page{
		file:              file,
		base:              base,
		pageType:          InvalidPage,
		cellContentOffset: PageSize,
	}
}

// ParseInfo reads the header, the slot array and each slotted cell's key.
func (p *Page) ParseInfo() error {
	header := make([]byte, HeaderLength)
	if err := p.file.ReadAt(p.base, header); err != nil {
		return errors.Wrap(err, "parse page header")
	}

	p.pageType = PageType(header[pageTypeOffset])
	p.cellNum = header[cellNumOffset]
	p.cellContentOffset = binary.BigEndian.Uint16(header[cellContentOffsetOffset:])
	p.rightMostPointer = binary.BigEndian.Uint32(header[rightMostPointerOffset:])

	p.cellPointers = nil
	p.keys = nil

	if p.cellNum > 0 {
		raw := make([]byte, int(p.cellNum)*cellPointerLength)
		if err := p.file.ReadAt(p.base+HeaderLength, raw); err != nil {
			return errors.Wrap(err, "parse slot array")
		}
		p.cellPointers = make([]uint16, p.cellNum)
		for i := range p.cellPointers {
			p.cellPointers[i] = binary.BigEndian.Uint16(raw[i*cellPointerLength:])
		}
	}

	for i := 0; i < int(p.cellNum); i++ {
		key, err := p.GetCellKey(i)
		if err != nil {
			return err
		}
		p.keys = append(p.keys, key)
	}

	return nil
}

// UpdateInfo writes the header and slot array back to the page base.
func (p *Page) UpdateInfo() error {
	out := make([]byte, HeaderLength+int(p.cellNum)*cellPointerLength)

	out[pageTypeOffset] = byte(p.pageType)
	out[cellNumOffset] = p.cellNum
	binary.BigEndian.PutUint16(out[cellContentOffsetOffset:], p.cellContentOffset)
	binary.BigEndian.PutUint32(out[rightMostPointerOffset:], p.rightMostPointer)

	for i, ptr := range p.cellPointers {
		binary.BigEndian.PutUint16(out[HeaderLength+i*cellPointerLength:], ptr)
	}

	return p.file.WriteAt(p.base, out)
}

// Clear zeroes the whole page region on disk.
func (p *Page) Clear() error {
	return p.file.WriteAt(p.base, make([]byte, PageSize))
}

// reset drops the in-memory cell bookkeeping for a re-fill.
func (p *Page) reset() {
	p.cellNum = 0
	p.cellContentOffset = PageSize
	p.cellPointers = nil
	p.keys = nil
}

// HasSpace reports whether a cell of the given size plus its slot fits in
// the free region between the slot array and the cell heap.
func (p *Page) HasSpace(cellSize int) bool {
	slotEnd := HeaderLength + int(p.cellNum)*cellPointerLength
	free := int(p.cellContentOffset) - slotEnd
	return free >= cellSize+cellPointerLength
}

// InsertCell slots a cell at its key rank. The caller is responsible for
// space and overflow checks; no rebalancing happens here.
func (p *Page) InsertCell(key CellKey, cell []byte) error {
	p.cellContentOffset -= uint16(len(cell))

	index := p.GetLowerBound(key)
	p.keys = append(p.keys, 0)
	copy(p.keys[index+1:], p.keys[index:])
	p.keys[index] = key

	if err := p.file.WriteAt(p.base+int64(p.cellContentOffset), cell); err != nil {
		return errors.Wrap(err, "write cell")
	}
	p.cellNum++

	p.cellPointers = append(p.cellPointers, 0)
	copy(p.cellPointers[index+1:], p.cellPointers[index:])
	p.cellPointers[index] = p.cellContentOffset

	return p.UpdateInfo()
}

// DeleteCell removes a slot and its key. Heap bytes are not reclaimed until
// the next Reorder.
func (p *Page) DeleteCell(index int) {
	if index >= int(p.cellNum) {
		return
	}
	p.cellPointers = append(p.cellPointers[:index], p.cellPointers[index+1:]...)
	p.keys = append(p.keys[:index], p.keys[index+1:]...)
	p.cellNum--
}

// Reorder reads every cell out, clears the page and re-inserts the cells in
// key order, compacting the heap.
func (p *Page) Reorder() error {
	type keyedCell struct {
		key  CellKey
		cell []byte
	}

	var cells []keyedCell
	for i := 0; i < int(p.cellNum); i++ {
		key, err := p.GetCellKey(i)
		if err != nil {
			return err
		}
		cell, err := p.GetCell(i)
		if err != nil {
			return err
		}
		cells = append(cells, keyedCell{key: key, cell: cell})
	}

	if err := p.Clear(); err != nil {
		return err
	}
	p.reset()

	for _, c := range cells {
		if err := p.InsertCell(c.key, c.cell); err != nil {
			return err
		}
	}

	if len(cells) == 0 {
		return p.UpdateInfo()
	}
	return nil
}

// GetCellKey reads the key of the cell at the given slot from disk.
func (p *Page) GetCellKey(index int) (CellKey, error) {
	var offset int64
	switch p.pageType {
	case TableInteriorPage:
		offset = InteriorKeyOffset
	case TableLeafPage:
		offset = LeafRowidOffset
	default:
		panic("cell key requested from an untyped page")
	}

	buf := make([]byte, 4)
	if err := p.file.ReadAt(p.base+int64(p.cellPointers[index])+offset, buf); err != nil {
		return 0, errors.Wrap(err, "read cell key")
	}
	return CellKey(binary.BigEndian.Uint32(buf)), nil
}

// GetCell reads the full cell at the given slot.
func (p *Page) GetCell(index int) ([]byte, error) {
	var size uint16

	switch p.pageType {
	case TableLeafPage:
		buf := make([]byte, LeafPayloadLengthLength)
		if err := p.file.ReadAt(p.base+int64(p.cellPointers[index]), buf); err != nil {
			return nil, errors.Wrap(err, "read cell payload length")
		}
		size = binary.BigEndian.Uint16(buf) + LeafPayloadOffset
	case TableInteriorPage:
		size = InteriorCellLength
	default:
		panic("cell requested from an untyped page")
	}

	cell := make([]byte, size)
	if err := p.file.ReadAt(p.base+int64(p.cellPointers[index]), cell); err != nil {
		return nil, errors.Wrap(err, "read cell")
	}
	return cell, nil
}

// FindCell returns the cell with the given key, if present.
func (p *Page) FindCell(key CellKey) ([]byte, bool, error) {
	index := p.GetCellIndex(key)
	if index < 0 {
		return nil, false, nil
	}
	cell, err := p.GetCell(index)
	return cell, err == nil, err
}

// UpdateCell overwrites the cell with the given key at its original slot
// offset.
func (p *Page) UpdateCell(key CellKey, cell []byte) (bool, error) {
	index := p.GetCellIndex(key)
	if index < 0 {
		return false, nil
	}
	if err := p.file.WriteAt(p.base+int64(p.cellPointers[index]), cell); err != nil {
		return false, errors.Wrap(err, "update cell")
	}
	return true, nil
}

// GetCellIndex returns the slot rank of a key, or -1 when absent.
func (p *Page) GetCellIndex(key CellKey) int {
	index := p.GetLowerBound(key)
	if index < len(p.keys) && p.keys[index] == key {
		return index
	}
	return -1
}

// IsKeyDuplicate reports whether the key is already slotted on this page.
func (p *Page) IsKeyDuplicate(key CellKey) bool {
	return p.GetCellIndex(key) >= 0
}

// GetLowerBound returns the rank of the first key not less than key.
func (p *Page) GetLowerBound(key CellKey) int {
	return sort.Search(len(p.keys), func(i int) bool {
		return p.keys[i] >= key
	})
}

// GetCellKeyRange returns the minimum and maximum keys on the page.
func (p *Page) GetCellKeyRange() (CellKey, CellKey) {
	return p.keys[0], p.keys[len(p.keys)-1]
}

// KeySet returns the sorted keys currently slotted on the page.
func (p *Page) KeySet() []CellKey {
	out := make([]CellKey, len(p.keys))
	copy(out, p.keys)
	return out
}

// GetCellLeftPointer reads the left child pointer of an interior cell.
func (p *Page) GetCellLeftPointer(index int) (PageIndex, error) {
	if p.pageType != TableInteriorPage {
		panic("left pointer requested from a leaf page")
	}

	buf := make([]byte, InteriorLeftPointerLength)
	if err := p.file.ReadAt(p.base+int64(p.cellPointers[index]), buf); err != nil {
		return 0, errors.Wrap(err, "read left pointer")
	}
	return binary.BigEndian.Uint32(buf), nil
}

// SetCellLeftPointer rewrites the left child pointer of an interior cell in
// place.
func (p *Page) SetCellLeftPointer(index int, pointer PageIndex) error {
	if p.pageType != TableInteriorPage {
		panic("left pointer written to a leaf page")
	}

	buf := make([]byte, InteriorLeftPointerLength)
	binary.BigEndian.PutUint32(buf, pointer)
	if err := p.file.WriteAt(p.base+int64(p.cellPointers[index]), buf); err != nil {
		return errors.Wrap(err, "write left pointer")
	}
	return nil
}

// GetLeftMostPagePointer returns the left child of the first interior cell,
// the subtree for keys below the page's minimum.
func (p *Page) GetLeftMostPagePointer() (PageIndex, error) {
	return p.GetCellLeftPointer(0)
}

// Type returns the page type tag.
func (p *Page) Type() PageType {
	return p.pageType
}

// SetType sets the page type tag; persisted on the next UpdateInfo.
func (p *Page) SetType(t PageType) {
	p.pageType = t
}

// IsLeaf reports whether this is a table leaf page.
func (p *Page) IsLeaf() bool {
	return p.pageType == TableLeafPage
}

// CellNum returns the number of slotted cells.
func (p *Page) CellNum() int {
	return int(p.cellNum)
}

// RightMostPointer returns the right-most pointer: the high subtree of an
// interior page, or the next-leaf link of a leaf (zero at end of chain).
func (p *Page) RightMostPointer() PageIndex {
	return p.rightMostPointer
}

// SetRightMostPointer sets the right-most pointer; persisted on the next
// UpdateInfo.
func (p *Page) SetRightMostPointer(pointer PageIndex) {
	p.rightMostPointer = pointer
}

// Parent returns the in-memory parent page index.
func (p *Page) Parent() PageIndex {
	return p.parent
}

// SetParent records the in-memory parent page index. Parent links are never
// written to disk.
func (p *Page) SetParent(parent PageIndex) {
	p.parent = parent
}
