package storage

// PageSize is the fixed size of every page in a table file.
const PageSize = 512

// PageType is the one-byte page type tag. The index variants are reserved
// and unused.
type PageType uint8

const (
	InvalidPage       PageType = 0x00
	IndexInteriorPage PageType = 0x02
	TableInteriorPage PageType = 0x05
	IndexLeafPage     PageType = 0x0a
	TableLeafPage     PageType = 0x0d
)

// PageIndex numbers pages within a table file, starting at zero.
type PageIndex = uint32

// CellKey is the B+Tree ordering key of a cell (the rowid of a leaf tuple or
// the separator key of an interior cell).
type CellKey = int32

// Page header layout.
const (
	pageTypeOffset          = 0
	pageTypeLength          = 1
	cellNumOffset           = pageTypeOffset + pageTypeLength
	cellNumLength           = 1
	cellContentOffsetOffset = cellNumOffset + cellNumLength
	cellContentOffsetLength = 2
	rightMostPointerOffset  = cellContentOffsetOffset + cellContentOffsetLength
	rightMostPointerLength  = 4

	// HeaderLength is the size of the fixed page header; the slot array
	// starts immediately after it.
	HeaderLength = rightMostPointerOffset + rightMostPointerLength

	cellPointerLength = 2
)

// Leaf cell layout: payload_length(2 BE) rowid(4 BE) num_columns(1)
// type_code[num_columns] value_bytes.
const (
	LeafPayloadLengthOffset = 0
	LeafPayloadLengthLength = 2
	LeafRowidOffset         = LeafPayloadLengthOffset + LeafPayloadLengthLength
	LeafRowidLength         = 4

	// LeafPayloadOffset is where the counted payload begins; payload_length
	// excludes this prefix.
	LeafPayloadOffset = LeafRowidOffset + LeafRowidLength

	LeafNumColumnsOffset = LeafPayloadOffset
	LeafTypeCodesOffset  = LeafNumColumnsOffset + 1
)

// Interior cell layout: left_child_page(4 BE) key(4 BE).
const (
	InteriorLeftPointerOffset = 0
	InteriorLeftPointerLength = 4
	InteriorKeyOffset         = InteriorLeftPointerOffset + InteriorLeftPointerLength
	InteriorKeyLength         = 4

	InteriorCellLength = InteriorLeftPointerLength + InteriorKeyLength
)
