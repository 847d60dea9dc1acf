package btree

import (
	"encoding/binary"

	"github.com/tinybase/tinybase/internal/record"
	"github.com/tinybase/tinybase/internal/storage"
)

// prepareLeafCell builds the on-disk bytes of a leaf cell for one tuple.
// The first value is the INT primary key and doubles as the cell's rowid.
func prepareLeafCell(codes []record.TypeCode, values []record.Value) []byte {
	payload := 1 + len(codes)
	for _, code := range codes {
		payload += int(record.TypeCodeSize(code))
	}

	cell := make([]byte, storage.LeafPayloadOffset+payload)
	binary.BigEndian.PutUint16(cell[storage.LeafPayloadLengthOffset:], uint16(payload))
	binary.BigEndian.PutUint32(cell[storage.LeafRowidOffset:], uint32(values[0].(int32)))
	cell[storage.LeafNumColumnsOffset] = byte(len(codes))

	for i, code := range codes {
		cell[storage.LeafTypeCodesOffset+i] = byte(code)
	}

	offset := storage.LeafTypeCodesOffset + len(codes)
	for i, code := range codes {
		copy(cell[offset:], record.ValueToBytes(code, values[i]))
		offset += int(record.TypeCodeSize(code))
	}

	return cell
}

// prepareInteriorCell builds the fixed 8-byte interior cell.
func prepareInteriorCell(leftChild storage.PageIndex, key storage.CellKey) []byte {
	cell := make([]byte, storage.InteriorCellLength)
	binary.BigEndian.PutUint32(cell[storage.InteriorLeftPointerOffset:], leftChild)
	binary.BigEndian.PutUint32(cell[storage.InteriorKeyOffset:], uint32(key))
	return cell
}

func cellNumColumns(cell []byte) int {
	return int(cell[storage.LeafNumColumnsOffset])
}

func cellTypeCode(cell []byte, index int) record.TypeCode {
	return record.TypeCode(cell[storage.LeafTypeCodesOffset+index])
}

// cellValueOffset locates the value bytes of a column by walking the type
// codes that precede it.
func cellValueOffset(cell []byte, index int) int {
	offset := storage.LeafTypeCodesOffset + cellNumColumns(cell)
	for i := 0; i < index; i++ {
		offset += int(record.TypeCodeSize(cellTypeCode(cell, i)))
	}
	return offset
}

// cellValue decodes the value of one column of a leaf cell.
func cellValue(cell []byte, index int) record.Value {
	code := cellTypeCode(cell, index)
	offset := cellValueOffset(cell, index)
	return record.BytesToValue(code, cell[offset:offset+int(record.TypeCodeSize(code))])
}

// cellValues decodes the columns at the given ordinals, in order.
func cellValues(cell []byte, indexes []int) []record.TypeValue {
	out := make([]record.TypeValue, 0, len(indexes))
	for _, index := range indexes {
		out = append(out, record.TypeValue{
			Code:  cellTypeCode(cell, index),
			Value: cellValue(cell, index),
		})
	}
	return out
}

// updateCellValue rewrites one column of a leaf cell in place. Same-width
// values overwrite; narrower values shift the tail left and shrink the cell;
// wider values are rejected.
func updateCellValue(cell []byte, index int, code record.TypeCode, value record.Value) ([]byte, bool) {
	oldCode := cellTypeCode(cell, index)
	oldSize := int(record.TypeCodeSize(oldCode))
	newSize := int(record.TypeCodeSize(code))

	if oldSize < newSize {
		return cell, false
	}

	offset := cellValueOffset(cell, index)
	cell[storage.LeafTypeCodesOffset+index] = byte(code)
	valueBytes := record.ValueToBytes(code, value)

	if oldSize == newSize {
		copy(cell[offset:], valueBytes)
		return cell, true
	}

	copy(cell[offset:], valueBytes)
	copy(cell[offset+newSize:], cell[offset+oldSize:])
	cell = cell[:len(cell)-(oldSize-newSize)]

	payload := uint16(len(cell) - storage.LeafPayloadOffset)
	binary.BigEndian.PutUint16(cell[storage.LeafPayloadLengthOffset:], payload)

	return cell, true
}
