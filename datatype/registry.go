package datatype

import "fmt"

// ID is the on-disk type tag persisted in the info file header (spec §6:
// "data-type id (u16)").
type ID uint16

const (
	IDInt32 ID = iota + 1
	IDInt64
	IDFloat64
	IDBool
	IDBytes
	IDString
)

// TypeID returns the on-disk tag for a concrete DataType.
func TypeID(dt DataType) (ID, error) {
	switch dt.(type) {
	case Int32:
		return IDInt32, nil
	case Int64:
		return IDInt64, nil
	case Float64:
		return IDFloat64, nil
	case Bool:
		return IDBool, nil
	case Bytes:
		return IDBytes, nil
	case String:
		return IDString, nil
	default:
		return 0, fmt.Errorf("datatype: unknown concrete type %T", dt)
	}
}

// FromID resolves a persisted on-disk type tag back to a DataType.
func FromID(id ID) (DataType, error) {
	switch id {
	case IDInt32:
		return Int32{}, nil
	case IDInt64:
		return Int64{}, nil
	case IDFloat64:
		return Float64{}, nil
	case IDBool:
		return Bool{}, nil
	case IDBytes:
		return Bytes{}, nil
	case IDString:
		return String{}, nil
	default:
		return nil, fmt.Errorf("datatype: unknown type id %d", id)
	}
}
