package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Value represents a typed database value
type Value interface {
	Type() ValueType
	Raw() []byte
	Int64() (int64, error)
	Float64() (float64, error)
	Text(encoding TextEncoding) (string, error)
	IsNull() bool
}

// ValueType represents the type of a database value
type ValueType uint8

const (
	ValueTypeNull ValueType = iota
	ValueTypeInteger
	ValueTypeFloat
	ValueTypeBlob
	ValueTypeText
)

// SQLiteValue implements the Value interface over a serial type and its body bytes
type SQLiteValue struct {
	serialType uint64
	data       []byte
}

// NewSQLiteValue creates a new SQLite value from serial type and data
func NewSQLiteValue(serialType uint64, data []byte) SQLiteValue {
	return SQLiteValue{
		serialType: serialType,
		data:       data,
	}
}

// SerialType returns the on-disk serial type tag
func (v SQLiteValue) SerialType() uint64 {
	return v.serialType
}

// Type returns the value type
func (v SQLiteValue) Type() ValueType {
	switch v.serialType {
	case SerialTypeNull:
		return ValueTypeNull
	case SerialTypeFloat64:
		return ValueTypeFloat
	case SerialTypeInt8, SerialTypeInt16, SerialTypeInt24, SerialTypeInt32,
		SerialTypeInt48, SerialTypeInt64, SerialTypeZero, SerialTypeOne:
		return ValueTypeInteger
	default:
		if v.serialType >= 12 && v.serialType%2 == 0 {
			return ValueTypeBlob
		}
		return ValueTypeText
	}
}

// Raw returns the raw field body bytes
func (v SQLiteValue) Raw() []byte {
	return v.data
}

// IsNull reports whether the value is a stored NULL
func (v SQLiteValue) IsNull() bool {
	return v.serialType == SerialTypeNull
}

// Int64 returns the integer representation
func (v SQLiteValue) Int64() (int64, error) {
	switch v.serialType {
	case SerialTypeZero:
		return 0, nil
	case SerialTypeOne:
		return 1, nil
	case SerialTypeInt8:
		if len(v.data) >= 1 {
			return int64(int8(v.data[0])), nil
		}
	case SerialTypeInt16:
		if len(v.data) >= 2 {
			return int64(int16(binary.BigEndian.Uint16(v.data))), nil
		}
	case SerialTypeInt24:
		if len(v.data) >= 3 {
			val := int64(v.data[0])<<16 | int64(v.data[1])<<8 | int64(v.data[2])
			if val&0x800000 != 0 {
				val |= ^int64(0xffffff)
			}
			return val, nil
		}
	case SerialTypeInt32:
		if len(v.data) >= 4 {
			return int64(int32(binary.BigEndian.Uint32(v.data))), nil
		}
	case SerialTypeInt48:
		if len(v.data) >= 6 {
			val := int64(binary.BigEndian.Uint32(v.data[:4]))<<16 |
				int64(binary.BigEndian.Uint16(v.data[4:6]))
			if val&0x800000000000 != 0 {
				val |= ^int64(0xffffffffffff)
			}
			return val, nil
		}
	case SerialTypeInt64:
		if len(v.data) >= 8 {
			return int64(binary.BigEndian.Uint64(v.data)), nil
		}
	}
	return 0, NewDatabaseError("value_to_int64", ErrMalformedRecord, map[string]interface{}{
		"serial_type": v.serialType,
		"data_size":   len(v.data),
	})
}

// Float64 returns the float representation
func (v SQLiteValue) Float64() (float64, error) {
	if v.serialType == SerialTypeFloat64 {
		if len(v.data) < 8 {
			return 0, NewDatabaseError("value_to_float64", ErrMalformedRecord, map[string]interface{}{
				"data_size": len(v.data),
			})
		}
		return math.Float64frombits(binary.BigEndian.Uint64(v.data)), nil
	}
	i, err := v.Int64()
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

// Text returns the string representation in the given database encoding
func (v SQLiteValue) Text(encoding TextEncoding) (string, error) {
	switch v.Type() {
	case ValueTypeNull:
		return "", nil
	case ValueTypeInteger:
		i, err := v.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(i, 10), nil
	case ValueTypeFloat:
		f, err := v.Float64()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%g", f), nil
	case ValueTypeText:
		return decodeText(v.data, encoding)
	default:
		return string(v.data), nil
	}
}

// Column represents a database column
type Column struct {
	Name  string
	Type  string
	Index int
}
