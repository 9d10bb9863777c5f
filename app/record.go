package main

import (
	"golang.org/x/text/encoding/unicode"
)

// Record is the ordered sequence of fields decoded from a cell payload
type Record []SQLiteValue

// parseRecord decodes a full payload into its ordered fields.
// The payload starts with a header (length varint followed by one serial-type
// varint per field); the body holds the concatenated field bodies.
func parseRecord(payload []byte) (Record, error) {
	headerSize, headerLen, err := readVarint(payload, 0)
	if err != nil {
		return nil, err
	}
	if headerSize > uint64(len(payload)) {
		return nil, NewDatabaseError("parse_record", ErrMalformedRecord, map[string]interface{}{
			"header_size":  headerSize,
			"payload_size": len(payload),
		})
	}

	header := payload[:headerSize]
	body := payload[headerSize:]

	headerOff := headerLen
	bodyOff := 0

	var record Record
	for headerOff < len(header) {
		serialType, n, err := readVarint(header, headerOff)
		if err != nil {
			return nil, err
		}
		headerOff += n

		size, err := getSerialTypeSize(serialType)
		if err != nil {
			return nil, err
		}

		data, err := subBytes(body, bodyOff, size)
		if err != nil {
			return nil, NewDatabaseError("parse_record_field", ErrMalformedRecord, map[string]interface{}{
				"field_index": len(record),
				"serial_type": serialType,
				"field_size":  size,
			})
		}
		bodyOff += size

		record = append(record, NewSQLiteValue(serialType, data))
	}

	return record, nil
}

// decodeText converts stored text bytes into a Go string per the database encoding
func decodeText(data []byte, encoding TextEncoding) (string, error) {
	switch encoding {
	case EncodingUTF8:
		return string(data), nil
	case EncodingUTF16LE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		decoded, err := dec.Bytes(data)
		if err != nil {
			return "", NewDatabaseError("decode_utf16le", err, nil)
		}
		return string(decoded), nil
	case EncodingUTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		decoded, err := dec.Bytes(data)
		if err != nil {
			return "", NewDatabaseError("decode_utf16be", err, nil)
		}
		return string(decoded), nil
	default:
		return "", NewDatabaseError("decode_text", ErrUnsupportedEncoding, map[string]interface{}{
			"encoding": encoding,
		})
	}
}

// encodeText converts a Go string into the database encoding, for comparing
// query literals against stored text bytes
func encodeText(s string, encoding TextEncoding) ([]byte, error) {
	switch encoding {
	case EncodingUTF8:
		return []byte(s), nil
	case EncodingUTF16LE:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
		encoded, err := enc.Bytes([]byte(s))
		if err != nil {
			return nil, NewDatabaseError("encode_utf16le", err, nil)
		}
		return encoded, nil
	case EncodingUTF16BE:
		enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
		encoded, err := enc.Bytes([]byte(s))
		if err != nil {
			return nil, NewDatabaseError("encode_utf16be", err, nil)
		}
		return encoded, nil
	default:
		return nil, NewDatabaseError("encode_text", ErrUnsupportedEncoding, map[string]interface{}{
			"encoding": encoding,
		})
	}
}
