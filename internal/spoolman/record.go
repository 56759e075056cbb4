package spoolman

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrMalformedRecord = errors.New("spoolman: malformed spool record")

// ValueKind discriminates the variants a spool field value can take.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindText
	KindRecord
)

// Value is the tagged union of spool field value variants.
// Exactly one payload field is meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Text   string
	Record *Record
}

// Field is one key/value pair of a spool record.
type Field struct {
	Key   string
	Value Value
}

// Record is a spool metadata record. Fields keep the order they appear
// in the source JSON so traversal output is deterministic.
type Record struct {
	Fields []Field
}

// Len returns the number of fields on this level of the record.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Fields)
}

// DecodeRecord parses a JSON object into an order-preserving Record.
// Numbers are split into integer and float variants; null fields and
// array-valued fields are dropped (they have no macro mapping).
func DecodeRecord(r io.Reader) (*Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedRecord)
	}
	rec, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DecodeRecordBytes is DecodeRecord over an in-memory payload.
func DecodeRecordBytes(data []byte) (*Record, error) {
	return DecodeRecord(bytes.NewReader(data))
}

// decodeObject consumes tokens after an opening '{' up to and including
// the matching '}'.
func decodeObject(dec *json.Decoder) (*Record, error) {
	rec := &Record{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		if delim, ok := tok.(json.Delim); ok && delim == '}' {
			return rec, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key is not a string", ErrMalformedRecord)
		}
		value, keep, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if keep {
			rec.Fields = append(rec.Fields, Field{Key: key, Value: value})
		}
	}
}

func decodeValue(dec *json.Decoder) (Value, bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, false, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			nested, err := decodeObject(dec)
			if err != nil {
				return Value{}, false, err
			}
			return Value{Kind: KindRecord, Record: nested}, true, nil
		case '[':
			if err := skipArray(dec); err != nil {
				return Value{}, false, err
			}
			return Value{}, false, nil
		default:
			return Value{}, false, fmt.Errorf("%w: unexpected delimiter %v", ErrMalformedRecord, v)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Value{Kind: KindInt, Int: i}, true, nil
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, false, fmt.Errorf("%w: bad number %q", ErrMalformedRecord, v.String())
		}
		return Value{Kind: KindFloat, Float: f}, true, nil
	case string:
		return Value{Kind: KindText, Text: v}, true, nil
	case bool:
		// Booleans surface as the literal text klipper macros expect.
		text := "false"
		if v {
			text = "true"
		}
		return Value{Kind: KindText, Text: text}, true, nil
	case nil:
		return Value{}, false, nil
	default:
		return Value{}, false, fmt.Errorf("%w: unsupported value %v", ErrMalformedRecord, tok)
	}
}

// skipArray discards tokens up to and including the matching ']'.
func skipArray(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}
