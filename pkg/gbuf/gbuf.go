// Package gbuf implements the GalacticBuf binary envelope used for all
// request and response bodies.
//
// A message is a version byte, a field-count byte, a total-length prefix,
// then fields of [name_len u8][name][type u8][value]. Version 1 uses
// 2-byte string/list/total length prefixes; version 2 uses 4-byte
// prefixes and adds an opaque bytes type. Integers are 64-bit signed
// big-endian throughout.
//
// Decoded values are the generic shapes int64, string, []byte, []any and
// map[string]any; callers convert to typed records at the edge.
package gbuf

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Wire type ids.
const (
	TypeInt    = 0x01
	TypeString = 0x02
	TypeList   = 0x03
	TypeObject = 0x04
	TypeBytes  = 0x05 // v2 only
)

// Message versions.
const (
	Version1 = 0x01
	Version2 = 0x02
)

// Encode encodes fields as a v1 message. Field names are emitted in
// sorted order so encoding is deterministic. Supported values: int/int64,
// string, map[string]any (int/string fields), and homogeneous []any of
// those element kinds.
func Encode(fields map[string]any) ([]byte, error) {
	payload, err := encodeFields(fields, Version1)
	if err != nil {
		return nil, err
	}
	total := 4 + len(payload)
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("gbuf: message too big for v1 (%d bytes)", total)
	}
	out := make([]byte, 0, total)
	out = append(out, Version1, byte(len(fields)))
	out = binary.BigEndian.AppendUint16(out, uint16(total))
	return append(out, payload...), nil
}

// EncodeV2 encodes fields as a v2 message; additionally supports []byte
// values and elements.
func EncodeV2(fields map[string]any) ([]byte, error) {
	payload, err := encodeFields(fields, Version2)
	if err != nil {
		return nil, err
	}
	total := 6 + len(payload)
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("gbuf: message too big for v2 (%d bytes)", total)
	}
	out := make([]byte, 0, total)
	out = append(out, Version2, byte(len(fields)))
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	return append(out, payload...), nil
}

func encodeFields(fields map[string]any, version byte) ([]byte, error) {
	if len(fields) > 255 {
		return nil, fmt.Errorf("gbuf: too many fields (%d)", len(fields))
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []byte
	for _, name := range names {
		if len(name) < 1 || len(name) > 255 {
			return nil, fmt.Errorf("gbuf: invalid field name length %d", len(name))
		}
		out = append(out, byte(len(name)))
		out = append(out, name...)
		var err error
		out, err = appendValue(out, fields[name], version)
		if err != nil {
			return nil, fmt.Errorf("gbuf: field %q: %w", name, err)
		}
	}
	return out, nil
}

func appendValue(out []byte, value any, version byte) ([]byte, error) {
	switch v := value.(type) {
	case int:
		return appendValue(out, int64(v), version)
	case int64:
		out = append(out, TypeInt)
		return binary.BigEndian.AppendUint64(out, uint64(v)), nil
	case string:
		out = append(out, TypeString)
		return appendString(out, v, version)
	case []byte:
		if version != Version2 {
			return nil, fmt.Errorf("bytes values require v2")
		}
		out = append(out, TypeBytes)
		out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
		return append(out, v...), nil
	case map[string]any:
		out = append(out, TypeObject)
		return appendObject(out, v, version)
	case []any:
		out = append(out, TypeList)
		return appendList(out, v, version)
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}

func appendString(out []byte, s string, version byte) ([]byte, error) {
	if version == Version1 {
		if len(s) > math.MaxUint16 {
			return nil, fmt.Errorf("string too long for v1 (%d bytes)", len(s))
		}
		out = binary.BigEndian.AppendUint16(out, uint16(len(s)))
	} else {
		out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
	}
	return append(out, s...), nil
}

// appendObject emits [field_count u8] then name/type/value fields. Only
// ints and strings are allowed inside objects (plus bytes in v2),
// matching the envelope's flat-record shape.
func appendObject(out []byte, obj map[string]any, version byte) ([]byte, error) {
	if len(obj) > 255 {
		return nil, fmt.Errorf("too many object fields (%d)", len(obj))
	}
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	out = append(out, byte(len(obj)))
	for _, name := range names {
		if len(name) < 1 || len(name) > 255 {
			return nil, fmt.Errorf("invalid object field name length %d", len(name))
		}
		out = append(out, byte(len(name)))
		out = append(out, name...)
		switch v := obj[name].(type) {
		case int:
			out = append(out, TypeInt)
			out = binary.BigEndian.AppendUint64(out, uint64(int64(v)))
		case int64:
			out = append(out, TypeInt)
			out = binary.BigEndian.AppendUint64(out, uint64(v))
		case string:
			out = append(out, TypeString)
			var err error
			out, err = appendString(out, v, version)
			if err != nil {
				return nil, err
			}
		case []byte:
			if version != Version2 {
				return nil, fmt.Errorf("bytes object field %q requires v2", name)
			}
			out = append(out, TypeBytes)
			out = binary.BigEndian.AppendUint32(out, uint32(len(v)))
			out = append(out, v...)
		default:
			return nil, fmt.Errorf("unsupported object field type %T for %q", obj[name], name)
		}
	}
	return out, nil
}

func appendList(out []byte, items []any, version byte) ([]byte, error) {
	if version == Version1 && len(items) > math.MaxUint16 {
		return nil, fmt.Errorf("too many list elements for v1 (%d)", len(items))
	}
	elemType, err := listElemType(items, version)
	if err != nil {
		return nil, err
	}
	out = append(out, byte(elemType))
	if version == Version1 {
		out = binary.BigEndian.AppendUint16(out, uint16(len(items)))
	} else {
		out = binary.BigEndian.AppendUint32(out, uint32(len(items)))
	}
	for _, item := range items {
		switch elemType {
		case TypeInt:
			n, _ := asInt64(item)
			out = binary.BigEndian.AppendUint64(out, uint64(n))
		case TypeString:
			out, err = appendString(out, item.(string), version)
			if err != nil {
				return nil, err
			}
		case TypeObject:
			out, err = appendObject(out, item.(map[string]any), version)
			if err != nil {
				return nil, err
			}
		case TypeBytes:
			b := item.([]byte)
			out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
			out = append(out, b...)
		}
	}
	return out, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func listElemType(items []any, version byte) (int, error) {
	// Empty lists are encoded as empty int lists.
	if len(items) == 0 {
		return TypeInt, nil
	}
	switch items[0].(type) {
	case int, int64:
		for _, it := range items {
			if _, ok := asInt64(it); !ok {
				return 0, fmt.Errorf("mixed-type list")
			}
		}
		return TypeInt, nil
	case string:
		for _, it := range items {
			if _, ok := it.(string); !ok {
				return 0, fmt.Errorf("mixed-type list")
			}
		}
		return TypeString, nil
	case map[string]any:
		for _, it := range items {
			if _, ok := it.(map[string]any); !ok {
				return 0, fmt.Errorf("mixed-type list")
			}
		}
		return TypeObject, nil
	case []byte:
		if version != Version2 {
			return 0, fmt.Errorf("bytes list requires v2")
		}
		for _, it := range items {
			if _, ok := it.([]byte); !ok {
				return 0, fmt.Errorf("mixed-type list")
			}
		}
		return TypeBytes, nil
	default:
		return 0, fmt.Errorf("unsupported list element type %T", items[0])
	}
}

// Decode decodes a message of either version, dispatching on the first
// byte.
func Decode(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gbuf: empty message")
	}
	switch data[0] {
	case Version1:
		return decodeMessage(data, Version1)
	case Version2:
		return decodeMessage(data, Version2)
	default:
		return nil, fmt.Errorf("gbuf: unsupported version %d", data[0])
	}
}

type reader struct {
	data    []byte
	off     int
	version byte
}

func (r *reader) remain() int { return len(r.data) - r.off }

func (r *reader) u8(what string) (byte, error) {
	if r.remain() < 1 {
		return 0, fmt.Errorf("gbuf: truncated %s", what)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.remain() < n {
		return nil, fmt.Errorf("gbuf: truncated %s", what)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// sizePrefix reads the 2-byte (v1) or 4-byte (v2) length prefix.
func (r *reader) sizePrefix(what string) (int, error) {
	if r.version == Version1 {
		b, err := r.take(2, what)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(b)), nil
	}
	b, err := r.take(4, what)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(b)), nil
}

func (r *reader) int64Value(what string) (int64, error) {
	b, err := r.take(8, what)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) stringValue(what string) (string, error) {
	n, err := r.sizePrefix(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.take(n, what+" data")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) bytesValue(what string) ([]byte, error) {
	if r.version != Version2 {
		return nil, fmt.Errorf("gbuf: bytes value in v1 %s", what)
	}
	b, err := r.take(4, what+" length")
	if err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(b))
	data, err := r.take(n, what+" data")
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

func (r *reader) fieldName(what string) (string, error) {
	n, err := r.u8(what + " name length")
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n), what+" name")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMessage(data []byte, version byte) (map[string]any, error) {
	headerLen := 4
	if version == Version2 {
		headerLen = 6
	}
	if len(data) < headerLen {
		return nil, fmt.Errorf("gbuf: message too short for v%d", version)
	}
	fieldCount := int(data[1])
	r := &reader{data: data, off: headerLen, version: version}

	result := make(map[string]any, fieldCount)
	for i := 0; i < fieldCount; i++ {
		name, err := r.fieldName("field")
		if err != nil {
			return nil, err
		}
		typeID, err := r.u8("type id")
		if err != nil {
			return nil, err
		}
		value, err := r.value(typeID)
		if err != nil {
			return nil, err
		}
		result[name] = value
	}
	return result, nil
}

func (r *reader) value(typeID byte) (any, error) {
	switch typeID {
	case TypeInt:
		return r.int64Value("int value")
	case TypeString:
		return r.stringValue("string")
	case TypeBytes:
		return r.bytesValue("bytes")
	case TypeObject:
		return r.object()
	case TypeList:
		return r.list()
	default:
		return nil, fmt.Errorf("gbuf: unknown type id %d", typeID)
	}
}

// object decodes a flat record: ints and strings, plus bytes in v2.
func (r *reader) object() (map[string]any, error) {
	count, err := r.u8("object field count")
	if err != nil {
		return nil, err
	}
	obj := make(map[string]any, count)
	for i := 0; i < int(count); i++ {
		name, err := r.fieldName("object field")
		if err != nil {
			return nil, err
		}
		typeID, err := r.u8("object type id")
		if err != nil {
			return nil, err
		}
		switch typeID {
		case TypeInt:
			obj[name], err = r.int64Value("object int")
		case TypeString:
			obj[name], err = r.stringValue("object string")
		case TypeBytes:
			obj[name], err = r.bytesValue("object bytes")
		default:
			return nil, fmt.Errorf("gbuf: nested type id %d not supported in objects", typeID)
		}
		if err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (r *reader) list() (any, error) {
	elemType, err := r.u8("list element type")
	if err != nil {
		return nil, err
	}
	count, err := r.sizePrefix("list count")
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, count)
	for i := 0; i < count; i++ {
		var v any
		switch elemType {
		case TypeInt:
			v, err = r.int64Value("list int")
		case TypeString:
			v, err = r.stringValue("list string")
		case TypeObject:
			v, err = r.object()
		case TypeBytes:
			v, err = r.bytesValue("list bytes")
		default:
			return nil, fmt.Errorf("gbuf: unknown list element type %d", elemType)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

// Str returns the named string field, or "" when absent or mistyped.
func Str(m map[string]any, name string) string {
	s, _ := m[name].(string)
	return s
}

// Int returns the named int field; ok is false when absent or mistyped.
func Int(m map[string]any, name string) (int64, bool) {
	n, ok := m[name].(int64)
	return n, ok
}
