package gbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripV1(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"empty", map[string]any{}},
		{"scalars", map[string]any{
			"user_id": int64(1001),
			"name":    "Alice",
		}},
		{"negative int", map[string]any{"price": int64(-250)}},
		{"int list", map[string]any{"scores": []any{int64(100), int64(200), int64(300)}}},
		{"string list", map[string]any{"names": []any{"a", "b"}}},
		{"object", map[string]any{
			"order": map[string]any{"order_id": "abc", "price": int64(100), "quantity": int64(5)},
		}},
		{"object list", map[string]any{
			"orders": []any{
				map[string]any{"order_id": "o1", "price": int64(1)},
				map[string]any{"order_id": "o2", "price": int64(2)},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.fields)
			require.NoError(t, err)
			require.Equal(t, byte(Version1), data[0])

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestEncodeDecodeRoundTripV2(t *testing.T) {
	fields := map[string]any{
		"token":  "deadbeef",
		"count":  int64(42),
		"sample": []byte{0x01, 0x02, 0xff},
		"chunks": []any{[]byte{0xaa}, []byte{0xbb, 0xcc}},
	}
	data, err := EncodeV2(fields)
	require.NoError(t, err)
	require.Equal(t, byte(Version2), data[0])

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestEncodeDeterministic(t *testing.T) {
	fields := map[string]any{"b": int64(2), "a": int64(1), "c": "x"}
	first, err := Encode(fields)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode(fields)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEmptyListEncodesAsIntList(t *testing.T) {
	data, err := Encode(map[string]any{"xs": []any{}})
	require.NoError(t, err)

	// header(4) + name_len(1) + "xs"(2) + list type tag(1), then the
	// element type byte.
	require.Equal(t, byte(TypeList), data[7])
	assert.Equal(t, byte(TypeInt), data[8])

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []any{}, got["xs"])
}

func TestBytesRejectedInV1(t *testing.T) {
	_, err := Encode(map[string]any{"blob": []byte{1, 2, 3}})
	assert.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	data, err := Encode(map[string]any{"name": "Alice", "id": int64(7)})
	require.NoError(t, err)

	// Every strict prefix must fail cleanly, not panic.
	for i := 1; i < len(data); i++ {
		_, err := Decode(data[:i])
		assert.Error(t, err, "prefix length %d", i)
	}
}

func TestDecodeUnknownVersion(t *testing.T) {
	_, err := Decode([]byte{0x07, 0x00, 0x00, 0x04})
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestDecodeV1HeaderLayout(t *testing.T) {
	data, err := Encode(map[string]any{"x": int64(1)})
	require.NoError(t, err)

	// version, field count, 2-byte total length.
	require.Equal(t, byte(0x01), data[0])
	require.Equal(t, byte(1), data[1])
	total := int(data[2])<<8 | int(data[3])
	assert.Equal(t, len(data), total)
}
