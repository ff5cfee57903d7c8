package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDailyStoicRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []DailyStoic{
		{Timestamp: 1700000000, Author: "Marcus Aurelius", Content: []byte("You have power over your mind - not outside events.")},
		{Timestamp: 0, Author: "Seneca", Content: []byte("")},
		{Timestamp: ^uint64(0), Author: "Épictète", Content: []byte("Ψυχή – ἀταραξία")},
	}
	for _, m := range cases {
		got, err := UnmarshalDailyStoic(m.Marshal())
		require.NoError(t, err)
		assert.Equal(t, m.Timestamp, got.Timestamp)
		assert.Equal(t, m.Author, got.Author)
		assert.Equal(t, m.Text(), got.Text())
		assert.NotNil(t, got.Content)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, ts := range []uint64{0, 1, 1700000000, ^uint64(0)} {
		r := Request{Timestamp: ts}
		got, err := UnmarshalRequest(r.Marshal())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}

func TestMarshalIsCanonical(t *testing.T) {
	t.Parallel()
	at := time.Unix(1700000000, 0)
	a := NewDailyStoic("Epictetus", "No man is free who is not master of himself.", at)
	b := DailyStoic{Content: []byte("No man is free who is not master of himself."), Author: "Epictetus", Timestamp: 1700000000}
	assert.Equal(t, a.Marshal(), b.Marshal())

	// Tag order is fixed: 1, 2, 3.
	raw := a.Marshal()
	var tags []protowire.Number
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		require.Positive(t, n)
		raw = raw[n:]
		n = protowire.ConsumeFieldValue(num, typ, raw)
		require.Positive(t, n)
		raw = raw[n:]
		tags = append(tags, num)
	}
	assert.Equal(t, []protowire.Number{1, 2, 3}, tags)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	t.Parallel()
	b := Request{Timestamp: 42}.Marshal()
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 10, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)

	got, err := UnmarshalRequest(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.Timestamp)
}

func TestUnmarshalRequestRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   []byte
		field string
	}{
		{name: "empty", raw: nil, field: "timestamp"},
		{name: "zero timestamp from proto3 peer", raw: []byte{}, field: "timestamp"},
		{name: "field number zero", raw: []byte{0x00, 0x01}},
		{name: "truncated varint", raw: []byte{0x08, 0xff, 0xff}, field: "timestamp"},
		{name: "wrong wire type", raw: []byte{0x0d, 0x01, 0x02, 0x03, 0x04}, field: "timestamp"},
		{name: "truncated unknown bytes", raw: []byte{0x08, 0x01, 0x12, 0x05, 'a'}},
		{name: "only unknown fields", raw: []byte{0x10, 0x01}, field: "timestamp"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRequest(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecode)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, msgRequest, de.Message)
			if tt.field != "" {
				assert.Equal(t, tt.field, de.Field)
			}
		})
	}
}

func TestUnmarshalDailyStoicRejects(t *testing.T) {
	t.Parallel()
	valid := NewDailyStoic("Seneca", "Luck is what happens when preparation meets opportunity.", time.Unix(10, 0)).Marshal()

	noAuthor := protowire.AppendTag(nil, fieldTimestamp, protowire.VarintType)
	noAuthor = protowire.AppendVarint(noAuthor, 1)
	noAuthor = protowire.AppendTag(noAuthor, fieldContent, protowire.BytesType)
	noAuthor = protowire.AppendString(noAuthor, "text")

	// a proto3 encoder drops empty content entirely
	noContent := protowire.AppendTag(nil, fieldTimestamp, protowire.VarintType)
	noContent = protowire.AppendVarint(noContent, 1)
	noContent = protowire.AppendTag(noContent, fieldAuthor, protowire.BytesType)
	noContent = protowire.AppendString(noContent, "Seneca")

	emptyAuthor := DailyStoic{Timestamp: 1, Author: "", Content: []byte("x")}.Marshal()
	badUTF8 := DailyStoic{Timestamp: 1, Author: "a", Content: []byte{0xff, 0xfe}}.Marshal()

	tests := []struct {
		name  string
		raw   []byte
		field string
	}{
		{name: "truncated", raw: valid[:len(valid)-3], field: "content"},
		{name: "missing author", raw: noAuthor, field: "author"},
		{name: "empty author", raw: emptyAuthor, field: "author"},
		{name: "omitted empty content", raw: noContent, field: "content"},
		{name: "invalid utf8 content", raw: badUTF8, field: "content"},
		{name: "request payload", raw: Request{Timestamp: 5}.Marshal(), field: "author"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDailyStoic(tt.raw)
			require.ErrorIs(t, err, ErrDecode)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestUnmarshalNeverPanics(t *testing.T) {
	t.Parallel()
	seed := NewDailyStoic("Zeno", "Well-being is attained by little and little.", time.Unix(99, 0)).Marshal()
	// Every prefix and every single-byte mutation of a valid payload.
	for i := 0; i <= len(seed); i++ {
		assert.NotPanics(t, func() {
			_, _ = UnmarshalDailyStoic(seed[:i])
			_, _ = UnmarshalRequest(seed[:i])
		})
	}
	for i := range seed {
		for _, v := range []byte{0x00, 0x7f, 0x80, 0xff} {
			mut := append([]byte(nil), seed...)
			mut[i] = v
			assert.NotPanics(t, func() {
				_, _ = UnmarshalDailyStoic(mut)
				_, _ = UnmarshalRequest(mut)
			})
		}
	}
}

func TestTimeAccessors(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, at, NewDailyStoic("a", "b", at).Time())
	assert.Equal(t, at, NewRequest(at).Time())
	assert.Equal(t, uint64(0), NewRequest(time.Unix(-5, 0)).Timestamp)
}
