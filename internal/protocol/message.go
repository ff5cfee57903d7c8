package protocol

import (
	"fmt"
	"time"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldTimestamp protowire.Number = 1
	fieldAuthor    protowire.Number = 2
	fieldContent   protowire.Number = 3
)

const (
	msgDailyStoic = "DailyStoic"
	msgRequest    = "DailyStoicRequest"
)

// DailyStoic is the broadcast message: one quotation stamped with the
// time it was sent.
type DailyStoic struct {
	Timestamp uint64 // unix seconds
	Author    string
	Content   []byte // UTF-8 text
}

func NewDailyStoic(author, text string, at time.Time) DailyStoic {
	return DailyStoic{
		Timestamp: unixSeconds(at),
		Author:    author,
		Content:   []byte(text),
	}
}

func (m DailyStoic) Text() string    { return string(m.Content) }
func (m DailyStoic) Time() time.Time { return time.Unix(int64(m.Timestamp), 0).UTC() }

func (m DailyStoic) Marshal() []byte {
	b := make([]byte, 0, 24+len(m.Author)+len(m.Content))
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Timestamp)
	b = protowire.AppendTag(b, fieldAuthor, protowire.BytesType)
	b = protowire.AppendString(b, m.Author)
	b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Content)
	return b
}

// UnmarshalDailyStoic decodes a broadcast payload. All three fields are
// required; unknown fields are skipped. Content is never nil on success.
func UnmarshalDailyStoic(b []byte) (DailyStoic, error) {
	var (
		m                 DailyStoic
		hasTS, hasA, hasC bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return DailyStoic{}, &DecodeError{Message: msgDailyStoic, Reason: "malformed tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]

		switch num {
		case fieldTimestamp:
			v, n, err := consumeVarint(msgDailyStoic, "timestamp", typ, b)
			if err != nil {
				return DailyStoic{}, err
			}
			m.Timestamp, hasTS = v, true
			b = b[n:]
		case fieldAuthor:
			v, n, err := consumeBytes(msgDailyStoic, "author", typ, b)
			if err != nil {
				return DailyStoic{}, err
			}
			m.Author, hasA = string(v), true
			b = b[n:]
		case fieldContent:
			v, n, err := consumeBytes(msgDailyStoic, "content", typ, b)
			if err != nil {
				return DailyStoic{}, err
			}
			m.Content, hasC = append(make([]byte, 0, len(v)), v...), true
			b = b[n:]
		default:
			n, err := skipField(msgDailyStoic, num, typ, b)
			if err != nil {
				return DailyStoic{}, err
			}
			b = b[n:]
		}
	}

	switch {
	case !hasTS:
		return DailyStoic{}, missing(msgDailyStoic, "timestamp")
	case !hasA:
		return DailyStoic{}, missing(msgDailyStoic, "author")
	case !hasC:
		return DailyStoic{}, missing(msgDailyStoic, "content")
	}
	if m.Author == "" {
		return DailyStoic{}, &DecodeError{Message: msgDailyStoic, Field: "author", Reason: "empty"}
	}
	if !utf8.ValidString(m.Author) {
		return DailyStoic{}, &DecodeError{Message: msgDailyStoic, Field: "author", Reason: "invalid UTF-8"}
	}
	if !utf8.Valid(m.Content) {
		return DailyStoic{}, &DecodeError{Message: msgDailyStoic, Field: "content", Reason: "invalid UTF-8"}
	}
	return m, nil
}

// Request asks any broadcaster listening on RequestTopic to publish now.
// The timestamp is informational and never validated.
type Request struct {
	Timestamp uint64 // unix seconds
}

func NewRequest(at time.Time) Request { return Request{Timestamp: unixSeconds(at)} }

func (r Request) Time() time.Time { return time.Unix(int64(r.Timestamp), 0).UTC() }

func (r Request) Marshal() []byte {
	b := make([]byte, 0, 11)
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Timestamp)
	return b
}

// UnmarshalRequest decodes a request payload. The timestamp field is
// required; unknown fields are skipped.
func UnmarshalRequest(b []byte) (Request, error) {
	var (
		r     Request
		hasTS bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Request{}, &DecodeError{Message: msgRequest, Reason: "malformed tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]

		if num == fieldTimestamp {
			v, n, err := consumeVarint(msgRequest, "timestamp", typ, b)
			if err != nil {
				return Request{}, err
			}
			r.Timestamp, hasTS = v, true
			b = b[n:]
			continue
		}
		n, err := skipField(msgRequest, num, typ, b)
		if err != nil {
			return Request{}, err
		}
		b = b[n:]
	}
	if !hasTS {
		return Request{}, missing(msgRequest, "timestamp")
	}
	return r, nil
}

func consumeVarint(msg, field string, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wrongType(msg, field, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, &DecodeError{Message: msg, Field: field, Reason: "malformed varint", Err: protowire.ParseError(n)}
	}
	return v, n, nil
}

func consumeBytes(msg, field string, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wrongType(msg, field, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, &DecodeError{Message: msg, Field: field, Reason: "malformed length-delimited value", Err: protowire.ParseError(n)}
	}
	return v, n, nil
}

func skipField(msg string, num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, &DecodeError{Message: msg, Reason: fmt.Sprintf("malformed unknown field %d", num), Err: protowire.ParseError(n)}
	}
	return n, nil
}

func wrongType(msg, field string, got, want protowire.Type) error {
	return &DecodeError{Message: msg, Field: field, Reason: fmt.Sprintf("wire type %d, want %d", got, want)}
}

func missing(msg, field string) error {
	return &DecodeError{Message: msg, Field: field, Reason: "required field missing"}
}

func unixSeconds(t time.Time) uint64 {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}
