package farcaster

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType discriminates authorship records. Only cast-add records carry a
// frame URL, so that is the only kind the engine accepts.
type MessageType uint64

const (
	MessageTypeNone    MessageType = 0
	MessageTypeCastAdd MessageType = 1
)

// Network identifies the Farcaster network a message was published to.
type Network uint64

const (
	NetworkNone    Network = 0
	NetworkMainnet Network = 1
)

// MessageData is the authorship record: a FID asserting it published content.
// It mirrors the Farcaster MessageData wire schema; fields the engine does not
// consume are skipped on decode and never re-encoded.
type MessageData struct {
	Type      MessageType
	FID       uint64
	Timestamp uint32
	Network   Network
	CastAdd   *CastAddBody
}

// CastAddBody is the cast payload. Embeds carry the frame URL.
type CastAddBody struct {
	Text   string
	Embeds []Embed
}

// Embed references external content from a cast.
type Embed struct {
	URL string
}

var errTruncated = errors.New("truncated field")

// MessageData field numbers on the wire.
const (
	fieldType        = 1
	fieldFID         = 2
	fieldTimestamp   = 3
	fieldNetwork     = 4
	fieldCastAddBody = 5
)

// CastAddBody field numbers. 1-3, 5 and 7 (deprecated embeds, mentions,
// parent cast, mention positions, parent URL) are skipped on decode.
const (
	fieldText   = 4
	fieldEmbeds = 6
)

const fieldEmbedURL = 1

// DecodeMessageData parses the protobuf wire encoding of an authorship record.
// Unknown fields are skipped so records produced by newer writers still decode.
func DecodeMessageData(b []byte) (*MessageData, error) {
	var md MessageData
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errTruncated
			}
			md.Type = MessageType(v)
			b = b[m:]
		case num == fieldFID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errTruncated
			}
			md.FID = v
			b = b[m:]
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errTruncated
			}
			md.Timestamp = uint32(v)
			b = b[m:]
		case num == fieldNetwork && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errTruncated
			}
			md.Network = Network(v)
			b = b[m:]
		case num == fieldCastAddBody && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, errTruncated
			}
			body, err := decodeCastAddBody(raw)
			if err != nil {
				return nil, err
			}
			md.CastAdd = body
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return &md, nil
}

func decodeCastAddBody(b []byte) (*CastAddBody, error) {
	var body CastAddBody
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldText && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, errTruncated
			}
			body.Text = string(v)
			b = b[m:]
		case num == fieldEmbeds && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, errTruncated
			}
			emb, err := decodeEmbed(raw)
			if err != nil {
				return nil, err
			}
			body.Embeds = append(body.Embeds, emb)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return &body, nil
}

func decodeEmbed(b []byte) (Embed, error) {
	var e Embed
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Embed{}, protowire.ParseError(n)
		}
		b = b[n:]

		if num == fieldEmbedURL && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Embed{}, errTruncated
			}
			e.URL = string(v)
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return Embed{}, protowire.ParseError(m)
		}
		b = b[m:]
	}
	return e, nil
}

// EncodeMessageData serializes a record to the wire format. The engine only
// verifies messages; encoding exists for signers and test fixtures.
func EncodeMessageData(md *MessageData) []byte {
	var b []byte
	if md.Type != MessageTypeNone {
		b = protowire.AppendTag(b, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(md.Type))
	}
	if md.FID != 0 {
		b = protowire.AppendTag(b, fieldFID, protowire.VarintType)
		b = protowire.AppendVarint(b, md.FID)
	}
	if md.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(md.Timestamp))
	}
	if md.Network != NetworkNone {
		b = protowire.AppendTag(b, fieldNetwork, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(md.Network))
	}
	if md.CastAdd != nil {
		b = protowire.AppendTag(b, fieldCastAddBody, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeCastAddBody(md.CastAdd))
	}
	return b
}

func encodeCastAddBody(body *CastAddBody) []byte {
	var b []byte
	if body.Text != "" {
		b = protowire.AppendTag(b, fieldText, protowire.BytesType)
		b = protowire.AppendString(b, body.Text)
	}
	for _, e := range body.Embeds {
		var raw []byte
		raw = protowire.AppendTag(raw, fieldEmbedURL, protowire.BytesType)
		raw = protowire.AppendString(raw, e.URL)
		b = protowire.AppendTag(b, fieldEmbeds, protowire.BytesType)
		b = protowire.AppendBytes(b, raw)
	}
	return b
}
