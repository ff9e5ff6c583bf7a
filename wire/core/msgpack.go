package core

import (
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatMsgpack identifies MessagePack payloads within the snapshot abstraction.
const FormatMsgpack = "msgpack"

var _ msgpack.CustomEncoder = (*Object)(nil)

// EncodeMsgpack writes o as a MessagePack map in member order.
func (o *Object) EncodeMsgpack(enc *msgpack.Encoder) error {
	if o == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeMapLen(len(o.keys)); err != nil {
		return err
	}
	for _, key := range o.keys {
		if err := enc.EncodeString(key); err != nil {
			return err
		}
		if err := enc.Encode(o.values[key]); err != nil {
			return errors.Wrapf(err, "member %q", key)
		}
	}
	return nil
}

// EncodeFormat renders a wire value tree in the named format. Pretty only
// applies to JSON.
func EncodeFormat(value any, format string, pretty bool) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return Encode(value, pretty)
	case FormatMsgpack:
		return msgpack.Marshal(value)
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "format %q", format)
}

// ValidFormat reports whether format names a supported encoding.
func ValidFormat(format string) bool {
	return format == FormatJSON || format == FormatMsgpack
}
