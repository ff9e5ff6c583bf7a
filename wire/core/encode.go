package core

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

const (
	// FormatJSON identifies JSON payloads within the snapshot abstraction.
	FormatJSON = "json"
)

var (
	compactAPI = jsoniter.Config{EscapeHTML: false}.Froze()
	prettyAPI  = jsoniter.Config{EscapeHTML: false, IndentionStep: 2}.Froze()
)

// Encode renders a wire value tree as JSON text. Object member order is kept.
func Encode(value any, pretty bool) ([]byte, error) {
	api := compactAPI
	if pretty {
		api = prettyAPI
	}
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	writeValue(stream, value)
	if stream.Error != nil {
		return nil, stream.Error
	}

	buf := stream.Buffer()
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

func writeValue(stream *jsoniter.Stream, value any) {
	switch v := value.(type) {
	case nil:
		stream.WriteNil()
	case *Object:
		if v == nil {
			stream.WriteNil()
			return
		}
		if v.Len() == 0 {
			stream.WriteEmptyObject()
			return
		}
		stream.WriteObjectStart()
		for idx, key := range v.keys {
			if idx > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(key)
			writeValue(stream, v.values[key])
		}
		stream.WriteObjectEnd()
	case []any:
		if v == nil {
			stream.WriteNil()
			return
		}
		if len(v) == 0 {
			stream.WriteEmptyArray()
			return
		}
		stream.WriteArrayStart()
		for idx, item := range v {
			if idx > 0 {
				stream.WriteMore()
			}
			writeValue(stream, item)
		}
		stream.WriteArrayEnd()
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		writeValue(stream, items)
	case string:
		stream.WriteString(v)
	case bool:
		stream.WriteBool(v)
	case int:
		stream.WriteInt(v)
	case int64:
		stream.WriteInt64(v)
	case uint64:
		stream.WriteUint64(v)
	case float64:
		if f, ok := floatValue(v).(float64); ok {
			stream.WriteFloat64(f)
			return
		}
		stream.WriteString(fmt.Sprint(floatValue(v)))
	default:
		stream.WriteVal(v)
	}
}
