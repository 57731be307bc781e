package record

import (
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

// Parser decodes newline-delimited JSON log records. It is safe for
// concurrent use; parsers are pooled per call.
type Parser struct {
	pool fastjson.ParserPool
}

// NewParser returns a Parser ready for use.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a single JSON record. Unknown fields are ignored; missing
// fields default to their zero values so that a minimal {"message": "..."}
// line is a valid record.
func (p *Parser) Parse(line []byte) (*Record, error) {
	parser := p.pool.Get()
	defer p.pool.Put(parser)

	v, err := parser.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("invalid record JSON: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("invalid record JSON: expected object, got %s", v.Type())
	}

	rec := &Record{
		Channel: string(v.GetStringBytes("channel")),
		Level:   string(v.GetStringBytes("level")),
		Message: string(v.GetStringBytes("message")),
	}
	if ts := v.GetStringBytes("time"); len(ts) > 0 {
		if t, err := time.Parse(time.RFC3339, string(ts)); err == nil {
			rec.Time = t
		}
	}
	if ctx := v.Get("context"); ctx != nil {
		if m, ok := toGoValue(ctx).(map[string]any); ok {
			rec.Context = m
		}
	}
	if extra := v.Get("extra"); extra != nil {
		if m, ok := toGoValue(extra).(map[string]any); ok {
			rec.Extra = m
		}
	}
	return rec, nil
}

// toGoValue converts a fastjson value into the map/slice/scalar shapes the
// lookup helpers operate on.
func toGoValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return nil
		}
		m := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			m[string(key)] = toGoValue(val)
		})
		return m
	case fastjson.TypeArray:
		items, err := v.Array()
		if err != nil {
			return nil
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, toGoValue(item))
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}
