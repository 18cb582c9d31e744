package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedEvent marks a payload that cannot be interpreted no matter how
// often it is redelivered.
var ErrMalformedEvent = errors.New("malformed event")

const maxUnwrapDepth = 4

// ParseSettlement normalizes a settlement payload. Producers have sent the
// logical object directly, JSON-encoded inside a string, under a "value"
// key, and as a serialized Node.js Buffer; each layer is peeled until an
// object carrying bookingId is found.
func ParseSettlement(raw []byte) (*Settlement, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	obj, err := unwrap(v, 0)
	if err != nil {
		return nil, err
	}

	s := &Settlement{
		BookingID: stringField(obj, "bookingId"),
		SessionID: firstString(obj, "sessionId", "stripeSessionId"),
		Currency:  strings.ToLower(stringField(obj, "currency")),
		UserID:    stringField(obj, "userId"),
	}
	if s.BookingID == "" {
		return nil, fmt.Errorf("%w: bookingId is missing", ErrMalformedEvent)
	}
	if amount, ok := numberField(obj, "amount"); ok {
		s.Amount = &amount
	}
	return s, nil
}

func decode(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func unwrap(v any, depth int) (map[string]any, error) {
	if depth > maxUnwrapDepth {
		return nil, fmt.Errorf("%w: envelope nested too deeply", ErrMalformedEvent)
	}

	switch t := v.(type) {
	case string:
		inner, err := decode([]byte(t))
		if err != nil {
			return nil, fmt.Errorf("%w: string payload is not JSON: %v", ErrMalformedEvent, err)
		}
		return unwrap(inner, depth+1)

	case map[string]any:
		if _, ok := t["bookingId"]; ok {
			return t, nil
		}
		if data, ok := bufferBytes(t); ok {
			inner, err := decode(data)
			if err != nil {
				return nil, fmt.Errorf("%w: buffer payload is not JSON: %v", ErrMalformedEvent, err)
			}
			return unwrap(inner, depth+1)
		}
		if inner, ok := t["value"]; ok {
			return unwrap(inner, depth+1)
		}
		return nil, fmt.Errorf("%w: bookingId is missing", ErrMalformedEvent)

	default:
		return nil, fmt.Errorf("%w: unexpected payload type %T", ErrMalformedEvent, v)
	}
}

// bufferBytes recognizes {"type":"Buffer","data":[...]}.
func bufferBytes(m map[string]any) ([]byte, bool) {
	if typ, _ := m["type"].(string); typ != "Buffer" {
		return nil, false
	}
	items, ok := m["data"].([]any)
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(items))
	for _, item := range items {
		n, ok := item.(json.Number)
		if !ok {
			return nil, false
		}
		b, err := strconv.ParseUint(n.String(), 10, 8)
		if err != nil {
			return nil, false
		}
		out = append(out, byte(b))
	}
	return out, true
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}

func numberField(m map[string]any, key string) (int64, bool) {
	var s string
	switch v := m[key].(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Round(f)), true
}
