package thingspeak

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedStatus wraps any non-2xx answer from the channel.
	ErrUnexpectedStatus = errors.New("unexpected status from thingspeak")
	// ErrMalformedFeed is returned when the body is not a JSON object.
	ErrMalformedFeed = errors.New("malformed thingspeak feed")
	// ErrRejected is returned when ThingSpeak answers an update with entry id 0.
	ErrRejected = errors.New("thingspeak rejected the update")
	// ErrMissingWriteKey is returned by Update when no write key is configured.
	ErrMissingWriteKey = errors.New("thingspeak write api key is not configured")
)

// Feed is one decoded channel entry as served by feeds/last.json. Field
// values keep their JSON types; numbers decode as json.Number.
type Feed map[string]any

// Value returns the raw value of a field, or nil if it is absent.
func (f Feed) Value(name string) any {
	if f == nil {
		return nil
	}
	return f[name]
}

func decodeFeed(body []byte) (Feed, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformedFeed, describe(raw))
	}
	return Feed(obj), nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case json.Number:
		return "a number"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case []any:
		return "an array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
