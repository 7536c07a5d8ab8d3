package store

import (
	"fmt"
	"time"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/value"
)

// marshalFields serializes a snapshot to canonical JSON.
func marshalFields(fields value.Object) (string, error) {
	if fields == nil {
		fields = value.Object{}
	}
	data, err := value.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

func unmarshalFields(data string) (value.Object, error) {
	obj, err := value.ParseObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return obj, nil
}

// marshalPayload serializes a diff payload in its tagged wire format.
// MarshalJSON is called directly: json.Marshal would HTML-escape the
// canonical output.
func marshalPayload(p diff.Payload) (string, error) {
	data, err := p.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func unmarshalPayload(data string) (diff.Payload, error) {
	var p diff.Payload
	if err := p.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
