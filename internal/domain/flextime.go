package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// legacyLayout is the timestamp format older catalog files used.
const legacyLayout = "2006-01-02 15:04:05"

// FlexTime is a timestamp that decodes RFC 3339 strings, legacy
// "2006-01-02 15:04:05" strings and unix seconds. It always encodes RFC 3339.
type FlexTime struct {
	time.Time
}

// NewFlexTime wraps t.
func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{Time: t}
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON never fails on unrecognized values; they decode as zero time.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	t.Time = time.Time{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] != '"' {
		secs, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return nil
		}
		whole := int64(secs)
		t.Time = time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, legacyLayout, time.DateOnly} {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}
