package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTimeDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		zero bool
	}{
		{"rfc3339", `"2024-03-01T10:00:00Z"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"legacy layout", `"2024-03-01 10:00:00"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local), false},
		{"date only", `"2024-03-01"`, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), false},
		{"unix seconds", `1709287200`, time.Unix(1709287200, 0), false},
		{"null", `null`, time.Time{}, true},
		{"garbage string", `"yesterday"`, time.Time{}, true},
		{"garbage value", `true`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ft))
			if tt.zero {
				assert.True(t, ft.IsZero())
				return
			}
			assert.True(t, tt.want.Equal(ft.Time), "got %v", ft.Time)
		})
	}
}

func TestFlexTimeEncode(t *testing.T) {
	out, err := json.Marshal(NewFlexTime(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-01T10:00:00Z"`, string(out))

	out, err = json.Marshal(FlexTime{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestEntryDecodeLegacy(t *testing.T) {
	raw := `{"id": 12, "xml_id": 3456, "name": "Lamp", "category": "Lighting",
		"images": ["a.jpg", "b.jpg"], "price": 10, "added_at": "2023-01-02 03:04:05"}`

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, "12", e.ID)
	require.NotNil(t, e.XMLID)
	assert.Equal(t, "3456", *e.XMLID)
	assert.True(t, e.FromFeed())
	assert.Equal(t, []string{"Lighting"}, e.CategoryPath)
	require.NotNil(t, e.Image)
	assert.Equal(t, "a.jpg", *e.Image)
	assert.False(t, e.AddedAt.IsZero())
}

func TestEntryDecodeManual(t *testing.T) {
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{"id": "7", "xml_id": null, "name": "Gift card"}`), &e))

	assert.Nil(t, e.XMLID)
	assert.False(t, e.FromFeed())
	assert.Equal(t, []string{}, e.Images)
	assert.Nil(t, e.Image)
}

func TestCloneIsDeep(t *testing.T) {
	e := Entry{
		ID:           "1",
		XMLID:        StringPtr("x"),
		CategoryPath: []string{"A", "B"},
		Images:       []string{},
		DeliveryCost: FloatPtr(5),
	}
	c := e.Clone()
	*c.XMLID = "y"
	c.CategoryPath[0] = "Z"
	*c.DeliveryCost = 9

	assert.Equal(t, "x", *e.XMLID)
	assert.Equal(t, "A", e.CategoryPath[0])
	assert.Equal(t, 5.0, *e.DeliveryCost)
	assert.NotNil(t, c.Images, "empty slices stay empty, not nil")
}

func TestSameContent(t *testing.T) {
	now := time.Now()
	a := Entry{ID: "1", Name: "A", Images: []string{}, AddedAt: NewFlexTime(now), LastModified: NewFlexTime(now)}
	b := a.Clone()
	b.Images = nil
	b.AddedAt = NewFlexTime(now.UTC())
	b.LastModified = NewFlexTime(now.Add(time.Hour))
	assert.True(t, a.SameContent(&b))

	b.Price = 1
	assert.False(t, a.SameContent(&b))
}

func TestApplyOverrides(t *testing.T) {
	e := Entry{Name: "feed name", Category: "feed cat", NameOverride: "Nice name"}
	e.ApplyOverrides()
	assert.Equal(t, "Nice name", e.Name)
	assert.Equal(t, "feed cat", e.Category)
}
