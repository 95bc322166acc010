package astro

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Biorhythm holds the four cycle values for one target day.
type Biorhythm struct {
	Physical     float64 `json:"physical"`
	Emotional    float64 `json:"emotional"`
	Intellectual float64 `json:"intellectual"`
	Spiritual    float64 `json:"spiritual"`
}

// DashaPeriod is the remote dasha payload. The service owns its schema, so
// the raw document is kept and read through accessors.
type DashaPeriod struct {
	Raw json.RawMessage
}

// MarshalJSON writes the raw payload back unchanged.
func (d DashaPeriod) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("null"), nil
	}
	return d.Raw, nil
}

// UnmarshalJSON keeps a copy of the payload.
func (d *DashaPeriod) UnmarshalJSON(data []byte) error {
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Get returns the value at a gjson path, e.g. "current_period.planet".
func (d DashaPeriod) Get(path string) gjson.Result {
	return gjson.GetBytes(d.Raw, path)
}

// Planet returns the ruling planet of the current major period, if present.
func (d DashaPeriod) Planet() string {
	for _, path := range []string{"current_dasha.planet", "current_period.planet", "mahadasha.planet", "planet"} {
		if value := d.Get(path); value.Exists() {
			return value.String()
		}
	}
	return ""
}

// EndsAt returns the end of the current major period, if the payload has one.
func (d DashaPeriod) EndsAt() (time.Time, bool) {
	for _, path := range []string{"current_dasha.end_date", "current_period.end_date", "end_date"} {
		value := d.Get(path)
		if !value.Exists() {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, value.String()); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
