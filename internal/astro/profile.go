package astro

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// BirthProfile is the canonical input for every derived value.
//
// A profile is immutable: a new submission replaces it wholesale.
type BirthProfile struct {
	Date      time.Time
	Latitude  float64
	Longitude float64
}

// Validate checks that every field is present and in range.
func (p BirthProfile) Validate() error {
	if p.Date.IsZero() {
		return fmt.Errorf("birth date is required")
	}
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v must be within [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v must be within [-180, 180]", p.Longitude)
	}
	return nil
}

// Identity returns the canonical identity string of the profile.
//
// Two profiles share an identity only when date (including its UTC offset),
// latitude and longitude are exactly equal.
func (p BirthProfile) Identity() string {
	var b strings.Builder
	b.WriteString(p.Date.Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(p.Latitude, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(p.Longitude, 'g', -1, 64))
	return b.String()
}

// Equal reports whether both profiles have the same identity.
func (p BirthProfile) Equal(other BirthProfile) bool {
	return p.Identity() == other.Identity()
}

// IsZero reports whether the profile is unset.
func (p BirthProfile) IsZero() bool {
	return p.Date.IsZero() && p.Latitude == 0 && p.Longitude == 0
}

type birthProfileJSON struct {
	Date      string  `json:"date"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MarshalJSON encodes the profile in the remote API's birth data schema.
func (p BirthProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(birthProfileJSON{
		Date:      p.Date.Format(time.RFC3339Nano),
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	})
}

// UnmarshalJSON decodes the birth data schema, keeping the date offset.
func (p *BirthProfile) UnmarshalJSON(data []byte) error {
	var raw birthProfileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := ParseBirthDate(raw.Date)
	if err != nil {
		return err
	}
	*p = BirthProfile{Date: date, Latitude: raw.Latitude, Longitude: raw.Longitude}
	return nil
}

// ParseBirthDate parses an RFC 3339 timestamp, with or without seconds.
func ParseBirthDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("birth date is required")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse birth date %q: expected RFC 3339 timestamp with offset", value)
}
