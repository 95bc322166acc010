package derived

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
)

// Kind names a cached artifact.
type Kind string

const (
	KindBiorhythm Kind = "biorhythm"
	KindDasha     Kind = "dasha"
	// KindAll addresses every kind in Invalidate.
	KindAll Kind = "all"
)

// ParseKind returns the kind named by value.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindBiorhythm, KindDasha, KindAll:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", value)
	}
}

func (k Kind) expand() []Kind {
	if k == KindAll {
		return []Kind{KindBiorhythm, KindDasha}
	}
	return []Kind{k}
}

// Artifact is a value computed for one birth profile.
type Artifact[T any] struct {
	Value       T                  `json:"value"`
	ComputedFor astro.BirthProfile `json:"computed_for"`
	ComputedAt  time.Time          `json:"computed_at"`
	// ValidUntil is nil for profile-bound artifacts.
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	// Bucket is the calendar day (YYYY-MM-DD) a dated artifact targets.
	Bucket string `json:"bucket,omitempty"`
}

// ProfileBound reports whether the artifact stays valid until the profile changes.
func (a Artifact[T]) ProfileBound() bool {
	return a.ValidUntil == nil
}

// validFor reports whether the artifact answers a request for profile in
// bucket at target.
func (a Artifact[T]) validFor(profile astro.BirthProfile, bucket string, target time.Time) bool {
	if !a.ComputedFor.Equal(profile) || a.Bucket != bucket {
		return false
	}
	return a.ValidUntil == nil || !target.After(*a.ValidUntil)
}

// dayBucket returns the calendar day of t in t's own location.
func dayBucket(t time.Time) string {
	return t.Format(time.DateOnly)
}

// endOfDay returns the last instant of t's calendar day in t's location.
func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
