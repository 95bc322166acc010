package derived

import (
	"context"
	"testing"
	"time"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
)

func TestRequestWallpaperReusesBiorhythm(t *testing.T) {
	computer := newFakeComputer()
	cache := newTestCache(t, computer)
	ctx := context.Background()
	if err := cache.SetProfile(ctx, delhiProfile(t)); err != nil {
		t.Fatalf("set profile: %v", err)
	}

	settings := []astro.WallpaperSettings{
		{},
		{FocusMode: astro.FocusWork, EnergyLevel: astro.EnergyHigh, Preferences: astro.Preferences{Resolution: astro.ResolutionHD}},
	}
	for _, s := range settings {
		if _, err := cache.RequestWallpaper(ctx, s); err != nil {
			t.Fatalf("request %+v: %v", s, err)
		}
	}

	b, _, w := computer.counts()
	if b != 1 || w != 2 {
		t.Fatalf("calls = biorhythm %d wallpaper %d, want 1 and 2", b, w)
	}
	first := computer.wallpapers[0]
	if first.BirthDate != "1990-05-15T08:30:00+05:30" {
		t.Fatalf("birth date = %q", first.BirthDate)
	}
	if first.FocusMode != astro.FocusDefault || first.EnergyLevel != astro.EnergyBalanced {
		t.Fatalf("defaults = %q / %q", first.FocusMode, first.EnergyLevel)
	}
	if first.CurrentBiorhythm == nil || first.CurrentBiorhythm.Physical != 28.6139 {
		t.Fatalf("biorhythm = %+v", first.CurrentBiorhythm)
	}
	if first.Preferences != nil {
		t.Fatalf("preferences = %+v, want omitted", first.Preferences)
	}
	if got := computer.wallpapers[1].Preferences; got == nil || got.Resolution != astro.ResolutionHD {
		t.Fatalf("preferences = %+v", got)
	}

	history := cache.History()
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].ID == "" || history[0].ID == history[1].ID {
		t.Fatalf("history ids = %q, %q", history[0].ID, history[1].ID)
	}
	if history[1].Settings.FocusMode != astro.FocusWork || history[1].Result.ImageURL != "https://img.test/work.png" {
		t.Fatalf("history[1] = %+v", history[1])
	}
	if !history[0].RequestedAt.Equal(day(2024, time.June, 1)) {
		t.Fatalf("requested at = %v", history[0].RequestedAt)
	}
}

func TestRequestWallpaperRejectsInvalidSettings(t *testing.T) {
	computer := newFakeComputer()
	cache := newTestCache(t, computer)
	ctx := context.Background()
	if err := cache.SetProfile(ctx, delhiProfile(t)); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	_, err := cache.RequestWallpaper(ctx, astro.WallpaperSettings{EnergyLevel: "manic"})
	if !apperrors.IsCode(err, apperrors.CodeInvalidSettings) {
		t.Fatalf("err = %v, want INVALID_SETTINGS", err)
	}
	if b, _, w := computer.counts(); b != 0 || w != 0 {
		t.Fatalf("calls = %d/%d, want none", b, w)
	}
	if len(cache.History()) != 0 {
		t.Fatal("failed request should not enter history")
	}
}

func TestHistoryIsACopy(t *testing.T) {
	cache := newTestCache(t, newFakeComputer())
	ctx := context.Background()
	if err := cache.SetProfile(ctx, delhiProfile(t)); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	if _, err := cache.RequestWallpaper(ctx, astro.DefaultWallpaperSettings()); err != nil {
		t.Fatalf("request: %v", err)
	}
	history := cache.History()
	history[0].ID = "changed"
	if cache.History()[0].ID == "changed" {
		t.Fatal("History must return a copy")
	}
}
