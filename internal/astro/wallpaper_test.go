package astro

import (
	"encoding/json"
	"testing"
)

func TestWallpaperSettingsNormalize(t *testing.T) {
	got, err := WallpaperSettings{}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != DefaultWallpaperSettings() {
		t.Fatalf("normalized = %+v, want defaults", got)
	}

	if _, err := (WallpaperSettings{FocusMode: "party"}).Normalize(); err == nil {
		t.Fatal("expected unknown focus mode error")
	}
	if _, err := (WallpaperSettings{EnergyLevel: "max"}).Normalize(); err == nil {
		t.Fatal("expected unknown energy level error")
	}
	if _, err := (WallpaperSettings{Preferences: Preferences{Resolution: "8k"}}).Normalize(); err == nil {
		t.Fatal("expected unknown resolution error")
	}
}

func TestWallpaperResultAccessors(t *testing.T) {
	var result WallpaperResult
	body := `{"image_url":"https://cdn.example/w.png","focus_mode":"work","biorhythm_alignment":{"physical":{"score":0.8}},"prompt_used":"p"}`
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := result.Alignment("physical.score").Float(); got != 0.8 {
		t.Fatalf("alignment physical.score = %v, want 0.8", got)
	}
	share := result.SharePayload("today")
	if share.Type != "wallpaper" || share.URL != result.ImageURL || share.Caption != "today" {
		t.Fatalf("share payload = %+v", share)
	}
}

func TestDashaPeriodAccessors(t *testing.T) {
	var period DashaPeriod
	if err := json.Unmarshal([]byte(`{"current_dasha":{"planet":"Venus","end_date":"2031-02-01"}}`), &period); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := period.Planet(); got != "Venus" {
		t.Fatalf("planet = %q, want Venus", got)
	}
	end, ok := period.EndsAt()
	if !ok || end.Year() != 2031 {
		t.Fatalf("ends at = %v, %v", end, ok)
	}
	data, err := json.Marshal(period)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"current_dasha":{"planet":"Venus","end_date":"2031-02-01"}}` {
		t.Fatalf("marshal = %s", data)
	}
}

func TestFocusRecommendationFallsBackToDefault(t *testing.T) {
	var rec FocusRecommendation
	if err := json.Unmarshal([]byte(`{"recommended_focus_mode":"relax"}`), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.FocusMode() != FocusRelax {
		t.Fatalf("focus mode = %q, want relax", rec.FocusMode())
	}
	rec = FocusRecommendation{Raw: json.RawMessage(`{"focus_mode":"nap"}`)}
	if rec.FocusMode() != FocusDefault {
		t.Fatalf("focus mode = %q, want default", rec.FocusMode())
	}
}
