package derived

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore"
)

// fakeComputer counts remote calls. When block is set every call waits for
// it to be closed.
type fakeComputer struct {
	mu             sync.Mutex
	biorhythmCalls int
	dashaCalls     int
	wallpaperCalls int
	biorhythmErr   error
	dashaErr       error
	wallpapers     []astro.WallpaperRequest
	callCtxErrs    []error

	block   chan struct{}
	started chan string
}

func newFakeComputer() *fakeComputer {
	return &fakeComputer{started: make(chan string, 64)}
}

func (f *fakeComputer) wait(ctx context.Context, name string) error {
	f.started <- name
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.Lock()
	f.callCtxErrs = append(f.callCtxErrs, ctx.Err())
	f.mu.Unlock()
	return nil
}

func (f *fakeComputer) Biorhythm(ctx context.Context, profile astro.BirthProfile, targetDate time.Time) (astro.Biorhythm, error) {
	if err := f.wait(ctx, "biorhythm:"+profile.Identity()); err != nil {
		return astro.Biorhythm{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.biorhythmCalls++
	if f.biorhythmErr != nil {
		return astro.Biorhythm{}, f.biorhythmErr
	}
	return astro.Biorhythm{
		Physical:     profile.Latitude,
		Emotional:    float64(targetDate.Day()),
		Intellectual: float64(f.biorhythmCalls),
	}, nil
}

func (f *fakeComputer) Dasha(ctx context.Context, profile astro.BirthProfile) (astro.DashaPeriod, error) {
	if err := f.wait(ctx, "dasha:"+profile.Identity()); err != nil {
		return astro.DashaPeriod{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashaCalls++
	if f.dashaErr != nil {
		return astro.DashaPeriod{}, f.dashaErr
	}
	return astro.DashaPeriod{Raw: []byte(`{"current_dasha":{"planet":"Venus","latitude":` + strconv.FormatFloat(profile.Latitude, 'g', -1, 64) + `}}`)}, nil
}

func (f *fakeComputer) GenerateWallpaper(_ context.Context, req astro.WallpaperRequest) (astro.WallpaperResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallpaperCalls++
	f.wallpapers = append(f.wallpapers, req)
	return astro.WallpaperResult{ImageURL: "https://img.test/" + string(req.FocusMode) + ".png", FocusMode: string(req.FocusMode)}, nil
}

func (f *fakeComputer) counts() (biorhythm, dasha, wallpaper int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.biorhythmCalls, f.dashaCalls, f.wallpaperCalls
}

func (f *fakeComputer) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case name := <-f.started:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote call")
		return ""
	}
}

// recordingStore wraps a store, recording writes and optionally failing them.
type recordingStore struct {
	kvstore.Store
	mu      sync.Mutex
	writes  []string
	failSet bool
	failGet bool
}

var errStoreDown = errors.New("disk full")

func (s *recordingStore) Get(ctx context.Context, key string) (string, error) {
	if s.failGet {
		return "", errStoreDown
	}
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	s.writes = append(s.writes, key)
	s.mu.Unlock()
	if s.failSet {
		return errStoreDown
	}
	return s.Store.Set(ctx, key, value)
}

func (s *recordingStore) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func quietLogger() (logrus.FieldLogger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func mustProfile(t *testing.T, date string, lat, lon float64) astro.BirthProfile {
	t.Helper()
	parsed, err := astro.ParseBirthDate(date)
	if err != nil {
		t.Fatalf("parse birth date: %v", err)
	}
	return astro.BirthProfile{Date: parsed, Latitude: lat, Longitude: lon}
}

func delhiProfile(t *testing.T) astro.BirthProfile {
	return mustProfile(t, "1990-05-15T08:30:00+05:30", 28.6139, 77.2090)
}

func mumbaiProfile(t *testing.T) astro.BirthProfile {
	return mustProfile(t, "1992-11-02T17:45:00+05:30", 19.0760, 72.8777)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 9, 0, 0, 0, time.UTC)
}
