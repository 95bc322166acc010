package wallpaper

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/host"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("wallpaper", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"whoami"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Command != "whoami" || len(cfg.Args) != 0 {
		t.Fatalf("command = %q %v", cfg.Command, cfg.Args)
	}
	if cfg.APIURL != "https://sacred-wallpaper-api.onrender.com/api/v1" {
		t.Fatalf("api url = %q", cfg.APIURL)
	}
	if cfg.Store != StoreSQLite || cfg.StorePath != "data/wallpaper.db" {
		t.Fatalf("store = %q %q", cfg.Store, cfg.StorePath)
	}
	if cfg.RetryMaxElapsed != 30*time.Second {
		t.Fatalf("retry max elapsed = %v", cfg.RetryMaxElapsed)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("SACRED_WALLPAPER_STORE", "bbolt")
	t.Setenv("SACRED_WALLPAPER_USER_ID", "42")
	t.Setenv("SACRED_WALLPAPER_LOCALE", "ru")

	fs := flag.NewFlagSet("wallpaper", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-store", "memory", "biorhythm", "-date", "2024-06-01"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("store = %q, want flag value", cfg.Store)
	}
	if cfg.UserID != 42 || cfg.Locale != "ru" {
		t.Fatalf("env values = %d %q", cfg.UserID, cfg.Locale)
	}
	if cfg.Command != "biorhythm" || strings.Join(cfg.Args, " ") != "-date 2024-06-01" {
		t.Fatalf("command = %q %v", cfg.Command, cfg.Args)
	}
}

func TestParseConfigRejectsBadInput(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"paint"},
		{"-store", "postgres", "dasha"},
	} {
		fs := flag.NewFlagSet("wallpaper", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		if _, err := ParseConfig(fs, args); err == nil {
			t.Fatalf("ParseConfig(%v) expected error", args)
		}
	}
}

// fakeAPI serves the computation endpoints and counts calls per path.
type fakeAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{calls: map[string]int{}, failures: map[string][]int{}}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) failWith(path string, statuses ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[path] = append(a.failures[path], statuses...)
}

func (a *fakeAPI) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[path]
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	a.mu.Lock()
	a.calls[path]++
	var status int
	if pending := a.failures[path]; len(pending) > 0 {
		status, a.failures[path] = pending[0], pending[1:]
	}
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case status == http.StatusUnprocessableEntity:
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"detail":[{"loc":["body","date"],"msg":"date is out of range","type":"value_error"}]}`)
		return
	case status != 0:
		w.WriteHeader(status)
		return
	}
	switch path {
	case "/calculations/biorhythm":
		_, _ = io.WriteString(w, `{"physical":0.5,"emotional":-0.25,"intellectual":0.75,"spiritual":0}`)
	case "/calculations/dasha":
		_, _ = io.WriteString(w, `{"current_dasha":{"planet":"Jupiter","end_date":"2030-01-01"}}`)
	case "/wallpapers/generate":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"image_url":"https://img.test/`+body["focus_mode"].(string)+`.png","focus_mode":"work","prompt_used":"p"}`)
	case "/calculations/focus-mode":
		_, _ = io.WriteString(w, `{"recommended_focus_mode":"creative"}`)
	default:
		http.NotFound(w, r)
	}
}

func testConfig(t *testing.T, apiURL string, storePath string) Config {
	t.Helper()
	t.Setenv("SACRED_WALLPAPER_OTEL_ENDPOINT", "")
	return Config{
		APIURL:          apiURL + "/api/v1",
		Store:           StoreSQLite,
		StorePath:       storePath,
		UserID:          42,
		LogLevel:        "error",
		RetryInitial:    time.Millisecond,
		RetryMaxElapsed: 2 * time.Second,
	}
}

func run(t *testing.T, cfg Config, command string, args ...string) (string, string, error) {
	t.Helper()
	cfg.Command = command
	cfg.Args = args
	var out, errOut bytes.Buffer
	err := Run(context.Background(), cfg, &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestRunPersistsAcrossInvocations(t *testing.T) {
	api, srv := newFakeAPI(t)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "state", "wallpaper.db"))

	if _, _, err := run(t, cfg, "profile", "-date", "1990-05-15T08:30:00+05:30", "-lat", "28.6139", "-lon", "77.2090"); err != nil {
		t.Fatalf("profile: %v", err)
	}
	out, _, err := run(t, cfg, "profile")
	if err != nil {
		t.Fatalf("show profile: %v", err)
	}
	if !strings.Contains(out, `"1990-05-15T08:30:00+05:30"`) {
		t.Fatalf("profile output = %s", out)
	}

	for i := 0; i < 2; i++ {
		out, _, err := run(t, cfg, "biorhythm", "-date", "2024-06-01")
		if err != nil {
			t.Fatalf("biorhythm %d: %v", i, err)
		}
		if !strings.Contains(out, `"bucket": "2024-06-01"`) {
			t.Fatalf("biorhythm output = %s", out)
		}
	}
	if got := api.count("/calculations/biorhythm"); got != 1 {
		t.Fatalf("biorhythm calls = %d, want 1 across runs", got)
	}

	if _, _, err := run(t, cfg, "dasha"); err != nil {
		t.Fatalf("dasha: %v", err)
	}
	if _, _, err := run(t, cfg, "invalidate", "dasha"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, _, err := run(t, cfg, "dasha"); err != nil {
		t.Fatalf("dasha after invalidate: %v", err)
	}
	if got := api.count("/calculations/dasha"); got != 2 {
		t.Fatalf("dasha calls = %d, want 2", got)
	}
}

func TestRunGenerateAndFocus(t *testing.T) {
	api, srv := newFakeAPI(t)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "wallpaper.db"))
	cfg.Store = StoreBBolt
	if _, _, err := run(t, cfg, "profile", "-date", "1990-05-15T08:30:00+05:30", "-lat", "28.6139", "-lon", "77.2090"); err != nil {
		t.Fatalf("profile: %v", err)
	}

	out, _, err := run(t, cfg, "generate", "-focus", "work", "-caption", "today")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var generated generateOutput
	if err := json.Unmarshal([]byte(out), &generated); err != nil {
		t.Fatalf("decode output %s: %v", out, err)
	}
	if generated.Share.Type != "wallpaper" || generated.Share.URL != "https://img.test/work.png" || generated.Share.Caption != "today" {
		t.Fatalf("share = %+v", generated.Share)
	}

	out, _, err = run(t, cfg, "focus", "-prefer", "work,creative")
	if err != nil {
		t.Fatalf("focus: %v", err)
	}
	if !strings.Contains(out, `"focus_mode": "creative"`) {
		t.Fatalf("focus output = %s", out)
	}
	if got := api.count("/calculations/biorhythm"); got != 1 {
		t.Fatalf("biorhythm calls = %d, want 1", got)
	}
}

func TestRunRetriesTransportFailures(t *testing.T) {
	api, srv := newFakeAPI(t)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "wallpaper.db"))
	api.failWith("/calculations/dasha", http.StatusBadGateway, http.StatusServiceUnavailable)

	if _, _, err := run(t, cfg, "profile", "-date", "1990-05-15T08:30:00+05:30", "-lat", "28.6139", "-lon", "77.2090"); err != nil {
		t.Fatalf("profile: %v", err)
	}
	out, _, err := run(t, cfg, "dasha")
	if err != nil {
		t.Fatalf("dasha: %v", err)
	}
	if !strings.Contains(out, "Jupiter") {
		t.Fatalf("dasha output = %s", out)
	}
	if got := api.count("/calculations/dasha"); got != 3 {
		t.Fatalf("dasha calls = %d, want 3", got)
	}
}

func TestRunDoesNotRetryValidationFailures(t *testing.T) {
	api, srv := newFakeAPI(t)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "wallpaper.db"))
	api.failWith("/calculations/biorhythm", http.StatusUnprocessableEntity)

	if _, _, err := run(t, cfg, "profile", "-date", "1990-05-15T08:30:00+05:30", "-lat", "28.6139", "-lon", "77.2090"); err != nil {
		t.Fatalf("profile: %v", err)
	}
	_, errOut, err := run(t, cfg, "biorhythm")
	if !apperrors.IsCode(err, apperrors.CodeComputationFailed) {
		t.Fatalf("err = %v, want COMPUTATION_FAILED", err)
	}
	if !strings.Contains(errOut, "date is out of range") {
		t.Fatalf("errOut = %q", errOut)
	}
	if got := api.count("/calculations/biorhythm"); got != 1 {
		t.Fatalf("biorhythm calls = %d, want 1", got)
	}
}

func TestRunReportsLocalizedNoProfile(t *testing.T) {
	_, srv := newFakeAPI(t)
	cfg := testConfig(t, srv.URL, filepath.Join(t.TempDir(), "wallpaper.db"))

	_, errOut, err := run(t, cfg, "dasha")
	if !apperrors.IsCode(err, apperrors.CodeNoProfile) {
		t.Fatalf("err = %v, want NO_PROFILE", err)
	}
	if !strings.Contains(errOut, "Please provide your birth information first.") {
		t.Fatalf("errOut = %q", errOut)
	}
}

func TestRunWhoamiFromInitData(t *testing.T) {
	values := url.Values{}
	values.Set("user", `{"id":7,"first_name":"Ada","language_code":"ru","is_premium":true}`)
	values.Set("auth_date", "1700000000")
	values.Set("hash", host.Sign(values, "bot-token"))

	cfg := testConfig(t, "http://127.0.0.1:0", "")
	cfg.Store = StoreMemory
	cfg.InitData = values.Encode()
	cfg.BotToken = "bot-token"
	out, _, err := run(t, cfg, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	var who whoamiOutput
	if err := json.Unmarshal([]byte(out), &who); err != nil {
		t.Fatalf("decode %s: %v", out, err)
	}
	if who.ID != 7 || who.Locale != "ru-RU" || who.Tier != "premium" || who.Label != "Премиум" {
		t.Fatalf("whoami = %+v", who)
	}

	cfg.BotToken = "other-token"
	if _, _, err := run(t, cfg, "whoami"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestRunWhoamiTierOverride(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0", "")
	cfg.Store = StoreMemory
	cfg.Tier = "basic"
	out, _, err := run(t, cfg, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, `"quota": "15 wallpapers per month"`) {
		t.Fatalf("whoami = %s", out)
	}
	cfg.Tier = "gold"
	if _, _, err := run(t, cfg, "whoami"); err == nil {
		t.Fatal("expected unknown tier error")
	}
}
