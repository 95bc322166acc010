// Package remote talks to the wallpaper computation service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/timeouts"
)

// DefaultBaseURL is the production computation service.
const DefaultBaseURL = "https://sacred-wallpaper-api.onrender.com/api/v1"

const (
	biorhythmPath = "/calculations/biorhythm"
	dashaPath     = "/calculations/dasha"
	wallpaperPath = "/wallpapers/generate"
	focusModePath = "/calculations/focus-mode"

	// maxErrorBody caps how much of a failure response is read.
	maxErrorBody = 64 << 10
)

// Config configures the computation client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds each request; zero uses timeouts.RemoteRequest.
	Timeout time.Duration
}

// Client calls the computation endpoints. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	tracer  trace.Tracer
}

// New builds a client, filling defaults for unset fields.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.RemoteRequest
	}
	c := &Client{
		baseURL: baseURL,
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		tracer:  otel.Tracer("github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/remote"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Biorhythm computes the biorhythm of profile for the calendar day of
// targetDate, in targetDate's location.
func (c *Client) Biorhythm(ctx context.Context, profile astro.BirthProfile, targetDate time.Time) (astro.Biorhythm, error) {
	if err := validateProfile(profile); err != nil {
		return astro.Biorhythm{}, err
	}
	query := url.Values{}
	if !targetDate.IsZero() {
		query.Set("target_date", targetDate.Format(time.DateOnly))
	}
	var out astro.Biorhythm
	err := c.post(ctx, biorhythmPath, query, profile, &out, "Failed to calculate biorhythm")
	return out, err
}

// Dasha computes the current dasha period of profile.
func (c *Client) Dasha(ctx context.Context, profile astro.BirthProfile) (astro.DashaPeriod, error) {
	if err := validateProfile(profile); err != nil {
		return astro.DashaPeriod{}, err
	}
	var out astro.DashaPeriod
	err := c.post(ctx, dashaPath, nil, profile, &out, "Failed to calculate dasha")
	return out, err
}

// GenerateWallpaper asks the service to render a wallpaper.
func (c *Client) GenerateWallpaper(ctx context.Context, req astro.WallpaperRequest) (astro.WallpaperResult, error) {
	if strings.TrimSpace(req.BirthDate) == "" {
		return astro.WallpaperResult{}, apperrors.WithMetadata(apperrors.CodeInvalidProfile, "birth date is required", map[string]string{"reason": "birth date is required"})
	}
	settings, err := astro.WallpaperSettings{FocusMode: req.FocusMode, EnergyLevel: req.EnergyLevel}.Normalize()
	if err != nil {
		return astro.WallpaperResult{}, invalidSettings(err)
	}
	if req.Preferences != nil {
		if err := req.Preferences.Validate(); err != nil {
			return astro.WallpaperResult{}, invalidSettings(err)
		}
	}
	req.FocusMode = settings.FocusMode
	req.EnergyLevel = settings.EnergyLevel

	var out astro.WallpaperResult
	err = c.post(ctx, wallpaperPath, nil, req, &out, "Failed to generate wallpaper")
	return out, err
}

// OptimizeFocusMode asks the service which focus mode suits biorhythm.
func (c *Client) OptimizeFocusMode(ctx context.Context, biorhythm astro.Biorhythm, prefs astro.FocusPreferences) (astro.FocusRecommendation, error) {
	for _, mode := range append(append([]astro.FocusMode(nil), prefs.PreferredModes...), prefs.AvoidModes...) {
		if _, err := astro.ParseFocusMode(string(mode)); err != nil || mode == "" {
			return astro.FocusRecommendation{}, invalidSettings(fmt.Errorf("unknown focus mode %q", mode))
		}
	}
	body := struct {
		Biorhythm   astro.Biorhythm `json:"biorhythm"`
		Preferences struct {
			FocusPreferences astro.FocusPreferences `json:"focus_preferences"`
		} `json:"preferences"`
	}{Biorhythm: biorhythm}
	body.Preferences.FocusPreferences = prefs

	var out astro.FocusRecommendation
	err := c.post(ctx, focusModePath, nil, body, &out, "Failed to optimize focus mode")
	return out, err
}

func (c *Client) post(ctx context.Context, path string, query url.Values, in any, out any, genericMessage string) (err error) {
	ctx, span := c.tracer.Start(ctx, "remote.post "+path, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("http.route", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperrors.ComputationFailed(genericMessage, true, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return apperrors.ComputationFailed(genericMessage, true, fmt.Errorf("%s request failed: %w", path, err))
	}
	defer res.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeFailure(res, genericMessage)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return apperrors.ComputationFailed(genericMessage, true, fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

func validateProfile(profile astro.BirthProfile) error {
	if err := profile.Validate(); err != nil {
		return apperrors.WithMetadata(apperrors.CodeInvalidProfile, err.Error(), map[string]string{"reason": err.Error()})
	}
	return nil
}

func invalidSettings(err error) error {
	return &apperrors.Error{
		Code:     apperrors.CodeInvalidSettings,
		Message:  err.Error(),
		Metadata: map[string]string{"reason": err.Error()},
		Cause:    err,
	}
}

// IsTransport reports whether err is a computation failure caused by the
// network or an unreadable response rather than a service rejection.
func IsTransport(err error) bool {
	return apperrors.Retryable(err)
}

// statusError records a non-2xx response as the cause of a failure.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func decodeFailure(res *http.Response, genericMessage string) error {
	raw, readErr := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	cause := &statusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	if readErr != nil {
		return apperrors.ComputationFailed(genericMessage, true, fmt.Errorf("read error body: %w", readErr))
	}

	var body struct {
		Detail []struct {
			Loc  []any  `json:"loc"`
			Msg  string `json:"msg"`
			Type string `json:"type"`
		} `json:"detail"`
	}
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Detail) > 0 {
		message = strings.TrimSpace(body.Detail[0].Msg)
	}
	if message != "" {
		return apperrors.ComputationFailed(message, false, cause)
	}
	// Gateways in front of the service answer 5xx without a detail body.
	transport := res.StatusCode >= http.StatusInternalServerError
	return apperrors.ComputationFailed(genericMessage, transport, cause)
}
