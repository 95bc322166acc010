package wallpaper

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/derived"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
)

type command func(ctx context.Context, s *session, args []string) error

var commands = map[string]command{
	"profile":    runProfile,
	"biorhythm":  runBiorhythm,
	"dasha":      runDasha,
	"generate":   runGenerate,
	"focus":      runFocus,
	"invalidate": runInvalidate,
	"whoami":     runWhoami,
}

func subcommandFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// runProfile sets the birth profile, or prints the stored one when no
// flags are given.
func runProfile(ctx context.Context, s *session, args []string) error {
	fs := subcommandFlags("profile")
	date := fs.String("date", "", "Birth date and time with offset, e.g. 1990-05-15T08:30:00+05:30")
	lat := fs.Float64("lat", 0, "Birth latitude")
	lon := fs.Float64("lon", 0, "Birth longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*date) == "" {
		profile, ok := s.cache.Profile()
		if !ok {
			return apperrors.New(apperrors.CodeNoProfile, "birth profile is not set")
		}
		return writeJSON(s.out, profile)
	}

	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	if !seen["lat"] || !seen["lon"] {
		return apperrors.WithMetadata(apperrors.CodeInvalidProfile, "latitude and longitude are required",
			map[string]string{"reason": "latitude and longitude are required"})
	}
	parsed, err := astro.ParseBirthDate(*date)
	if err != nil {
		return apperrors.WithMetadata(apperrors.CodeInvalidProfile, err.Error(), map[string]string{"reason": err.Error()})
	}
	profile := astro.BirthProfile{Date: parsed, Latitude: *lat, Longitude: *lon}
	if err := s.cache.SetProfile(ctx, profile); err != nil {
		return err
	}
	return writeJSON(s.out, profile)
}

func runBiorhythm(ctx context.Context, s *session, args []string) error {
	fs := subcommandFlags("biorhythm")
	date := fs.String("date", "", "Target day (YYYY-MM-DD), default today")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var target time.Time
	if strings.TrimSpace(*date) != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(*date), time.Local)
		if err != nil {
			return fmt.Errorf("parse -date: %w", err)
		}
		target = parsed
	}
	artifact, err := withRetry(ctx, s, func() (derived.Artifact[astro.Biorhythm], error) {
		return s.cache.Biorhythm(ctx, target)
	})
	if err != nil {
		return err
	}
	return writeJSON(s.out, artifact)
}

func runDasha(ctx context.Context, s *session, _ []string) error {
	artifact, err := withRetry(ctx, s, func() (derived.Artifact[astro.DashaPeriod], error) {
		return s.cache.DashaPeriod(ctx)
	})
	if err != nil {
		return err
	}
	return writeJSON(s.out, artifact)
}

type generateOutput struct {
	Result astro.WallpaperResult `json:"result"`
	Share  astro.SharePayload    `json:"share"`
}

func runGenerate(ctx context.Context, s *session, args []string) error {
	fs := subcommandFlags("generate")
	focus := fs.String("focus", string(astro.FocusDefault), "Focus mode (default, work, relax, creative)")
	energy := fs.String("energy", string(astro.EnergyBalanced), "Energy level (balanced, high, low)")
	resolution := fs.String("resolution", "", "Resolution (standard, hd, 4k)")
	colorScheme := fs.String("color-scheme", "", "Color scheme (light, dark)")
	caption := fs.String("caption", "", "Caption for the share message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	settings := astro.WallpaperSettings{
		FocusMode:   astro.FocusMode(*focus),
		EnergyLevel: astro.EnergyLevel(*energy),
		Preferences: astro.Preferences{
			Resolution:  astro.Resolution(*resolution),
			ColorScheme: astro.ColorScheme(*colorScheme),
		},
	}
	result, err := withRetry(ctx, s, func() (astro.WallpaperResult, error) {
		return s.cache.RequestWallpaper(ctx, settings)
	})
	if err != nil {
		return err
	}
	return writeJSON(s.out, generateOutput{Result: result, Share: result.SharePayload(*caption)})
}

type focusOutput struct {
	FocusMode      astro.FocusMode `json:"focus_mode"`
	Recommendation any             `json:"recommendation,omitempty"`
}

// runFocus asks which focus mode suits today's biorhythm.
func runFocus(ctx context.Context, s *session, args []string) error {
	fs := subcommandFlags("focus")
	prefer := fs.String("prefer", "", "Comma-separated preferred focus modes")
	avoid := fs.String("avoid", "", "Comma-separated focus modes to avoid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prefs := astro.FocusPreferences{
		PreferredModes: splitModes(*prefer),
		AvoidModes:     splitModes(*avoid),
	}

	biorhythm, err := withRetry(ctx, s, func() (derived.Artifact[astro.Biorhythm], error) {
		return s.cache.Biorhythm(ctx, time.Time{})
	})
	if err != nil {
		return err
	}
	recommendation, err := withRetry(ctx, s, func() (astro.FocusRecommendation, error) {
		return s.client.OptimizeFocusMode(ctx, biorhythm.Value, prefs)
	})
	if err != nil {
		return err
	}
	out := focusOutput{FocusMode: recommendation.FocusMode()}
	if len(recommendation.Raw) > 0 {
		out.Recommendation = recommendation.Raw
	}
	return writeJSON(s.out, out)
}

func splitModes(value string) []astro.FocusMode {
	var modes []astro.FocusMode
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			modes = append(modes, astro.FocusMode(part))
		}
	}
	return modes
}

func runInvalidate(ctx context.Context, s *session, args []string) error {
	kindName := string(derived.KindAll)
	if len(args) > 0 {
		kindName = args[0]
	}
	kind, err := derived.ParseKind(kindName)
	if err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, kind); err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "invalidated %s\n", kind)
	return err
}

type whoamiOutput struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language"`
	Locale   string `json:"locale"`
	Tier     string `json:"tier"`
	Label    string `json:"tier_label"`
	Quota    string `json:"quota"`
}

func runWhoami(_ context.Context, s *session, _ []string) error {
	return writeJSON(s.out, whoamiOutput{
		ID:       s.identity.ID,
		Name:     s.identity.DisplayName(),
		Language: s.identity.Language(),
		Locale:   s.locale,
		Tier:     string(s.tier.Kind),
		Label:    s.tier.Label(s.locale),
		Quota:    s.tier.Quota(s.locale),
	})
}
