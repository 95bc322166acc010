package derived

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/id"
)

// WallpaperRecord is one generation kept in the session history.
type WallpaperRecord struct {
	ID          string
	RequestedAt time.Time
	Settings    astro.WallpaperSettings
	Result      astro.WallpaperResult
}

// RequestWallpaper generates a wallpaper for the current profile using
// today's biorhythm. Results are never persisted; each call reaches the
// generator.
func (c *Cache) RequestWallpaper(ctx context.Context, settings astro.WallpaperSettings) (astro.WallpaperResult, error) {
	normalized, err := settings.Normalize()
	if err != nil {
		return astro.WallpaperResult{}, &apperrors.Error{
			Code:     apperrors.CodeInvalidSettings,
			Message:  err.Error(),
			Metadata: map[string]string{"reason": err.Error()},
			Cause:    err,
		}
	}
	if _, ok := c.Profile(); !ok {
		return astro.WallpaperResult{}, noProfile()
	}

	biorhythm, err := c.Biorhythm(ctx, time.Time{})
	if err != nil {
		return astro.WallpaperResult{}, err
	}
	recordID, err := id.NewID()
	if err != nil {
		return astro.WallpaperResult{}, err
	}

	req := astro.WallpaperRequest{
		BirthDate:        biorhythm.ComputedFor.Date.Format(time.RFC3339Nano),
		FocusMode:        normalized.FocusMode,
		EnergyLevel:      normalized.EnergyLevel,
		CurrentBiorhythm: &biorhythm.Value,
	}
	if normalized.Preferences != (astro.Preferences{}) {
		prefs := normalized.Preferences
		req.Preferences = &prefs
	}
	result, err := c.client.GenerateWallpaper(ctx, req)
	if err != nil {
		return astro.WallpaperResult{}, computationError(err, "Failed to generate wallpaper")
	}

	c.mu.Lock()
	c.history = append(c.history, WallpaperRecord{
		ID:          recordID,
		RequestedAt: c.now(),
		Settings:    normalized,
		Result:      result,
	})
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"focus_mode":   string(normalized.FocusMode),
		"energy_level": string(normalized.EnergyLevel),
	}).Info("wallpaper generated")
	return result, nil
}

// History returns the wallpapers generated this session, oldest first.
func (c *Cache) History() []WallpaperRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]WallpaperRecord(nil), c.history...)
}
