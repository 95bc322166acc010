package astro

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// FocusMode selects the intent a wallpaper is generated for.
type FocusMode string

const (
	FocusDefault  FocusMode = "default"
	FocusWork     FocusMode = "work"
	FocusRelax    FocusMode = "relax"
	FocusCreative FocusMode = "creative"
)

// EnergyLevel selects the intensity of a generated wallpaper.
type EnergyLevel string

const (
	EnergyBalanced EnergyLevel = "balanced"
	EnergyHigh     EnergyLevel = "high"
	EnergyLow      EnergyLevel = "low"
)

// Resolution is the requested output size.
type Resolution string

const (
	ResolutionStandard Resolution = "standard"
	ResolutionHD       Resolution = "hd"
	ResolutionUHD      Resolution = "4k"
)

// ColorScheme mirrors the host app theme.
type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
)

// ParseFocusMode returns the focus mode named by value.
func ParseFocusMode(value string) (FocusMode, error) {
	switch mode := FocusMode(value); mode {
	case FocusDefault, FocusWork, FocusRelax, FocusCreative:
		return mode, nil
	case "":
		return FocusDefault, nil
	default:
		return "", fmt.Errorf("unknown focus mode %q", value)
	}
}

// ParseEnergyLevel returns the energy level named by value.
func ParseEnergyLevel(value string) (EnergyLevel, error) {
	switch level := EnergyLevel(value); level {
	case EnergyBalanced, EnergyHigh, EnergyLow:
		return level, nil
	case "":
		return EnergyBalanced, nil
	default:
		return "", fmt.Errorf("unknown energy level %q", value)
	}
}

// Preferences are the optional generation knobs. Every field is optional;
// the zero value lets the service decide.
type Preferences struct {
	Resolution  Resolution  `json:"resolution,omitempty"`
	ColorScheme ColorScheme `json:"color_scheme,omitempty"`
}

// Validate rejects values outside the enumerations.
func (p Preferences) Validate() error {
	switch p.Resolution {
	case "", ResolutionStandard, ResolutionHD, ResolutionUHD:
	default:
		return fmt.Errorf("unknown resolution %q", p.Resolution)
	}
	switch p.ColorScheme {
	case "", ColorSchemeLight, ColorSchemeDark:
	default:
		return fmt.Errorf("unknown color scheme %q", p.ColorScheme)
	}
	return nil
}

// WallpaperSettings are the per-request generator settings.
type WallpaperSettings struct {
	FocusMode   FocusMode
	EnergyLevel EnergyLevel
	Preferences Preferences
}

// DefaultWallpaperSettings returns the generator defaults.
func DefaultWallpaperSettings() WallpaperSettings {
	return WallpaperSettings{FocusMode: FocusDefault, EnergyLevel: EnergyBalanced}
}

// Normalize fills empty enumerations with their defaults and validates the result.
func (s WallpaperSettings) Normalize() (WallpaperSettings, error) {
	mode, err := ParseFocusMode(string(s.FocusMode))
	if err != nil {
		return WallpaperSettings{}, err
	}
	level, err := ParseEnergyLevel(string(s.EnergyLevel))
	if err != nil {
		return WallpaperSettings{}, err
	}
	if err := s.Preferences.Validate(); err != nil {
		return WallpaperSettings{}, err
	}
	s.FocusMode = mode
	s.EnergyLevel = level
	return s, nil
}

// WallpaperRequest is the wire body of the wallpaper generation endpoint.
type WallpaperRequest struct {
	BirthDate        string       `json:"birth_date"`
	FocusMode        FocusMode    `json:"focus_mode,omitempty"`
	EnergyLevel      EnergyLevel  `json:"energy_level,omitempty"`
	CurrentBiorhythm *Biorhythm   `json:"current_biorhythm,omitempty"`
	Preferences      *Preferences `json:"preferences,omitempty"`
}

// WallpaperResult is the generation response.
type WallpaperResult struct {
	ImageURL           string          `json:"image_url"`
	FocusMode          string          `json:"focus_mode"`
	BiorhythmAlignment json.RawMessage `json:"biorhythm_alignment,omitempty"`
	PromptUsed         string          `json:"prompt_used"`
}

// Alignment reads a value from the opaque biorhythm alignment document.
func (r WallpaperResult) Alignment(path string) gjson.Result {
	return gjson.GetBytes(r.BiorhythmAlignment, path)
}

// SharePayload is the message the host app forwards to the chat when a
// wallpaper is shared.
type SharePayload struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// SharePayload builds the chat share message for the result.
func (r WallpaperResult) SharePayload(caption string) SharePayload {
	return SharePayload{Type: "wallpaper", URL: r.ImageURL, Caption: caption}
}

// FocusPreferences steer the focus-mode recommendation.
type FocusPreferences struct {
	PreferredModes []FocusMode `json:"preferred_modes,omitempty"`
	AvoidModes     []FocusMode `json:"avoid_modes,omitempty"`
}

// FocusRecommendation is the opaque focus-mode optimization response.
type FocusRecommendation struct {
	Raw json.RawMessage
}

// UnmarshalJSON keeps a copy of the payload.
func (f *FocusRecommendation) UnmarshalJSON(data []byte) error {
	f.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// FocusMode returns the recommended mode, falling back to default when the
// payload does not name a known one.
func (f FocusRecommendation) FocusMode() FocusMode {
	for _, path := range []string{"recommended_focus_mode", "focus_mode"} {
		value := gjson.GetBytes(f.Raw, path)
		if !value.Exists() {
			continue
		}
		if mode, err := ParseFocusMode(value.String()); err == nil {
			return mode
		}
	}
	return FocusDefault
}
