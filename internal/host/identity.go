package host

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/i18n/catalog"
)

// DefaultLanguage is assumed when the host does not report one.
const DefaultLanguage = "en"

// Identity is a read-only snapshot of the host user.
type Identity struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Namespace returns the store namespace for the user, or "" when the
// identity is anonymous.
func (i Identity) Namespace() string {
	if i.ID == 0 {
		return ""
	}
	return strconv.FormatInt(i.ID, 10)
}

// DisplayName returns the best available human name.
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(i.FirstName) + " " + strings.TrimSpace(i.LastName))
	if name != "" {
		return name
	}
	if username := strings.TrimSpace(i.Username); username != "" {
		return "@" + username
	}
	return ""
}

// Language returns the canonical BCP 47 language reported by the host,
// falling back to DefaultLanguage for empty or malformed codes.
func (i Identity) Language() string {
	code := strings.ReplaceAll(strings.TrimSpace(i.LanguageCode), "_", "-")
	if code == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	return tag.String()
}

// Locale returns the message catalog locale serving the user's language.
func (i Identity) Locale() string {
	return catalog.Default().Match(i.Language())
}

// Tier resolves the subscription tier from the host premium flag.
func (i Identity) Tier() Tier {
	if i.IsPremium {
		return TierFor(TierPremium)
	}
	return TierFor(TierFree)
}
