package host

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/i18n/catalog"
)

// TierKind names a subscription tier.
type TierKind string

const (
	TierFree    TierKind = "free"
	TierBasic   TierKind = "basic"
	TierPremium TierKind = "premium"
)

// unlimited marks a quota without a ceiling.
const unlimited = -1

// Limits are the per-tier quotas.
type Limits struct {
	// WallpapersPerMonth is -1 when unlimited.
	WallpapersPerMonth int
}

// Tier is a subscription tier with its limits.
type Tier struct {
	Kind   TierKind
	Limits Limits
}

var tierLimits = map[TierKind]Limits{
	TierFree:    {WallpapersPerMonth: 3},
	TierBasic:   {WallpapersPerMonth: 15},
	TierPremium: {WallpapersPerMonth: unlimited},
}

// ParseTierKind returns the tier kind named by value.
func ParseTierKind(value string) (TierKind, bool) {
	kind := TierKind(strings.ToLower(strings.TrimSpace(value)))
	_, ok := tierLimits[kind]
	return kind, ok
}

// TierFor returns the tier of kind; unknown kinds resolve to free.
func TierFor(kind TierKind) Tier {
	limits, ok := tierLimits[kind]
	if !ok {
		return Tier{Kind: TierFree, Limits: tierLimits[TierFree]}
	}
	return Tier{Kind: kind, Limits: limits}
}

// Unlimited reports whether the tier has no wallpaper quota.
func (t Tier) Unlimited() bool {
	return t.Limits.WallpapersPerMonth == unlimited
}

// Allows reports whether another wallpaper fits after used this month.
func (t Tier) Allows(used int) bool {
	return t.Unlimited() || used < t.Limits.WallpapersPerMonth
}

// Label returns the localized tier name.
func (t Tier) Label(locale string) string {
	bundle := catalog.Default()
	if label, ok := bundle.Message(bundle.Match(locale), "tier."+string(t.Kind)); ok {
		return label
	}
	return string(t.Kind)
}

// Quota returns the localized monthly quota description.
func (t Tier) Quota(locale string) string {
	bundle := catalog.Default()
	resolved := bundle.Match(locale)
	if t.Unlimited() {
		label, _ := bundle.Message(resolved, "tier.unlimited")
		return label
	}
	text, ok := bundle.Message(resolved, "tier.quota")
	if !ok {
		return strconv.Itoa(t.Limits.WallpapersPerMonth)
	}
	tmpl, err := template.New("quota").Parse(text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]int{"limit": t.Limits.WallpapersPerMonth}); err != nil {
		return text
	}
	return buf.String()
}
