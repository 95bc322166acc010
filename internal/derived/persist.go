package derived

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
)

// storeKeys are the two logical keys of one user.
type storeKeys struct {
	profile   string
	artifacts string
}

func newStoreKeys(namespace string) storeKeys {
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	if namespace == "" {
		return storeKeys{profile: "profile", artifacts: "artifacts"}
	}
	return storeKeys{profile: namespace + "/profile", artifacts: namespace + "/artifacts"}
}

// storedArtifact is one entry of the artifacts value as last written.
type storedArtifact struct {
	identity string
	raw      json.RawMessage
}

// persistedState mirrors what this cache last wrote to the store. Guarded
// by Cache.persistMu.
type persistedState struct {
	profile   string
	artifacts map[Kind]storedArtifact
}

// Load restores the persisted profile and its artifacts. A store failure
// switches the cache to memory-only; it is not returned.
func (c *Cache) Load(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if c.Degraded() {
		return
	}

	rawProfile, err := c.store.Get(ctx, c.keys.profile)
	if errors.Is(err, kvstore.ErrNotFound) {
		return
	}
	if err != nil {
		c.degrade(err)
		return
	}
	var profile astro.BirthProfile
	if err := json.Unmarshal([]byte(rawProfile), &profile); err != nil {
		c.log.WithError(err).Warn("ignoring unreadable persisted profile")
		return
	}
	if err := profile.Validate(); err != nil {
		c.log.WithError(err).Warn("ignoring invalid persisted profile")
		return
	}

	stored := make(map[Kind]storedArtifact)
	rawArtifacts, err := c.store.Get(ctx, c.keys.artifacts)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
	case err != nil:
		c.degrade(err)
	default:
		stored = c.decodeArtifacts(rawArtifacts)
	}
	c.persisted = persistedState{profile: profile.Identity(), artifacts: stored}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasProfile {
		return
	}
	c.profile = profile
	c.hasProfile = true
	c.biorhythm = restore[astro.Biorhythm](stored[KindBiorhythm], profile)
	c.dasha = restore[astro.DashaPeriod](stored[KindDasha], profile)
	c.log.WithFields(logrus.Fields{
		"profile":   profile.Identity(),
		"artifacts": len(stored),
	}).Debug("restored persisted state")
}

func (c *Cache) decodeArtifacts(value string) map[Kind]storedArtifact {
	out := make(map[Kind]storedArtifact)
	var entries map[Kind]json.RawMessage
	if err := json.Unmarshal([]byte(value), &entries); err != nil {
		c.log.WithError(err).Warn("ignoring unreadable persisted artifacts")
		return out
	}
	for kind, raw := range entries {
		var head Artifact[json.RawMessage]
		if err := json.Unmarshal(raw, &head); err != nil {
			c.log.WithError(err).WithField("kind", string(kind)).Warn("ignoring unreadable persisted artifact")
			continue
		}
		out[kind] = storedArtifact{identity: head.ComputedFor.Identity(), raw: raw}
	}
	return out
}

func restore[T any](entry storedArtifact, profile astro.BirthProfile) *Artifact[T] {
	if len(entry.raw) == 0 || entry.identity != profile.Identity() {
		return nil
	}
	var artifact Artifact[T]
	if err := json.Unmarshal(entry.raw, &artifact); err != nil {
		return nil
	}
	return &artifact
}

// persistProfile writes the current profile if the store holds another.
func (c *Cache) persistProfile(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if c.Degraded() {
		return
	}
	profile, ok := c.Profile()
	if !ok || c.persisted.profile == profile.Identity() {
		return
	}
	c.writeProfile(ctx, profile)
}

func persistArtifact[T any](ctx context.Context, c *Cache, kind Kind, artifact Artifact[T]) {
	raw, err := json.Marshal(artifact)
	if err != nil {
		c.log.WithError(err).WithField("kind", string(kind)).Error("encode artifact")
		return
	}
	c.persistArtifact(ctx, kind, artifact.ComputedFor, raw)
}

// persistArtifact writes one artifact into the artifacts value. An artifact
// of a replaced profile is kept only when it would not overwrite one of the
// current profile.
func (c *Cache) persistArtifact(ctx context.Context, kind Kind, computedFor astro.BirthProfile, raw json.RawMessage) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if c.Degraded() {
		return
	}

	current, _ := c.Profile()
	identity := computedFor.Identity()
	if identity != current.Identity() {
		if existing, ok := c.persisted.artifacts[kind]; ok && existing.identity == current.Identity() {
			return
		}
	} else if c.persisted.profile != identity {
		if !c.writeProfile(ctx, current) {
			return
		}
	}

	next := cloneArtifacts(c.persisted.artifacts)
	next[kind] = storedArtifact{identity: identity, raw: raw}
	c.writeArtifacts(ctx, next)
}

// removePersisted drops the entries of kinds computed for profile.
func (c *Cache) removePersisted(ctx context.Context, profile astro.BirthProfile, kinds []Kind) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if c.Degraded() {
		return
	}

	next := cloneArtifacts(c.persisted.artifacts)
	changed := false
	for _, kind := range kinds {
		if entry, ok := next[kind]; ok && entry.identity == profile.Identity() {
			delete(next, kind)
			changed = true
		}
	}
	if changed {
		c.writeArtifacts(ctx, next)
	}
}

// writeProfile requires persistMu.
func (c *Cache) writeProfile(ctx context.Context, profile astro.BirthProfile) bool {
	raw, err := json.Marshal(profile)
	if err != nil {
		c.log.WithError(err).Error("encode profile")
		return false
	}
	if err := c.store.Set(ctx, c.keys.profile, string(raw)); err != nil {
		c.degrade(err)
		return false
	}
	c.persisted.profile = profile.Identity()
	return true
}

// writeArtifacts replaces the whole artifacts value. Requires persistMu.
func (c *Cache) writeArtifacts(ctx context.Context, artifacts map[Kind]storedArtifact) {
	var err error
	if len(artifacts) == 0 {
		err = c.store.Delete(ctx, c.keys.artifacts)
	} else {
		entries := make(map[Kind]json.RawMessage, len(artifacts))
		for kind, entry := range artifacts {
			entries[kind] = entry.raw
		}
		var raw []byte
		raw, err = json.Marshal(entries)
		if err == nil {
			err = c.store.Set(ctx, c.keys.artifacts, string(raw))
		}
	}
	if err != nil {
		c.degrade(err)
		return
	}
	c.persisted.artifacts = artifacts
}

// degrade switches the cache to memory-only, logging the first failure.
func (c *Cache) degrade(err error) {
	c.mu.Lock()
	already := c.degraded
	c.degraded = true
	c.mu.Unlock()
	if already {
		return
	}
	c.log.WithError(err).WithField("code", string(apperrors.CodeStoreUnavailable)).
		Warn("durable store unavailable, continuing in memory only")
}

func cloneArtifacts(in map[Kind]storedArtifact) map[Kind]storedArtifact {
	out := make(map[Kind]storedArtifact, len(in)+1)
	for kind, entry := range in {
		out[kind] = entry
	}
	return out
}
