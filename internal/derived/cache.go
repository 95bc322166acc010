package derived

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore/memory"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
)

// Computer performs the remote computations. *remote.Client satisfies it.
type Computer interface {
	Biorhythm(ctx context.Context, profile astro.BirthProfile, targetDate time.Time) (astro.Biorhythm, error)
	Dasha(ctx context.Context, profile astro.BirthProfile) (astro.DashaPeriod, error)
	GenerateWallpaper(ctx context.Context, req astro.WallpaperRequest) (astro.WallpaperResult, error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the structured logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithNamespace prefixes every store key, normally with the host user id.
func WithNamespace(namespace string) Option {
	return func(c *Cache) {
		c.keys = newStoreKeys(namespace)
	}
}

// WithTracer sets the tracer used for resolution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Cache) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// Cache is the derived-state cache for one user session. It is safe for
// concurrent use.
type Cache struct {
	client Computer
	store  kvstore.Store
	keys   storeKeys
	log    logrus.FieldLogger
	now    func() time.Time
	tracer trace.Tracer
	flight singleflight.Group

	// persistMu orders store writes so the profile key always lands before
	// the artifacts computed for it.
	persistMu sync.Mutex
	persisted persistedState

	mu          sync.Mutex
	profile     astro.BirthProfile
	hasProfile  bool
	biorhythm   *Artifact[astro.Biorhythm]
	dasha       *Artifact[astro.DashaPeriod]
	generations map[Kind]uint64
	history     []WallpaperRecord
	degraded    bool
}

// New builds a cache over client and store. A nil store keeps everything in
// memory.
func New(client Computer, store kvstore.Store, opts ...Option) *Cache {
	if store == nil {
		store = memory.New()
	}
	c := &Cache{
		client:      client,
		store:       store,
		keys:        newStoreKeys(""),
		log:         logrus.StandardLogger(),
		now:         time.Now,
		tracer:      otel.Tracer("github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/derived"),
		generations: make(map[Kind]uint64),
		persisted:   persistedState{artifacts: make(map[Kind]storedArtifact)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetProfile replaces the current profile. Artifacts computed for the
// previous profile are no longer returned; nothing is recomputed until a
// caller asks for it.
func (c *Cache) SetProfile(ctx context.Context, profile astro.BirthProfile) error {
	if err := profile.Validate(); err != nil {
		return apperrors.WithMetadata(apperrors.CodeInvalidProfile, err.Error(), map[string]string{"reason": err.Error()})
	}

	c.mu.Lock()
	if c.hasProfile && c.profile.Equal(profile) {
		c.mu.Unlock()
		return nil
	}
	c.profile = profile
	c.hasProfile = true
	c.biorhythm = nil
	c.dasha = nil
	c.mu.Unlock()

	c.log.WithField("profile", profile.Identity()).Info("birth profile replaced")
	c.persistProfile(ctx)
	return nil
}

// Profile returns the current profile.
func (c *Cache) Profile() (astro.BirthProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.hasProfile
}

// Invalidate drops the cached and persisted artifacts of kind for the
// current profile. Computations already in flight still answer their own
// callers but their results are not kept.
func (c *Cache) Invalidate(ctx context.Context, kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	kinds := kind.expand()

	c.mu.Lock()
	for _, k := range kinds {
		c.generations[k]++
		switch k {
		case KindBiorhythm:
			c.biorhythm = nil
		case KindDasha:
			c.dasha = nil
		}
	}
	profile, ok := c.profile, c.hasProfile
	c.mu.Unlock()

	c.log.WithField("kind", string(kind)).Info("artifacts invalidated")
	if ok {
		c.removePersisted(ctx, profile, kinds)
	}
	return nil
}

// Degraded reports whether the durable store failed and the cache is now
// memory-only.
func (c *Cache) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func noProfile() error {
	return apperrors.New(apperrors.CodeNoProfile, "birth profile is not set")
}

func flightKey(profile astro.BirthProfile, kind Kind, bucket string, generation uint64) string {
	return fmt.Sprintf("%s#%s#%s#%d", profile.Identity(), kind, bucket, generation)
}
