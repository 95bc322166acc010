package derived

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/astro"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/timeouts"
)

// Biorhythm returns the biorhythm of the current profile for the calendar
// day of targetDate. A zero targetDate means now.
func (c *Cache) Biorhythm(ctx context.Context, targetDate time.Time) (Artifact[astro.Biorhythm], error) {
	if targetDate.IsZero() {
		targetDate = c.now()
	}
	validUntil := endOfDay(targetDate)
	return resolve(ctx, c, resolver[astro.Biorhythm]{
		kind:       KindBiorhythm,
		bucket:     dayBucket(targetDate),
		target:     targetDate,
		validUntil: &validUntil,
		slot:       func(c *Cache) **Artifact[astro.Biorhythm] { return &c.biorhythm },
		compute: func(ctx context.Context, profile astro.BirthProfile) (astro.Biorhythm, error) {
			return c.client.Biorhythm(ctx, profile, targetDate)
		},
		failure: "Failed to calculate biorhythm",
	})
}

// DashaPeriod returns the dasha period of the current profile.
func (c *Cache) DashaPeriod(ctx context.Context) (Artifact[astro.DashaPeriod], error) {
	return resolve(ctx, c, resolver[astro.DashaPeriod]{
		kind:   KindDasha,
		target: c.now(),
		slot:   func(c *Cache) **Artifact[astro.DashaPeriod] { return &c.dasha },
		compute: func(ctx context.Context, profile astro.BirthProfile) (astro.DashaPeriod, error) {
			return c.client.Dasha(ctx, profile)
		},
		failure: "Failed to calculate dasha",
	})
}

// resolver describes how one artifact kind is looked up and computed.
type resolver[T any] struct {
	kind       Kind
	bucket     string
	target     time.Time
	validUntil *time.Time
	// slot returns the memory slot of the kind; callers hold c.mu.
	slot    func(c *Cache) **Artifact[T]
	compute func(ctx context.Context, profile astro.BirthProfile) (T, error)
	// failure is the user message for errors the computer did not classify.
	failure string
}

func resolve[T any](ctx context.Context, c *Cache, r resolver[T]) (artifact Artifact[T], err error) {
	ctx, span := c.tracer.Start(ctx, "derived.resolve")
	span.SetAttributes(
		attribute.String("artifact.kind", string(r.kind)),
		attribute.String("artifact.bucket", r.bucket),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for {
		c.mu.Lock()
		if !c.hasProfile {
			c.mu.Unlock()
			return Artifact[T]{}, noProfile()
		}
		profile := c.profile
		if cached := *r.slot(c); cached != nil && cached.validFor(profile, r.bucket, r.target) {
			hit := *cached
			c.mu.Unlock()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return hit, nil
		}
		generation := c.generations[r.kind]
		c.mu.Unlock()

		ch := c.flight.DoChan(flightKey(profile, r.kind, r.bucket, generation), func() (any, error) {
			return computeShared(ctx, c, r, profile, generation)
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			return Artifact[T]{}, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			return Artifact[T]{}, res.Err
		}

		computed := res.Val.(Artifact[T])
		c.mu.Lock()
		current := c.hasProfile && c.profile.Equal(computed.ComputedFor)
		c.mu.Unlock()
		if current {
			span.SetAttributes(attribute.Bool("cache.hit", false), attribute.Bool("flight.shared", res.Shared))
			return computed, nil
		}
		c.log.WithFields(logrus.Fields{
			"kind":    string(r.kind),
			"bucket":  r.bucket,
			"profile": computed.ComputedFor.Identity(),
		}).Debug("profile replaced during computation, re-deriving")
	}
}

// computeShared runs once per flight key. It is detached from the first
// caller's cancellation so joined callers are not failed by it.
func computeShared[T any](ctx context.Context, c *Cache, r resolver[T], profile astro.BirthProfile, generation uint64) (Artifact[T], error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.RemoteRequest)
	defer cancel()

	log := c.log.WithFields(logrus.Fields{
		"kind":    string(r.kind),
		"bucket":  r.bucket,
		"profile": profile.Identity(),
	})
	log.Debug("computing artifact")

	value, err := r.compute(ctx, profile)
	if err != nil {
		err = computationError(err, r.failure)
		log.WithError(err).Warn("artifact computation failed")
		return Artifact[T]{}, err
	}
	artifact := Artifact[T]{
		Value:       value,
		ComputedFor: profile,
		ComputedAt:  c.now(),
		ValidUntil:  r.validUntil,
		Bucket:      r.bucket,
	}

	c.mu.Lock()
	fresh := c.generations[r.kind] == generation
	if fresh && c.hasProfile && c.profile.Equal(profile) {
		kept := artifact
		*r.slot(c) = &kept
	}
	c.mu.Unlock()

	if !fresh {
		log.Debug("artifact invalidated during computation, not kept")
		return artifact, nil
	}
	persistArtifact(ctx, c, r.kind, artifact)
	return artifact, nil
}

// computationError keeps classified errors and wraps anything else as a
// computation failure.
func computationError(err error, message string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	transport := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	return apperrors.ComputationFailed(message, transport, err)
}
