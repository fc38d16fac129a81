package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"oddlynews/internal/cache"
)

const (
	generationKeyPrefix  = "oddly:generating:"
	defaultGenerationTTL = 10 * time.Minute
	// markerSlack keeps the marker alive past the build deadline.
	markerSlack = 30 * time.Second
)

// GenerationGuard allows one briefing build per agent at a time. Callers in
// the same process share the running build; a build held by another process
// is reported as ErrGenerationInProgress.
//
// The shared build ignores caller cancellation and is bounded by TTL. Each
// caller stops waiting when its own context ends.
type GenerationGuard struct {
	Marker cache.Store
	TTL    time.Duration
	Logger *zap.Logger

	group singleflight.Group
}

// Do runs fn for agentID unless a build is already running. shared is true
// when the result came from another caller's build.
func (g *GenerationGuard) Do(ctx context.Context, agentID string, fn func(context.Context) (*GenerateResult, error)) (res *GenerateResult, shared bool, err error) {
	if g == nil {
		res, err = fn(ctx)
		return res, false, err
	}
	ch := g.group.DoChan(agentID, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.ttl())
		defer cancel()
		release, err := g.acquire(buildCtx, agentID)
		if err != nil {
			return nil, err
		}
		defer release()
		return fn(buildCtx)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Shared, r.Err
		}
		res, _ = r.Val.(*GenerateResult)
		return res, r.Shared, nil
	}
}

func (g *GenerationGuard) ttl() time.Duration {
	if g.TTL <= 0 {
		return defaultGenerationTTL
	}
	return g.TTL
}

func (g *GenerationGuard) acquire(ctx context.Context, agentID string) (func(), error) {
	if g.Marker == nil {
		return func() {}, nil
	}
	key := generationKeyPrefix + agentID
	token := []byte(uuid.NewString())
	ok, err := g.Marker.SetNX(ctx, key, token, g.ttl()+markerSlack)
	if err != nil {
		// Fall back to in-process exclusion only.
		g.logger().Warn("generation marker unavailable", zap.String("agent_id", agentID), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrGenerationInProgress
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := g.Marker.DeleteIfValue(releaseCtx, key, token); err != nil && !errors.Is(err, context.Canceled) {
			g.logger().Warn("release generation marker failed", zap.String("agent_id", agentID), zap.Error(err))
		}
	}, nil
}

func (g *GenerationGuard) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
