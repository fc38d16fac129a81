package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"oddlynews/internal/cache"
	"oddlynews/internal/models"
)

func TestGenerationGuardSharesInFlightBuild(t *testing.T) {
	g := &GenerationGuard{Marker: cache.NewMemoryStore()}
	var runs int32
	entered := make(chan struct{})
	release := make(chan struct{})

	build := func(ctx context.Context) (*GenerateResult, error) {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(entered)
		}
		<-release
		return &GenerateResult{Briefing: &models.Briefing{ID: "b1"}}, nil
	}

	var wg sync.WaitGroup
	results := make([]*GenerateResult, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, errs[0] = g.Do(context.Background(), "agent-1", build)
	}()
	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _, errs[1] = g.Do(context.Background(), "agent-1", build)
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d err=%v", i, errs[i])
		}
		if results[i] == nil || results[i].Briefing.ID != "b1" {
			t.Fatalf("caller %d result=%+v", i, results[i])
		}
	}
	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Fatalf("build ran %d times want=1", n)
	}
}

func TestGenerationGuardBuildOutlivesCancelledCaller(t *testing.T) {
	g := &GenerationGuard{Marker: cache.NewMemoryStore()}
	entered := make(chan struct{})
	release := make(chan struct{})
	var buildErr atomic.Value

	build := func(ctx context.Context) (*GenerateResult, error) {
		close(entered)
		<-release
		if err := ctx.Err(); err != nil {
			buildErr.Store(err)
			return nil, err
		}
		return &GenerateResult{Briefing: &models.Briefing{ID: "b1"}}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(firstCtx, "agent-1", build)
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan *GenerateResult, 1)
	secondErr := make(chan error, 1)
	go func() {
		res, _, err := g.Do(context.Background(), "agent-1", build)
		secondDone <- res
		secondErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first caller err=%v want=context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller kept waiting on the build")
	}

	close(release)
	res := <-secondDone
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller err=%v", err)
	}
	if res == nil || res.Briefing.ID != "b1" {
		t.Fatalf("second caller result=%+v", res)
	}
	if v := buildErr.Load(); v != nil {
		t.Fatalf("build saw cancelled context: %v", v)
	}
}

func TestGenerationGuardBoundsBuildByTTL(t *testing.T) {
	g := &GenerationGuard{Marker: cache.NewMemoryStore(), TTL: time.Minute}
	start := time.Now()
	_, _, err := g.Do(context.Background(), "agent-1", func(ctx context.Context) (*GenerateResult, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Errorf("build context has no deadline")
		} else if d := deadline.Sub(start); d > time.Minute+time.Second {
			t.Errorf("deadline %v past TTL", d)
		}
		return &GenerateResult{}, nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestGenerationGuardReleasesMarker(t *testing.T) {
	marker := cache.NewMemoryStore()
	g := &GenerationGuard{Marker: marker}

	_, _, err := g.Do(context.Background(), "agent-1", func(ctx context.Context) (*GenerateResult, error) {
		if ok, _ := marker.SetNX(ctx, generationKeyPrefix+"agent-1", []byte("other"), time.Minute); ok {
			t.Errorf("marker not held during build")
		}
		return nil, errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v want=%v", err, errBoom)
	}
	if ok, _ := marker.SetNX(context.Background(), generationKeyPrefix+"agent-1", []byte("next"), time.Minute); !ok {
		t.Fatalf("marker still held after build")
	}
}

func TestGenerationGuardKeepsForeignMarker(t *testing.T) {
	marker := cache.NewMemoryStore()
	g := &GenerationGuard{Marker: marker}
	ctx := context.Background()
	_, _ = marker.SetNX(ctx, generationKeyPrefix+"agent-1", []byte("someone-else"), time.Minute)

	called := false
	_, _, err := g.Do(ctx, "agent-1", func(ctx context.Context) (*GenerateResult, error) {
		called = true
		return nil, nil
	})
	if !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("err=%v want=ErrGenerationInProgress", err)
	}
	if called {
		t.Fatalf("build ran while marker was held")
	}
	if deleted, _ := marker.DeleteIfValue(ctx, generationKeyPrefix+"agent-1", []byte("someone-else")); !deleted {
		t.Fatalf("foreign marker was touched")
	}
}

func TestNilGenerationGuardRunsBuild(t *testing.T) {
	var g *GenerationGuard
	res, shared, err := g.Do(context.Background(), "a", func(ctx context.Context) (*GenerateResult, error) {
		return &GenerateResult{Cached: true}, nil
	})
	if err != nil || shared || res == nil || !res.Cached {
		t.Fatalf("res=%+v shared=%v err=%v", res, shared, err)
	}
}
