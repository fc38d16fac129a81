package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	polymarketgamma "oddlynews/internal/client/polymarket/gamma"
	"oddlynews/internal/models"
)

type Stage string

const (
	StageCheckCache       Stage = "check_cache"
	StageFetchMarket      Stage = "fetch_market"
	StageExtractInsights  Stage = "extract_insights"
	StageFetchNews        Stage = "fetch_news"
	StageSynthesizeScript Stage = "synthesize_script"
	StageSynthesizeAudio  Stage = "synthesize_audio"
	StagePersist          Stage = "persist"

	DefaultFreshnessMinutes = 30
	filenameTimeLayout      = "2006-01-02T15-04-05"
)

type MarketSource interface {
	GetEvents(ctx context.Context, params *polymarketgamma.GetEventsParams) ([]polymarketgamma.Event, error)
}

// Observer receives pipeline timings. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveStage(stage string, took time.Duration, err error)
	ObserveBriefing(topic string, cached bool)
}

// Observers fans each call out to every non-nil observer.
type Observers []Observer

func (o Observers) ObserveStage(stage string, took time.Duration, err error) {
	for _, ob := range o {
		if ob != nil {
			ob.ObserveStage(stage, took, err)
		}
	}
}

func (o Observers) ObserveBriefing(topic string, cached bool) {
	for _, ob := range o {
		if ob != nil {
			ob.ObserveBriefing(topic, cached)
		}
	}
}

type GenerateResult struct {
	Briefing *models.Briefing
	Cached   bool
}

// Pipeline runs CHECK_CACHE, FETCH_MARKET, EXTRACT_INSIGHTS, FETCH_NEWS,
// SYNTHESIZE_SCRIPT, SYNTHESIZE_AUDIO and PERSIST for one agent. A failed
// stage aborts the run without undoing earlier side effects.
type Pipeline struct {
	Markets  MarketSource
	Insights *InsightExtractor
	News     *NewsFetcher
	Scripts  *ScriptSynthesizer
	Audio    *AudioSynthesizer
	Store    *BriefingStore
	Guard    *GenerationGuard
	Observer Observer

	FreshnessMinutes int
	MarketLimit      int
	Now              func() time.Time
	Logger           *zap.Logger
}

// Generate returns a fresh cached briefing unless force is set, otherwise
// builds a new one.
func (p *Pipeline) Generate(ctx context.Context, agent *models.Agent, force bool) (*GenerateResult, error) {
	if agent == nil {
		return nil, fmt.Errorf("%w: agent", ErrNotFound)
	}
	logger := p.logger().With(zap.String("topic", agent.Topic), zap.Bool("force", force))

	if !force {
		cached, err := p.checkCache(ctx, agent)
		if err != nil {
			logger.Warn("cache lookup failed, generating", zap.Error(err))
		}
		if cached != nil {
			logger.Info("serving cached briefing", zap.String("briefing_id", cached.ID))
			p.observeBriefing(agent.Topic, true)
			return &GenerateResult{Briefing: cached, Cached: true}, nil
		}
	}

	res, shared, err := p.Guard.Do(ctx, agent.ID, func(ctx context.Context) (*GenerateResult, error) {
		return p.build(ctx, agent, logger)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Info("joined in-flight generation")
	}
	return res, nil
}

func (p *Pipeline) checkCache(ctx context.Context, agent *models.Agent) (*models.Briefing, error) {
	start := time.Now()
	latest, err := p.Store.LatestBriefing(ctx, agent.ID)
	p.observeStage(StageCheckCache, time.Since(start), err)
	if err != nil || latest == nil {
		return nil, err
	}
	if !IsFresh(latest.CreatedAt, p.now(), p.freshnessMinutes()) {
		return nil, nil
	}
	return latest, nil
}

func (p *Pipeline) build(ctx context.Context, agent *models.Agent, logger *zap.Logger) (*GenerateResult, error) {
	started := p.now().UTC()

	var events []polymarketgamma.Event
	err := p.stage(ctx, StageFetchMarket, func(ctx context.Context) error {
		var err error
		events, err = p.Markets.GetEvents(ctx, &polymarketgamma.GetEventsParams{
			Limit: p.MarketLimit,
			TagID: agent.TagID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoMarketData
	}

	var analysis *MarketAnalysis
	if err := p.stage(ctx, StageExtractInsights, func(ctx context.Context) error {
		var err error
		analysis, err = p.Insights.ExtractInsights(ctx, events)
		return err
	}); err != nil {
		return nil, err
	}

	var news []NewsItem
	if err := p.stage(ctx, StageFetchNews, func(ctx context.Context) error {
		var err error
		news, err = p.News.FetchNews(ctx, analysis.SearchQueries)
		return err
	}); err != nil {
		return nil, err
	}

	var script *Script
	if err := p.stage(ctx, StageSynthesizeScript, func(ctx context.Context) error {
		var err error
		script, err = p.Scripts.SynthesizeScript(ctx, agent.Topic, analysis, news)
		return err
	}); err != nil {
		return nil, err
	}

	var audio *AudioResult
	if err := p.stage(ctx, StageSynthesizeAudio, func(ctx context.Context) error {
		var err error
		audio, err = p.Audio.SynthesizeAudio(ctx, script.Script, agent.VoiceID)
		return err
	}); err != nil {
		return nil, err
	}

	var saved *models.Briefing
	if err := p.stage(ctx, StagePersist, func(ctx context.Context) error {
		filename := BriefingFilename(agent.Topic, started)
		audioURL, err := p.Store.UploadAudio(ctx, audio.AudioBuffer, filename)
		if err != nil {
			return err
		}
		record, err := newBriefingRecord(agent, events, analysis, news, script, audio, audioURL, filename, started)
		if err != nil {
			return err
		}
		saved, err = p.Store.SaveBriefing(ctx, record)
		return err
	}); err != nil {
		return nil, err
	}

	logger.Info("briefing generated",
		zap.String("briefing_id", saved.ID),
		zap.Int("markets", len(events)),
		zap.Int("news_items", len(news)),
		zap.String("insights", analysis.Outcome.String()),
		zap.String("script", script.Outcome.String()),
		zap.Duration("took", p.now().UTC().Sub(started)),
	)
	p.observeBriefing(agent.Topic, false)
	return &GenerateResult{Briefing: saved}, nil
}

func (p *Pipeline) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	p.observeStage(stage, time.Since(start), err)
	if err == nil {
		return nil
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// BriefingFilename is "{topic}-briefing-{YYYY-MM-DDTHH-MM-SS}.mp3" in UTC.
func BriefingFilename(topic string, at time.Time) string {
	return fmt.Sprintf("%s-briefing-%s.mp3", topic, at.UTC().Format(filenameTimeLayout))
}

func newBriefingRecord(
	agent *models.Agent,
	events []polymarketgamma.Event,
	analysis *MarketAnalysis,
	news []NewsItem,
	script *Script,
	audio *AudioResult,
	audioURL, filename string,
	at time.Time,
) (*models.Briefing, error) {
	if news == nil {
		news = []NewsItem{}
	}
	newsJSON, err := json.Marshal(news)
	if err != nil {
		return nil, fmt.Errorf("encode news: %w", err)
	}
	metadata, err := json.Marshal(models.BriefingMetadata{
		Timestamp: at.UTC().Format(filenameTimeLayout),
		Filename:  filename,
		AudioSize: audio.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	record := &models.Briefing{
		AgentID:        agent.ID,
		Script:         script.Script,
		AudioURL:       audioURL,
		AudioDuration:  audio.EstimatedDuration,
		MarketCount:    len(events),
		NewsQueryCount: len(analysis.SearchQueries),
		PolymarketData: datatypes.JSON(polymarketgamma.RawArray(events)),
		NewsData:       datatypes.JSON(newsJSON),
		Metadata:       datatypes.JSON(metadata),
	}
	if analysis.MarketStats != nil {
		stats, err := json.Marshal(analysis.MarketStats)
		if err != nil {
			return nil, fmt.Errorf("encode market stats: %w", err)
		}
		record.MarketStats = datatypes.JSON(stats)
	}
	if len(script.AIInsights) > 0 {
		cards, err := json.Marshal(script.AIInsights)
		if err != nil {
			return nil, fmt.Errorf("encode insights: %w", err)
		}
		record.AIInsights = datatypes.JSON(cards)
	}
	return record, nil
}

func (p *Pipeline) observeStage(stage Stage, took time.Duration, err error) {
	if p.Observer != nil {
		p.Observer.ObserveStage(string(stage), took, err)
	}
}

func (p *Pipeline) observeBriefing(topic string, cached bool) {
	if p.Observer != nil {
		p.Observer.ObserveBriefing(topic, cached)
	}
}

func (p *Pipeline) freshnessMinutes() int {
	if p.FreshnessMinutes <= 0 {
		return DefaultFreshnessMinutes
	}
	return p.FreshnessMinutes
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
