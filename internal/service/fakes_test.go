package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"oddlynews/internal/chain"
	"oddlynews/internal/client/perplexity"
	polymarketgamma "oddlynews/internal/client/polymarket/gamma"
	"oddlynews/internal/models"
	"oddlynews/internal/repository"
)

const testMnemonic = "test test test test test test test test test test test junk"

var errBoom = errors.New("boom")

// --- repository ----------------------------------------------------------------

type memRepo struct {
	mu              sync.Mutex
	agents          []models.Agent
	briefings       []models.Briefing
	insertAgentErrs []error
	latestErr       error
	insertAgents    int
	ensUpdates      []repository.ENSUpdate
	// pendingSnapshot, when set, is returned by ListAgentsPendingENS in
	// place of the live rows.
	pendingSnapshot []models.Agent
}

var _ repository.Repository = (*memRepo)(nil)

func (r *memRepo) ListActiveAgentsByTopic(ctx context.Context, topic string, limit int) ([]models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Agent
	for _, a := range r.agents {
		if a.Topic == topic && a.IsActive {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) GetAgentByTopic(ctx context.Context, topic string) (*models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.Topic == topic {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListActiveAgents(ctx context.Context) ([]models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Agent
	for _, a := range r.agents {
		if a.IsActive {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) ListAgentsPendingENS(ctx context.Context, limit int) ([]models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingSnapshot != nil {
		return append([]models.Agent(nil), r.pendingSnapshot...), nil
	}
	var out []models.Agent
	for _, a := range r.agents {
		if a.IsActive && a.WalletAddress != nil && a.ENSTransactionHash == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) MaxWalletIndex(ctx context.Context) (*int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var maxIndex *int
	for _, a := range r.agents {
		if a.WalletIndex == nil {
			continue
		}
		if maxIndex == nil || *a.WalletIndex > *maxIndex {
			v := *a.WalletIndex
			maxIndex = &v
		}
	}
	return maxIndex, nil
}

func (r *memRepo) InsertAgent(ctx context.Context, item *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertAgents++
	if len(r.insertAgentErrs) > 0 {
		err := r.insertAgentErrs[0]
		r.insertAgentErrs = r.insertAgentErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, a := range r.agents {
		if a.Topic == item.Topic {
			return fmt.Errorf("%w: topic", repository.ErrDuplicateKey)
		}
		if a.WalletIndex != nil && item.WalletIndex != nil && *a.WalletIndex == *item.WalletIndex {
			return fmt.Errorf("%w: wallet_index", repository.ErrDuplicateKey)
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	r.agents = append(r.agents, *item)
	return nil
}

func (r *memRepo) UpdateAgentENS(ctx context.Context, agentID string, update repository.ENSUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensUpdates = append(r.ensUpdates, update)
	for i := range r.agents {
		if r.agents[i].ID != agentID {
			continue
		}
		if update.Subdomain == nil {
			if r.agents[i].ENSTransactionHash != nil {
				return repository.ErrENSRecorded
			}
			r.agents[i].ENSSubdomain = nil
			r.agents[i].ENSRegisteredAt = nil
			r.agents[i].ENSTransactionHash = nil
			return nil
		}
		r.agents[i].ENSSubdomain = update.Subdomain
		r.agents[i].ENSRegisteredAt = update.RegisteredAt
		r.agents[i].ENSTransactionHash = update.TxHash
		return nil
	}
	return errors.New("record not found")
}

func (r *memRepo) InsertBriefing(ctx context.Context, item *models.Briefing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	r.briefings = append(r.briefings, *item)
	return nil
}

func (r *memRepo) LatestBriefing(ctx context.Context, agentID string) (*models.Briefing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latestErr != nil {
		return nil, r.latestErr
	}
	var latest *models.Briefing
	for i := range r.briefings {
		b := r.briefings[i]
		if b.AgentID != agentID {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = &b
		}
	}
	return latest, nil
}

func (r *memRepo) LatestBriefingTime(ctx context.Context, agentID string) (*time.Time, error) {
	b, err := r.LatestBriefing(ctx, agentID)
	if err != nil || b == nil {
		return nil, err
	}
	ts := b.CreatedAt.UTC()
	return &ts, nil
}

func (r *memRepo) ListBriefings(ctx context.Context, params repository.ListBriefingsParams) ([]models.Briefing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Briefing
	for _, b := range r.briefings {
		if b.AgentID == params.AgentID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *memRepo) briefingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.briefings)
}

// --- upstream fakes ------------------------------------------------------------

type fakeMarkets struct {
	mu     sync.Mutex
	events []polymarketgamma.Event
	err    error
	calls  int
	params []polymarketgamma.GetEventsParams
}

func (f *fakeMarkets) GetEvents(ctx context.Context, params *polymarketgamma.GetEventsParams) ([]polymarketgamma.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if params != nil {
		f.params = append(f.params, *params)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

// scriptedLLM answers insight prompts and script prompts separately.
type scriptedLLM struct {
	mu       sync.Mutex
	insights string
	script   string
	err      error
	calls    int
	prompts  []string
	block    chan struct{}
	entered  chan struct{}
}

func (l *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	l.calls++
	l.prompts = append(l.prompts, prompt)
	block, entered := l.block, l.entered
	l.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	if l.err != nil {
		return "", l.err
	}
	if strings.HasPrefix(prompt, "Analyze this prediction market data") {
		return l.insights, nil
	}
	return l.script, nil
}

func (l *scriptedLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type fakeSearcher struct {
	mu    sync.Mutex
	fail  map[string]bool
	empty map[string]bool
	calls []string
}

func (f *fakeSearcher) Search(ctx context.Context, req perplexity.SearchRequest) (*perplexity.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Query)
	if f.fail[req.Query] {
		return nil, errBoom
	}
	if f.empty[req.Query] {
		return &perplexity.SearchResponse{}, nil
	}
	return &perplexity.SearchResponse{Results: []perplexity.SearchResult{
		{Title: "Headline for " + req.Query, Snippet: "Snippet for " + req.Query},
		{Title: "second", Snippet: "ignored"},
	}}, nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	err    error
	voices []string
}

func (f *fakeSpeaker) TextToSpeech(ctx context.Context, voiceID, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, voiceID)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("ID3" + text), nil
}

func (f *fakeSpeaker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.voices)
}

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	objects []string
	types   []string
}

func (f *fakeUploader) Upload(ctx context.Context, bucket, object, contentType string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = append(f.objects, object)
	f.types = append(f.types, contentType)
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.test/storage/v1/object/public/" + bucket + "/" + object, nil
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeRegistrar struct {
	mu         sync.Mutex
	available  bool
	availErr   error
	regErr     error
	registered []string
	owners     []string
}

func (f *fakeRegistrar) Available(ctx context.Context, label string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available, f.availErr
}

func (f *fakeRegistrar) Register(ctx context.Context, label string, owner string) (*chain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regErr != nil {
		return nil, f.regErr
	}
	f.registered = append(f.registered, label)
	f.owners = append(f.owners, owner)
	return &chain.Registration{
		Subdomain:   f.Subdomain(label),
		Owner:       common.HexToAddress(owner),
		TxHash:      common.HexToHash("0xbeef"),
		BlockNumber: 100,
	}, nil
}

func (f *fakeRegistrar) Subdomain(label string) string {
	return label + ".oddly.eth"
}

// --- fixtures ------------------------------------------------------------------

// makeEvents decodes events from JSON so Raw is populated like a real response.
func makeEvents(volumes ...int64) []polymarketgamma.Event {
	parts := make([]string, 0, len(volumes))
	for i, v := range volumes {
		parts = append(parts, fmt.Sprintf(
			`{"id":"%d","title":"Market %d","volume":"%d","volume24hr":%d,"liquidity":"%d","active":true,"featured":%t,"commentCount":%d,"markets":[{"id":"m%d"},{"id":"n%d"}]}`,
			i+1, i+1, v, v/10, v/4, i == 0, i*3, i, i,
		))
	}
	var events []polymarketgamma.Event
	if err := json.Unmarshal([]byte("["+strings.Join(parts, ",")+"]"), &events); err != nil {
		panic(err)
	}
	return events
}

func testAgent() *models.Agent {
	return &models.Agent{
		ID:          "agent-crypto",
		Topic:       "crypto",
		DisplayName: "Crypto",
		TagID:       "21",
		VoiceID:     "voice-crypto",
		IsActive:    true,
	}
}
