package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	polymarketgamma "oddlynews/internal/client/polymarket/gamma"
	"oddlynews/internal/llm"
)

const maxSearchQueries = 5

type MarketAnalysis struct {
	Insights      string       `json:"insights"`
	SearchQueries []string     `json:"searchQueries"`
	MarketStats   *MarketStats `json:"marketStats,omitempty"`
	Outcome       llm.Outcome  `json:"-"`
}

type InsightExtractor struct {
	LLM        llm.Completer
	MaxQueries int
	Logger     *zap.Logger
}

// SearchQueryCount is min(marketCount, limit).
func SearchQueryCount(marketCount, limit int) int {
	if limit <= 0 {
		limit = maxSearchQueries
	}
	if marketCount < limit {
		return marketCount
	}
	return limit
}

// ExtractInsights asks the LLM for a summary and one causal search query per
// market. Malformed model output degrades to a fallback analysis; only
// transport errors are returned.
func (e *InsightExtractor) ExtractInsights(ctx context.Context, events []polymarketgamma.Event) (*MarketAnalysis, error) {
	if e == nil || e.LLM == nil {
		return nil, fmt.Errorf("insight extractor not configured")
	}
	queryCount := SearchQueryCount(len(events), e.MaxQueries)
	raw, err := e.LLM.Complete(ctx, insightsPrompt(events, queryCount))
	if err != nil {
		return nil, err
	}

	stats := ComputeMarketStats(events)
	parsed := llm.ParseJSON[MarketAnalysis](raw)
	if !parsed.OK() {
		e.logger().Warn("insights response is not json, using fallback",
			zap.Error(parsed.Err),
			zap.Int("raw_chars", len(raw)),
		)
		return fallbackAnalysis(raw, events, &stats), nil
	}

	analysis := parsed.Value
	analysis.Outcome = llm.Structured
	analysis.SearchQueries = cleanQueries(analysis.SearchQueries, queryCount)
	if len(analysis.SearchQueries) == 0 && len(events) > 0 {
		analysis.SearchQueries = []string{defaultQuery(events)}
	}
	analysis.MarketStats = &stats
	return &analysis, nil
}

func (e *InsightExtractor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func fallbackAnalysis(raw string, events []polymarketgamma.Event, stats *MarketStats) *MarketAnalysis {
	return &MarketAnalysis{
		Insights:      raw,
		SearchQueries: []string{defaultQuery(events)},
		MarketStats:   stats,
		Outcome:       llm.Fallback,
	}
}

func defaultQuery(events []polymarketgamma.Event) string {
	subject := "news"
	if len(events) > 0 && strings.TrimSpace(events[0].Title) != "" {
		subject = strings.TrimSpace(events[0].Title)
	}
	return "recent " + subject + " updates"
}

func cleanQueries(queries []string, limit int) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

func insightsPrompt(events []polymarketgamma.Event, queryCount int) string {
	var b strings.Builder
	b.WriteString("Analyze this prediction market data and provide:\n\n")
	b.WriteString("1. Key market insights (brief summary with current odds and volumes)\n")
	fmt.Fprintf(&b, "2. Generate exactly %d simple search queries aimed at finding WHY each market has its current odds\n\n", queryCount)
	b.WriteString("Create short, natural search queries focused on causes and reasons:\n\n")
	b.WriteString("Data: ")
	b.Write(polymarketgamma.RawArray(events))
	b.WriteString("\n\nFormat your response as JSON:\n")
	b.WriteString("{\n  \"insights\": \"Brief analysis of current market state\",\n")
	b.WriteString("  \"searchQueries\": [\"shutdown risk October\", \"Fed cut reasons December\", \"candidate odds why unlikely\"]\n}\n\n")
	b.WriteString("Make queries 2-5 words that search for explanations, causes, or recent developments. One query per market. Respond with the JSON object only.")
	return b.String()
}
