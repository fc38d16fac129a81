package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"oddlynews/internal/llm"
)

type ScriptFormat string

const (
	ScriptFormatPlain      ScriptFormat = "plain"
	ScriptFormatStructured ScriptFormat = "structured"

	maxInsightCards = 4
)

type InsightCard struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

type Script struct {
	Script     string        `json:"script"`
	AIInsights []InsightCard `json:"aiInsights,omitempty"`
	Outcome    llm.Outcome   `json:"-"`
}

// DefaultInsightCards are attached when structured output could not be parsed.
func DefaultInsightCards() []InsightCard {
	return []InsightCard{
		{
			Title:   "Market Sentiment",
			Content: "Prediction market odds summarize where traders are putting real money on these outcomes.",
			Source:  "Polymarket",
		},
		{
			Title:   "News Context",
			Content: "Recent reporting was used to explain why the markets are priced the way they are.",
			Source:  "Perplexity",
		},
	}
}

type ScriptSynthesizer struct {
	LLM    llm.Completer
	Format ScriptFormat
	Logger *zap.Logger
}

// SynthesizeScript produces the spoken briefing. Malformed structured output
// falls back to the raw text plus default insight cards.
func (s *ScriptSynthesizer) SynthesizeScript(ctx context.Context, topic string, analysis *MarketAnalysis, news []NewsItem) (*Script, error) {
	if s == nil || s.LLM == nil {
		return nil, fmt.Errorf("script synthesizer not configured")
	}
	if analysis == nil {
		analysis = &MarketAnalysis{}
	}
	format := s.Format
	if format != ScriptFormatPlain {
		format = ScriptFormatStructured
	}
	raw, err := s.LLM.Complete(ctx, scriptPrompt(topic, analysis, news, format))
	if err != nil {
		return nil, err
	}
	if format == ScriptFormatPlain {
		return &Script{Script: strings.TrimSpace(raw), Outcome: llm.Structured}, nil
	}

	parsed := llm.ParseJSON[Script](raw)
	if !parsed.OK() || strings.TrimSpace(parsed.Value.Script) == "" {
		s.logger().Warn("script response is not structured, using fallback",
			zap.String("topic", topic),
			zap.Error(parsed.Err),
		)
		return &Script{
			Script:     strings.TrimSpace(llm.StripCodeFence(raw)),
			AIInsights: DefaultInsightCards(),
			Outcome:    llm.Fallback,
		}, nil
	}
	out := parsed.Value
	out.Script = strings.TrimSpace(out.Script)
	out.AIInsights = cleanCards(out.AIInsights)
	out.Outcome = llm.Structured
	return &out, nil
}

func (s *ScriptSynthesizer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func cleanCards(cards []InsightCard) []InsightCard {
	out := make([]InsightCard, 0, len(cards))
	for _, c := range cards {
		if strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Content) == "" {
			continue
		}
		out = append(out, c)
		if len(out) == maxInsightCards {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scriptPrompt(topic string, analysis *MarketAnalysis, news []NewsItem, format ScriptFormat) string {
	newsJSON, err := json.Marshal(news)
	if err != nil || news == nil {
		newsJSON = []byte("[]")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are Marcus Chen, delivering an oddly.news market intelligence briefing on %s. ", topic)
	b.WriteString("You analyze prediction markets to explain what smart money is thinking and why.\n\n")
	b.WriteString("PREDICTION MARKET DATA:\n")
	b.WriteString(analysis.Insights)
	b.WriteString("\n\nCONTEXT AND REASONING:\n")
	b.Write(newsJSON)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("- Create a 60-90 second radio script focusing on market intelligence with explanations\n")
	b.WriteString("- Start with the most compelling market position and explain WHY it exists\n")
	b.WriteString("- Use the context data to explain the reasoning behind market odds\n")
	b.WriteString("- Cover key prediction market metrics (odds, volumes, movements)\n")
	b.WriteString("- Keep sentences short and concise for audio delivery\n")
	b.WriteString("- Convert all numbers to words (82% becomes \"eighty-two percent\")\n")
	b.WriteString("- End with what this means for listeners or a forward-looking insight\n")
	b.WriteString("- Strictly under 90 seconds when spoken\n")
	b.WriteString("- Use clean text only, no special characters or formatting\n")
	if format == ScriptFormatStructured {
		b.WriteString("\nRespond with JSON only, in this shape:\n")
		b.WriteString("{\n  \"script\": \"the full spoken script\",\n")
		b.WriteString("  \"aiInsights\": [{\"title\": \"short title\", \"content\": \"one or two sentences\", \"source\": \"where it comes from\"}]\n}\n")
		b.WriteString("Include between 2 and 4 aiInsights.\n")
	}
	return b.String()
}
