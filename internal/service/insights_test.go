package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"oddlynews/internal/llm"
)

func TestSearchQueryCount(t *testing.T) {
	cases := []struct{ n, limit, want int }{
		{0, 5, 0},
		{3, 5, 3},
		{5, 5, 5},
		{9, 5, 5},
		{9, 0, 5},
		{9, 7, 7},
	}
	for _, tc := range cases {
		if got := SearchQueryCount(tc.n, tc.limit); got != tc.want {
			t.Fatalf("SearchQueryCount(%d,%d)=%d want=%d", tc.n, tc.limit, got, tc.want)
		}
	}
}

func TestExtractInsightsStructured(t *testing.T) {
	model := &scriptedLLM{insights: "```json\n" + `{"insights":"BTC odds firm","searchQueries":["a why"," ","b why","c why","d why","e why","f why"]}` + "\n```"}
	ex := &InsightExtractor{LLM: model}

	got, err := ex.ExtractInsights(context.Background(), makeEvents(7, 6, 5, 4, 3, 2, 1))
	if err != nil {
		t.Fatalf("ExtractInsights err=%v", err)
	}
	if got.Outcome != llm.Structured {
		t.Fatalf("outcome=%v want=structured", got.Outcome)
	}
	if got.Insights != "BTC odds firm" {
		t.Fatalf("insights=%q", got.Insights)
	}
	want := []string{"a why", "b why", "c why", "d why", "e why"}
	if strings.Join(got.SearchQueries, "|") != strings.Join(want, "|") {
		t.Fatalf("queries=%v want=%v", got.SearchQueries, want)
	}
	if got.MarketStats == nil || got.MarketStats.TotalEvents != 7 {
		t.Fatalf("market stats=%+v", got.MarketStats)
	}
	if !strings.Contains(model.prompts[0], "Generate exactly 5 simple search queries") {
		t.Fatalf("prompt does not request 5 queries")
	}
}

func TestExtractInsightsQueryCountFollowsMarkets(t *testing.T) {
	model := &scriptedLLM{insights: `{"insights":"x","searchQueries":["q1","q2","q3","q4"]}`}
	ex := &InsightExtractor{LLM: model}

	got, err := ex.ExtractInsights(context.Background(), makeEvents(3, 2, 1))
	if err != nil {
		t.Fatalf("ExtractInsights err=%v", err)
	}
	if len(got.SearchQueries) != 3 {
		t.Fatalf("queries=%d want=3", len(got.SearchQueries))
	}
	if !strings.Contains(model.prompts[0], "Generate exactly 3 simple search queries") {
		t.Fatalf("prompt does not request 3 queries")
	}
}

func TestExtractInsightsFallback(t *testing.T) {
	ex := &InsightExtractor{LLM: &scriptedLLM{insights: "Markets look busy today."}}

	got, err := ex.ExtractInsights(context.Background(), makeEvents(10, 5))
	if err != nil {
		t.Fatalf("fallback must not fail: %v", err)
	}
	if got.Outcome != llm.Fallback {
		t.Fatalf("outcome=%v want=fallback", got.Outcome)
	}
	if got.Insights != "Markets look busy today." {
		t.Fatalf("insights=%q", got.Insights)
	}
	if len(got.SearchQueries) != 1 || got.SearchQueries[0] != "recent Market 1 updates" {
		t.Fatalf("queries=%v", got.SearchQueries)
	}
	if got.MarketStats == nil {
		t.Fatalf("fallback should still carry stats")
	}
}

func TestExtractInsightsEmptyQueryList(t *testing.T) {
	ex := &InsightExtractor{LLM: &scriptedLLM{insights: `{"insights":"quiet","searchQueries":[]}`}}

	got, err := ex.ExtractInsights(context.Background(), makeEvents(10))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got.SearchQueries) != 1 || got.SearchQueries[0] != "recent Market 1 updates" {
		t.Fatalf("queries=%v", got.SearchQueries)
	}
}

func TestExtractInsightsTransportError(t *testing.T) {
	ex := &InsightExtractor{LLM: &scriptedLLM{err: errBoom}}
	if _, err := ex.ExtractInsights(context.Background(), makeEvents(1)); !errors.Is(err, errBoom) {
		t.Fatalf("err=%v want=%v", err, errBoom)
	}
}
