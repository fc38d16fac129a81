package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"oddlynews/internal/client/perplexity"
)

const summaryMaxChars = 300

type NewsItem struct {
	Query    string `json:"query"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

type Searcher interface {
	Search(ctx context.Context, req perplexity.SearchRequest) (*perplexity.SearchResponse, error)
}

type NewsFetcher struct {
	Search           Searcher
	MaxResults       int
	MaxTokensPerPage int
	Logger           *zap.Logger
}

// FetchNews runs one search per query, in order. A failed or empty search is
// logged and skipped. The only error returned is context cancellation.
func (f *NewsFetcher) FetchNews(ctx context.Context, queries []string) ([]NewsItem, error) {
	if f == nil || f.Search == nil {
		return nil, fmt.Errorf("news fetcher not configured")
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	items := make([]NewsItem, 0, len(queries))
	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		resp, err := f.Search.Search(ctx, perplexity.SearchRequest{
			Query:            query,
			MaxResults:       f.MaxResults,
			MaxTokensPerPage: f.MaxTokensPerPage,
		})
		if err != nil {
			logger.Warn("news search failed", zap.String("query", query), zap.Error(err))
			continue
		}
		if resp == nil || len(resp.Results) == 0 {
			logger.Warn("news search returned no results", zap.String("query", query))
			continue
		}
		first := resp.Results[0]
		items = append(items, NewsItem{
			Query:    query,
			Headline: first.Title,
			Summary:  truncateRunes(first.Snippet, summaryMaxChars),
		})
	}
	return items, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
