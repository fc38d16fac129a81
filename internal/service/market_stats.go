package service

import (
	"sort"

	"github.com/shopspring/decimal"

	polymarketgamma "oddlynews/internal/client/polymarket/gamma"
)

const topEventsLimit = 5

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

type TopEvent struct {
	Title        string `json:"title"`
	Volume       string `json:"volume"`
	Volume24hr   string `json:"volume24hr"`
	Liquidity    string `json:"liquidity"`
	CommentCount int    `json:"commentCount"`
	Featured     bool   `json:"featured"`
	Active       bool   `json:"active"`
}

// MarketStats is the dashboard summary of one market snapshot. Event counts
// describe Gamma events; TotalMarkets counts their nested outcome markets.
type MarketStats struct {
	TotalVolume     string     `json:"totalVolume"`
	TotalVolume24hr string     `json:"totalVolume24hr"`
	TotalLiquidity  string     `json:"totalLiquidity"`
	ActiveMarkets   int        `json:"activeMarkets"`
	FeaturedMarkets int        `json:"featuredMarkets"`
	TotalMarkets    int        `json:"totalMarkets"`
	TotalEvents     int        `json:"totalEvents"`
	TopEvents       []TopEvent `json:"topEvents"`
}

// FormatVolume renders a dollar volume as $X.XM, $XK or $X.
func FormatVolume(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(million):
		return "$" + v.Div(million).StringFixed(1) + "M"
	case v.GreaterThanOrEqual(thousand):
		return "$" + v.Div(thousand).StringFixed(0) + "K"
	default:
		return "$" + v.StringFixed(0)
	}
}

// ComputeMarketStats aggregates events without any network access.
func ComputeMarketStats(events []polymarketgamma.Event) MarketStats {
	var volume, volume24h, liquidity decimal.Decimal
	stats := MarketStats{TotalEvents: len(events), TopEvents: []TopEvent{}}
	for _, ev := range events {
		volume = volume.Add(ev.Volume.Decimal)
		volume24h = volume24h.Add(ev.Volume24hr.Decimal)
		liquidity = liquidity.Add(ev.Liquidity.Decimal)
		if ev.Active {
			stats.ActiveMarkets++
		}
		if ev.Featured {
			stats.FeaturedMarkets++
		}
		stats.TotalMarkets += len(ev.Markets)
	}
	stats.TotalVolume = FormatVolume(volume)
	stats.TotalVolume24hr = FormatVolume(volume24h)
	stats.TotalLiquidity = FormatVolume(liquidity)

	sorted := make([]polymarketgamma.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Volume.GreaterThan(sorted[j].Volume.Decimal)
	})
	if len(sorted) > topEventsLimit {
		sorted = sorted[:topEventsLimit]
	}
	for _, ev := range sorted {
		stats.TopEvents = append(stats.TopEvents, TopEvent{
			Title:        ev.Title,
			Volume:       FormatVolume(ev.Volume.Decimal),
			Volume24hr:   FormatVolume(ev.Volume24hr.Decimal),
			Liquidity:    FormatVolume(ev.Liquidity.Decimal),
			CommentCount: ev.CommentCount,
			Featured:     ev.Featured,
			Active:       ev.Active,
		})
	}
	return stats
}
