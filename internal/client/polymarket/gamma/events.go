package polymarketgamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GetEventsRaw returns the raw Gamma body for an events listing.
func (c *Client) GetEventsRaw(ctx context.Context, params *GetEventsParams) ([]byte, error) {
	return c.doRequest(ctx, "GET", "/events", eventsQuery(params))
}

// GetEvents lists events. A nil params lists the top 5 open events by 24h volume.
func (c *Client) GetEvents(ctx context.Context, params *GetEventsParams) ([]Event, error) {
	body, err := c.GetEventsRaw(ctx, params)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

func eventsQuery(params *GetEventsParams) url.Values {
	p := GetEventsParams{}
	if params != nil {
		p = *params
	}
	if p.Limit <= 0 {
		p.Limit = 5
	}
	if strings.TrimSpace(p.Order) == "" {
		p.Order = "volume24hr"
	}
	closed := false
	if p.Closed != nil {
		closed = *p.Closed
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(p.Limit))
	if tag := strings.TrimSpace(p.TagID); tag != "" {
		query.Set("tag_id", tag)
	}
	query.Set("order", p.Order)
	query.Set("ascending", strconv.FormatBool(p.Ascending))
	query.Set("closed", strconv.FormatBool(closed))
	return query
}
