package polymarketgamma

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal accepts JSON numbers, numeric strings, empty strings and null.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			d.Decimal = decimal.Zero
			return nil
		}
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	val, err := decimal.NewFromString(string(bytes.TrimSpace(b)))
	if err != nil {
		return fmt.Errorf("invalid decimal: %s", string(b))
	}
	d.Decimal = val
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.Decimal.String()), nil
}

type Market struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Slug          string  `json:"slug"`
	Outcomes      string  `json:"outcomes"`
	OutcomePrices string  `json:"outcomePrices"`
	Volume        Decimal `json:"volume"`
	Volume24hr    Decimal `json:"volume24hr"`
	Liquidity     Decimal `json:"liquidity"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	EndDate       string  `json:"endDate"`
}

// Event is a Gamma event. Raw holds the exact bytes received for it.
type Event struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Slug         string   `json:"slug"`
	Description  string   `json:"description"`
	Volume       Decimal  `json:"volume"`
	Volume24hr   Decimal  `json:"volume24hr"`
	Liquidity    Decimal  `json:"liquidity"`
	EndDate      string   `json:"endDate"`
	Active       bool     `json:"active"`
	Closed       bool     `json:"closed"`
	Featured     bool     `json:"featured"`
	CommentCount int      `json:"commentCount"`
	Markets      []Market `json:"markets"`

	Raw json.RawMessage `json:"-"`
}

func (e *Event) UnmarshalJSON(b []byte) error {
	type alias Event
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*e = Event(a)
	e.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// RawArray joins the retained event bodies into one JSON array.
func RawArray(events []Event) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, ev := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		if len(ev.Raw) == 0 {
			raw, err := json.Marshal(ev)
			if err != nil {
				raw = []byte("null")
			}
			buf.Write(raw)
			continue
		}
		buf.Write(ev.Raw)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

type GetEventsParams struct {
	Limit     int
	TagID     string
	Order     string
	Ascending bool
	Closed    *bool
}
