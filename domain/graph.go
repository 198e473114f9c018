package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const priceKey = "Price"

// Timestamp is a point of a series time axis. On the wire it is either unix
// seconds or an RFC3339 string.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil
	}

	if sec, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		t.Time = time.Unix(sec, 0).UTC()
		return nil
	}
	sec, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	t.Time = time.Unix(0, int64(sec*float64(time.Second))).UTC()

	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}

// Series is the history of one asset: parallel Time and Value slices.
type Series struct {
	Time  []Timestamp       `json:"Time"`
	Value []decimal.Decimal `json:"Value"`
}

func (s Series) Len() int {
	return len(s.Value)
}

// Baseline returns the value at the oldest point of the series. Series are
// produced oldest-first, so that is index 0 unless the axis is descending.
func (s Series) Baseline() (decimal.Decimal, bool) {
	n := len(s.Value)
	if n == 0 {
		return decimal.Zero, false
	}
	if len(s.Time) == n && n > 1 && s.Time[n-1].Before(s.Time[0].Time) {
		return s.Value[n-1], true
	}

	return s.Value[0], true
}

func (s Series) Labels() []time.Time {
	labels := make([]time.Time, len(s.Time))
	for i := range s.Time {
		labels[i] = s.Time[i].Time
	}

	return labels
}

// Price is the current fiat value of the primary asset.
type Price struct {
	Symbol string          `json:"Symbol"`
	Value  decimal.Decimal `json:"Value"`
}

// GraphMessage carries every charted series plus the current price. On the
// wire the series are sibling keys of "Price".
type GraphMessage struct {
	Series map[string]Series
	Price  Price
}

func (g *GraphMessage) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if !present(raw, priceKey) {
		return errors.New("graph message has no Price")
	}

	g.Series = make(map[string]Series, len(raw))
	for key, value := range raw {
		if key == priceKey {
			if err := requireFields(value, "Value"); err != nil {
				return errors.Wrap(err, "Price")
			}
			if err := json.Unmarshal(value, &g.Price); err != nil {
				return err
			}
			continue
		}

		var s Series
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		g.Series[key] = s
	}

	return nil
}

func (g GraphMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(g.Series)+1)
	for name, s := range g.Series {
		out[name] = s
	}
	out[priceKey] = g.Price

	return json.Marshal(out)
}

// Get returns the named series, empty when the message lacks it.
func (g GraphMessage) Get(name string) Series {
	return g.Series[name]
}

// Validate checks the parallel-slice invariant of every series and that the
// charted series share the primary time axis. charted[0] is the primary.
func (g GraphMessage) Validate(charted []string) error {
	for name, s := range g.Series {
		if len(s.Time) != len(s.Value) {
			return malformedf(
				"series %s has %d timestamps and %d values",
				name, len(s.Time), len(s.Value),
			)
		}
	}
	if len(charted) == 0 {
		return nil
	}

	axis := g.Get(charted[0]).Time
	for _, name := range charted[1:] {
		s, ok := g.Series[name]
		if !ok {
			continue
		}
		if len(s.Time) != len(axis) {
			return malformedf(
				"series %s has %d points, primary axis has %d",
				name, len(s.Time), len(axis),
			)
		}
		for i := range axis {
			if !s.Time[i].Equal(axis[i].Time) {
				return malformedf(
					"series %s point %d is at %s, primary axis at %s",
					name, i, s.Time[i].Format(time.RFC3339), axis[i].Format(time.RFC3339),
				)
			}
		}
	}

	return nil
}

// DecodeGraph parses and validates a graph payload.
func DecodeGraph(data []byte, charted []string) (GraphMessage, error) {
	var msg GraphMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return GraphMessage{}, malformedf("decode graph: %v", err)
	}
	if err := msg.Validate(charted); err != nil {
		return GraphMessage{}, err
	}

	return msg, nil
}
