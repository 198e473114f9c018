package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	submissionFields = []string{"Source", "Time", "URL", "Title"}
	fundingFields    = []string{"Title", "URL", "Current", "Total", "Contributions"}
)

// present reports whether key is set to a non-null value.
func present(raw map[string]json.RawMessage, key string) bool {
	v, ok := raw[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// requireFields fails unless the JSON object b carries every key.
func requireFields(b []byte, keys ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, key := range keys {
		if !present(raw, key) {
			return errors.Errorf("missing field %s", key)
		}
	}

	return nil
}

// SubmissionItem is one entry of the submissions feed.
type SubmissionItem struct {
	Source string `json:"Source"`
	Time   int64  `json:"Time"`
	URL    string `json:"URL"`
	Title  string `json:"Title"`
}

func (s *SubmissionItem) UnmarshalJSON(b []byte) error {
	if err := requireFields(b, submissionFields...); err != nil {
		return errors.Wrap(err, "submission")
	}

	type plain SubmissionItem
	return json.Unmarshal(b, (*plain)(s))
}

func (s SubmissionItem) At() time.Time {
	return time.Unix(s.Time, 0)
}

// FundingItem is one crowdfunding project. Current may exceed Total.
type FundingItem struct {
	Title         string          `json:"Title"`
	URL           string          `json:"URL"`
	Current       decimal.Decimal `json:"Current"`
	Total         decimal.Decimal `json:"Total"`
	Contributions int             `json:"Contributions"`
}

func (f *FundingItem) UnmarshalJSON(b []byte) error {
	if err := requireFields(b, fundingFields...); err != nil {
		return errors.Wrap(err, "funding")
	}

	type plain FundingItem
	return json.Unmarshal(b, (*plain)(f))
}

func (f FundingItem) Validate() error {
	if f.Contributions < 0 {
		return malformedf(
			"funding %q has negative contribution count %d",
			f.Title, f.Contributions,
		)
	}

	return nil
}

func DecodeSubmissions(data []byte) ([]SubmissionItem, error) {
	var items []SubmissionItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, malformedf("decode submissions: %v", err)
	}

	return items, nil
}

func DecodeFunding(data []byte) ([]FundingItem, error) {
	var items []FundingItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, malformedf("decode funding: %v", err)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	return items, nil
}
