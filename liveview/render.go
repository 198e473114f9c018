package liveview

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"bitbucket.org/novatechnologies/liveview/domain"
)

func attrs(kv ...string) []domain.Attr {
	out := make([]domain.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, domain.Attr{Key: kv[i], Val: kv[i+1]})
	}

	return out
}

func link(href, title string) domain.Node {
	return domain.El("a", attrs("href", href, "target", "_blank"), domain.Text(title))
}

// RelativeTime renders t relative to now, e.g. "5 minutes ago".
func RelativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// RenderSubmissions renders one story block per item in received order.
func RenderSubmissions(items []domain.SubmissionItem, now time.Time) []domain.Node {
	nodes := make([]domain.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, domain.El("div", attrs("class", "story"),
			domain.El("span", attrs("class", "source"), domain.Text(item.Source)),
			domain.Text(" \u00a0"),
			domain.El("small", nil, domain.Text(RelativeTime(item.At(), now))),
			domain.El("br", nil),
			link(item.URL, item.Title),
		))
	}

	return nodes
}

// Progress is the bounded progress state of a funding project.
type Progress struct {
	Value decimal.Decimal
	Max   decimal.Decimal
	// Ratio is Value/Max clamped to [0, 1].
	Ratio decimal.Decimal
	// Degenerate is set when Max is not positive and the ratio is undefined.
	Degenerate bool
}

func FundingProgress(item domain.FundingItem) Progress {
	if !item.Total.IsPositive() {
		return Progress{
			Value:      decimal.Zero,
			Max:        one,
			Ratio:      decimal.Zero,
			Degenerate: true,
		}
	}

	ratio := item.Current.Div(item.Total)
	if ratio.IsNegative() {
		ratio = decimal.Zero
	}
	if ratio.GreaterThan(one) {
		ratio = one
	}

	return Progress{
		Value: item.Current,
		Max:   item.Total,
		Ratio: ratio,
	}
}

func meter(item domain.FundingItem) domain.Node {
	p := FundingProgress(item)
	if p.Degenerate {
		return domain.El("meter",
			attrs("min", "0", "max", "1", "low", "1", "value", "0"),
			domain.Text(item.Current.String()),
		)
	}

	return domain.El("meter",
		attrs("low", p.Max.String(), "max", p.Max.String(), "value", p.Value.String()),
		domain.Text(item.Current.String()),
	)
}

// RenderFunding renders one project block per item in received order.
func RenderFunding(items []domain.FundingItem, unit string) []domain.Node {
	nodes := make([]domain.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, domain.El("div", attrs("class", "project"),
			link(item.URL, item.Title),
			domain.El("br", nil),
			meter(item),
			domain.El("small", nil, domain.Text(
				fundingSummary(item.Current, item.Total, unit, item.Contributions),
			)),
		))
	}

	return nodes
}

// RenderChange renders the direction icon followed by the percent change.
func RenderChange(dir Direction, percent string) []domain.Node {
	text := " " + percent + "%"
	if percent == percentUnavailable {
		text = " " + percent
	}

	return []domain.Node{
		domain.El("i", attrs("class", dir.Icon())),
		domain.Text(text),
	}
}
