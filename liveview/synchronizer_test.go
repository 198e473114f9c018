package liveview

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/novatechnologies/liveview/chart"
	"bitbucket.org/novatechnologies/liveview/dom"
	"bitbucket.org/novatechnologies/liveview/domain"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// fire runs every timer that was not stopped.
func (s *fakeScheduler) fire() {
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.fn()
		}
	}
}

type fixture struct {
	sync  *Synchronizer
	doc   *dom.Document
	chart *chart.LineChart
	clock *fakeScheduler
}

func newFixture() *fixture {
	doc := dom.NewDocument()
	c := chart.NewLineChart(chart.DefaultSeries())
	clock := &fakeScheduler{}
	s := New(c, Views{
		Price:       doc.Element(domain.RegionPrice),
		Change:      doc.Element(domain.RegionChange),
		Submissions: doc.Element(domain.RegionSubmissions),
		Funding:     doc.Element(domain.RegionFunding),
	}, domain.DispatcherFunc(func(fn func()) { fn() }), Options{
		Series: chart.Names(chart.DefaultSeries()),
	}).WithScheduler(clock)

	return &fixture{sync: s, doc: doc, chart: c, clock: clock}
}

func (f *fixture) state(id string) dom.ElementState {
	s, _ := f.doc.Lookup(id)
	return s
}

func graph(price int64, xmr ...int64) domain.GraphMessage {
	t0 := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	series := func(v ...int64) domain.Series {
		s := domain.Series{}
		for i, x := range v {
			s.Time = append(s.Time, domain.Timestamp{Time: t0.Add(time.Duration(i) * time.Hour)})
			s.Value = append(s.Value, decimal.NewFromInt(x))
		}
		return s
	}
	btc := make([]int64, len(xmr))
	eth := make([]int64, len(xmr))
	for i := range xmr {
		btc[i] = 30000 + int64(i)
		eth[i] = 1500 + int64(i)
	}

	return domain.GraphMessage{
		Series: map[string]domain.Series{
			"XMR": series(xmr...),
			"BTC": series(btc...),
			"ETH": series(eth...),
		},
		Price: domain.Price{Symbol: "$", Value: decimal.NewFromInt(price)},
	}
}

func TestSynchronizer_OnGraphUpdate(t *testing.T) {
	t.Run("price up", func(t *testing.T) {
		f := newFixture()
		f.sync.OnGraphUpdate(graph(300, 250, 260, 280))

		data := f.chart.Snapshot()
		assert.Equal(t, uint64(1), data.Revision)
		assert.Len(t, data.Labels, 3)
		assert.Equal(t, "280", data.Datasets[0].Data[2].String())
		assert.Equal(t, "30002", data.Datasets[1].Data[2].String())

		price := f.state(domain.RegionPrice)
		assert.Equal(t, "300", price.Dataset["price"])
		assert.Equal(t, 1, price.Animations)
		assert.Equal(t, "bounce", price.LastEffect)
		assert.Equal(t, 1, f.state(domain.RegionChange).Animations)
		assert.Equal(t, "", price.HTML, "text is swapped only after the delay")

		require.Len(t, f.clock.timers, 1)
		assert.Equal(t, DefaultSwapDelay, f.clock.timers[0].delay)
		f.clock.fire()

		assert.Equal(t, "$300.00", f.state(domain.RegionPrice).HTML)
		change := f.state(domain.RegionChange)
		assert.Equal(t, `<i class="fa fa-level-up text-green"></i> 20.00%`, change.HTML)
		assert.Equal(t, "text-green", change.Class)
	})
	t.Run("price down", func(t *testing.T) {
		f := newFixture()
		f.sync.OnGraphUpdate(graph(200, 250, 240))
		f.clock.fire()

		assert.Equal(t, "$200.00", f.state(domain.RegionPrice).HTML)
		change := f.state(domain.RegionChange)
		assert.Equal(t, `<i class="fa fa-level-down text-red"></i> 20.00%`, change.HTML)
		assert.Equal(t, "text-red", change.Class)
	})
	t.Run("unchanged price does nothing", func(t *testing.T) {
		f := newFixture()
		f.sync.OnGraphUpdate(graph(300, 250))
		f.clock.fire()
		before := f.state(domain.RegionPrice)
		beforeChange := f.state(domain.RegionChange)

		f.sync.OnGraphUpdate(graph(300, 250, 999))

		assert.Equal(t, before, f.state(domain.RegionPrice))
		assert.Equal(t, beforeChange, f.state(domain.RegionChange))
		assert.Len(t, f.clock.timers, 1)
		assert.Equal(t, uint64(2), f.chart.Snapshot().Revision, "chart still follows the message")
	})
	t.Run("equal decimals with other scale", func(t *testing.T) {
		f := newFixture()
		f.sync.OnGraphUpdate(graph(300, 250))
		msg := graph(300, 250)
		msg.Price.Value = decimal.RequireFromString("300.00")
		f.sync.OnGraphUpdate(msg)

		assert.Equal(t, 1, f.state(domain.RegionPrice).Animations)
	})
	t.Run("empty series", func(t *testing.T) {
		f := newFixture()
		f.sync.OnGraphUpdate(domain.GraphMessage{
			Price: domain.Price{Symbol: "$", Value: decimal.NewFromInt(5)},
		})
		f.clock.fire()

		data := f.chart.Snapshot()
		assert.Empty(t, data.Labels)
		for _, ds := range data.Datasets {
			assert.Empty(t, ds.Data)
		}
		assert.Equal(t, "$5.00", f.state(domain.RegionPrice).HTML)
		assert.Equal(t, `<i class="fa fa-level-up text-green"></i> n/a`, f.state(domain.RegionChange).HTML)
	})
	t.Run("zero baseline", func(t *testing.T) {
		f := newFixture()
		f.sync.OnGraphUpdate(graph(5, 0, 1))
		f.clock.fire()

		assert.Equal(t, `<i class="fa fa-level-up text-green"></i> n/a`, f.state(domain.RegionChange).HTML)
	})
}

func TestSynchronizer_Idempotent(t *testing.T) {
	visible := func(f *fixture) []dom.ElementState {
		states := f.doc.Snapshot()
		for i := range states {
			states[i].Revision = 0
		}
		return states
	}

	f := newFixture()
	msg := graph(300, 250, 275)
	f.sync.OnGraphUpdate(msg)
	f.clock.fire()
	first := visible(f)
	firstChart := f.chart.Snapshot().Datasets

	f.sync.OnGraphUpdate(msg)
	f.clock.fire()

	assert.Equal(t, first, visible(f))
	assert.Equal(t, firstChart, f.chart.Snapshot().Datasets)
}

func TestSynchronizer_SupersededSwap(t *testing.T) {
	f := newFixture()
	f.sync.OnGraphUpdate(graph(300, 250))
	f.sync.OnGraphUpdate(graph(200, 250))

	require.Len(t, f.clock.timers, 2)
	assert.True(t, f.clock.timers[0].stopped)

	f.clock.fire()
	assert.Equal(t, "$200.00", f.state(domain.RegionPrice).HTML)
	assert.Equal(t, "text-red", f.state(domain.RegionChange).Class)
	assert.Equal(t, 2, f.state(domain.RegionPrice).Animations)
}

func TestSynchronizer_StaleContinuationIgnored(t *testing.T) {
	f := newFixture()
	f.sync.OnGraphUpdate(graph(300, 250))
	stale := f.clock.timers[0]

	f.sync.OnGraphUpdate(graph(200, 250))
	// the first timer already fired before it could be stopped
	stale.fn()
	assert.Equal(t, "", f.state(domain.RegionPrice).HTML)

	f.clock.fire()
	assert.Equal(t, "$200.00", f.state(domain.RegionPrice).HTML)
}

func TestSynchronizer_OnSubmissionsUpdate(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	f := newFixture()
	f.sync.OnSubmissionsUpdate([]domain.SubmissionItem{
		{Source: "reddit", Time: now.Add(-5 * time.Minute).Unix(), URL: "https://example.com/1", Title: "First"},
		{Source: "forum", Time: now.Add(-2 * time.Hour).Unix(), URL: "https://example.com/2", Title: "Second"},
	})

	assert.Equal(t,
		`<div class="story"><span class="source">reddit</span> `+"\u00a0"+`<small>5 minutes ago</small><br/><a href="https://example.com/1" target="_blank">First</a></div>`+
			`<div class="story"><span class="source">forum</span> `+"\u00a0"+`<small>2 hours ago</small><br/><a href="https://example.com/2" target="_blank">Second</a></div>`,
		f.state(domain.RegionSubmissions).HTML,
	)

	now = now.Add(time.Hour)
	f.sync.RefreshSubmissions()
	assert.Contains(t, f.state(domain.RegionSubmissions).HTML, "1 hour ago")
	assert.Contains(t, f.state(domain.RegionSubmissions).HTML, "3 hours ago")

	f.sync.OnSubmissionsUpdate(nil)
	assert.Equal(t, "", f.state(domain.RegionSubmissions).HTML)
}

func TestSynchronizer_OnFundingUpdate(t *testing.T) {
	f := newFixture()
	f.sync.OnFundingUpdate([]domain.FundingItem{
		{Title: "Node", URL: "https://example.com/n", Current: decimal.NewFromInt(50), Total: decimal.NewFromInt(100), Contributions: 3},
		{Title: "Empty", URL: "https://example.com/e", Current: decimal.Zero, Total: decimal.Zero, Contributions: 0},
	})

	assert.Equal(t,
		`<div class="project"><a href="https://example.com/n" target="_blank">Node</a><br/><meter low="100" max="100" value="50">50</meter><small>50.00 / 100.00 XMR - 3 contributions</small></div>`+
			`<div class="project"><a href="https://example.com/e" target="_blank">Empty</a><br/><meter min="0" max="1" low="1" value="0">0</meter><small>0.00 / 0.00 XMR - 0 contributions</small></div>`,
		f.state(domain.RegionFunding).HTML,
	)

	f.sync.OnFundingUpdate(nil)
	assert.Equal(t, "", f.state(domain.RegionFunding).HTML)
}

func TestSynchronizer_HandleMalformed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(*domain.Event) error
		payload string
	}{
		{name: "graph", handler: f.sync.HandleGraph, payload: `{"XMR": {"Time": [1], "Value": []}, "Price": {"Symbol": "$", "Value": 1}}`},
		{name: "graph without price", handler: f.sync.HandleGraph, payload: `{"XMR": {"Time": [1, 2], "Value": [250, 260]}}`},
		{name: "graph without price value", handler: f.sync.HandleGraph, payload: `{"XMR": {"Time": [1], "Value": [250]}, "Price": {"Symbol": "$"}}`},
		{name: "graph off axis", handler: f.sync.HandleGraph, payload: `{
			"XMR": {"Time": [1, 2], "Value": [250, 260]},
			"BTC": {"Time": [5, 9], "Value": [1, 2]},
			"Price": {"Symbol": "$", "Value": 1}
		}`},
		{name: "submissions", handler: f.sync.HandleSubmissions, payload: `not json`},
		{name: "empty submission", handler: f.sync.HandleSubmissions, payload: `[{}]`},
		{name: "funding", handler: f.sync.HandleFunding, payload: `[{"Title": "x", "URL": "u", "Current": 1, "Total": 2, "Contributions": -2}]`},
		{name: "empty funding", handler: f.sync.HandleFunding, payload: `[{}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.handler(domain.NewEvent(ctx, []byte(tt.payload)))
			require.Error(t, err)
			assert.True(t, domain.IsMalformed(err))
		})
	}

	for _, s := range f.doc.Snapshot() {
		assert.Equal(t, uint64(0), s.Revision, fmt.Sprintf("%s was touched", s.ID))
	}
}

func TestSynchronizer_HandleGraph(t *testing.T) {
	f := newFixture()
	err := f.sync.HandleGraph(domain.NewEvent(context.Background(), []byte(`{
		"XMR": {"Time": [1614556800, 1614560400], "Value": [250, 260]},
		"BTC": {"Time": [1614556800, 1614560400], "Value": [1, 2]},
		"ETH": {"Time": [1614556800, 1614560400], "Value": [3, 4]},
		"Price": {"Symbol": "$", "Value": "1234.5"}
	}`)))
	require.NoError(t, err)
	f.clock.fire()

	assert.Equal(t, "$1,234.50", f.state(domain.RegionPrice).HTML)
	assert.Equal(t, "text-green", f.state(domain.RegionChange).Class)
}

func TestSynchronizer_MissingPriceKeepsDisplay(t *testing.T) {
	f := newFixture()
	f.sync.OnGraphUpdate(graph(300, 250, 260))
	f.clock.fire()
	price := f.state(domain.RegionPrice)
	change := f.state(domain.RegionChange)

	err := f.sync.HandleGraph(domain.NewEvent(context.Background(), []byte(
		`{"XMR": {"Time": [1, 2], "Value": [250, 260]}}`,
	)))
	require.Error(t, err)
	f.clock.fire()

	assert.Equal(t, price, f.state(domain.RegionPrice))
	assert.Equal(t, change, f.state(domain.RegionChange))
	assert.Equal(t, "$300.00", f.state(domain.RegionPrice).HTML)
	assert.Equal(t, "text-green", f.state(domain.RegionChange).Class)
}
