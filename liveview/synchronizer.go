package liveview

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

const (
	DefaultSwapDelay   = 450 * time.Millisecond
	DefaultFundingUnit = "XMR"

	bounceEffect = "bounce"
	priceDataKey = "price"
)

// Views are the regions the synchronizer renders into.
type Views struct {
	Price       domain.Element
	Change      domain.Element
	Submissions domain.Element
	Funding     domain.Element
}

type Options struct {
	// Series lists the charted series in dataset order; Series[0] is the
	// primary asset.
	Series      []string
	SwapDelay   time.Duration
	FundingUnit string
}

// Synchronizer keeps the views in step with the latest graph, submissions
// and funding messages. Its state is owned by the event loop: handlers and
// posted continuations must run on the same goroutine.
type Synchronizer struct {
	log        logger.Logger
	chart      domain.Chart
	views      Views
	dispatcher domain.Dispatcher
	scheduler  Scheduler

	series      []string
	swapDelay   time.Duration
	fundingUnit string

	pending     Timer
	generation  uint64
	submissions []domain.SubmissionItem
}

func New(
	chart domain.Chart,
	views Views,
	dispatcher domain.Dispatcher,
	opts Options,
) *Synchronizer {
	if opts.SwapDelay <= 0 {
		opts.SwapDelay = DefaultSwapDelay
	}
	if opts.FundingUnit == "" {
		opts.FundingUnit = DefaultFundingUnit
	}

	return &Synchronizer{
		log:         logger.DefaultLogger,
		chart:       chart,
		views:       views,
		dispatcher:  dispatcher,
		scheduler:   wallClock{},
		series:      opts.Series,
		swapDelay:   opts.SwapDelay,
		fundingUnit: opts.FundingUnit,
	}
}

func (s *Synchronizer) WithLogger(lg logger.Logger) *Synchronizer {
	s.log = lg
	return s
}

func (s *Synchronizer) WithScheduler(sc Scheduler) *Synchronizer {
	s.scheduler = sc
	return s
}

// Subscribe registers the raw payload handlers for the three live event
// kinds.
func (s *Synchronizer) Subscribe(broker domain.EventsBroker) {
	broker.Subscribe(domain.EvTypeGraph, s.HandleGraph)
	broker.Subscribe(domain.EvTypeSubmissions, s.HandleSubmissions)
	broker.Subscribe(domain.EvTypeFunding, s.HandleFunding)
}

func (s *Synchronizer) HandleGraph(e *domain.Event) error {
	msg, err := domain.DecodeGraph(e.Data(), s.series)
	if err != nil {
		return errors.Wrap(err, "skip graph message")
	}
	s.OnGraphUpdate(msg)

	return nil
}

func (s *Synchronizer) HandleSubmissions(e *domain.Event) error {
	items, err := domain.DecodeSubmissions(e.Data())
	if err != nil {
		return errors.Wrap(err, "skip submissions message")
	}
	s.OnSubmissionsUpdate(items)

	return nil
}

func (s *Synchronizer) HandleFunding(e *domain.Event) error {
	items, err := domain.DecodeFunding(e.Data())
	if err != nil {
		return errors.Wrap(err, "skip funding message")
	}
	s.OnFundingUpdate(items)

	return nil
}

func (s *Synchronizer) primary() string {
	if len(s.series) == 0 {
		return ""
	}

	return s.series[0]
}

// OnGraphUpdate replaces the chart axis and series, then animates the price
// and change regions if the primary price moved.
func (s *Synchronizer) OnGraphUpdate(msg domain.GraphMessage) {
	primary := msg.Get(s.primary())

	s.chart.SetLabels(primary.Labels())
	for _, name := range s.series {
		s.chart.SetData(name, msg.Get(name).Value)
	}
	s.chart.Update()

	if s.priceShown(msg.Price.Value) {
		return
	}
	s.views.Price.SetData(priceDataKey, msg.Price.Value.String())

	s.views.Price.Animate(bounceEffect)
	s.views.Change.Animate(bounceEffect)

	baseline, ok := primary.Baseline()
	s.scheduleSwap(msg.Price, baseline, ok)
}

// priceShown reports whether v is the price currently displayed.
func (s *Synchronizer) priceShown(v decimal.Decimal) bool {
	shown := s.views.Price.Data(priceDataKey)
	if shown == "" {
		return false
	}
	prev, err := decimal.NewFromString(shown)
	if err != nil {
		return false
	}

	return prev.Equal(v)
}

// scheduleSwap replaces any pending swap with a new one. A stale
// continuation that already left its timer is dropped by the generation
// check.
func (s *Synchronizer) scheduleSwap(price domain.Price, baseline decimal.Decimal, ok bool) {
	if s.pending != nil {
		s.pending.Stop()
	}
	s.generation++
	gen := s.generation

	s.pending = s.scheduler.AfterFunc(s.swapDelay, func() {
		s.dispatcher.Post(func() {
			if gen != s.generation {
				return
			}
			s.pending = nil
			s.swap(price, baseline, ok)
		})
	})
}

func (s *Synchronizer) swap(price domain.Price, baseline decimal.Decimal, ok bool) {
	s.views.Price.SetContent(domain.Text(price.Symbol + FormatFiat(price.Value)))

	dir := PriceDirection(price.Value, baseline, ok)
	s.views.Change.SetContent(RenderChange(dir, PercentChange(price.Value, baseline, ok))...)
	s.views.Change.SetClass(dir.Class())
}

// OnSubmissionsUpdate replaces the submissions region.
func (s *Synchronizer) OnSubmissionsUpdate(items []domain.SubmissionItem) {
	s.submissions = append([]domain.SubmissionItem(nil), items...)
	s.renderSubmissions()
}

// RefreshSubmissions re-renders the last submissions so relative times stay
// current.
func (s *Synchronizer) RefreshSubmissions() {
	if s.submissions == nil {
		return
	}
	s.renderSubmissions()
}

func (s *Synchronizer) renderSubmissions() {
	s.views.Submissions.SetContent(RenderSubmissions(s.submissions, timeNow())...)
}

// OnFundingUpdate replaces the funding region.
func (s *Synchronizer) OnFundingUpdate(items []domain.FundingItem) {
	s.views.Funding.SetContent(RenderFunding(items, s.fundingUnit)...)
}
