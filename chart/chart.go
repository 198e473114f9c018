package chart

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

var _ domain.Chart = new(LineChart)

const placeholderPoints = 48

type Dataset struct {
	Label           string            `json:"label"`
	YAxisID         string            `json:"yAxisID"`
	Data            []decimal.Decimal `json:"data"`
	BorderColor     string            `json:"borderColor"`
	BackgroundColor string            `json:"backgroundColor"`
	PointRadius     int               `json:"pointRadius"`
}

// Data is what a chart widget needs to draw: the label axis and datasets.
type Data struct {
	Labels   []interface{} `json:"labels"`
	Datasets []Dataset     `json:"datasets"`
	Revision uint64        `json:"revision"`
}

// LineChart is the in-memory model behind the graph widget. Mutations are
// staged with SetLabels/SetData and published by Update.
type LineChart struct {
	mu        sync.RWMutex
	labels    []interface{}
	datasets  []Dataset
	index     map[string]int
	revision  uint64
	observers []domain.ViewObserver
	log       logger.Logger
}

// NewLineChart builds a chart with one dataset per definition, filled with
// placeholder points until the first update arrives.
func NewLineChart(defs []SeriesDef) *LineChart {
	c := &LineChart{
		labels:   make([]interface{}, placeholderPoints),
		datasets: make([]Dataset, len(defs)),
		index:    make(map[string]int, len(defs)),
		log:      logger.DefaultLogger,
	}
	for i := range c.labels {
		c.labels[i] = i
	}
	for i, def := range defs {
		data := make([]decimal.Decimal, placeholderPoints)
		for j := range data {
			data[j] = decimal.NewFromInt(1)
		}
		c.datasets[i] = Dataset{
			Label:           def.Name,
			YAxisID:         def.Name,
			Data:            data,
			BorderColor:     def.Color,
			BackgroundColor: def.Color,
		}
		c.index[def.Name] = i
	}

	return c
}

func (c *LineChart) WithLogger(lg logger.Logger) *LineChart {
	c.log = lg
	return c
}

// Observe registers o for every later Update.
func (c *LineChart) Observe(o domain.ViewObserver) {
	c.observers = append(c.observers, o)
}

func (c *LineChart) SetLabels(labels []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.labels = make([]interface{}, len(labels))
	for i, l := range labels {
		c.labels[i] = l.UTC().Format(time.RFC3339)
	}
}

// SetData replaces the data of the named dataset. Unknown names are ignored.
func (c *LineChart) SetData(series string, data []decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[series]
	if !ok {
		c.log.WithField("series", series).Debugf("Unknown chart series")
		return
	}
	c.datasets[i].Data = append([]decimal.Decimal{}, data...)
}

// Update publishes the staged data as a new revision.
func (c *LineChart) Update() {
	c.mu.Lock()
	c.revision++
	snapshot := c.snapshot()
	c.mu.Unlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		c.log.Errorf("Can't marshal chart: %v", err)
		return
	}
	u := domain.RegionUpdate{
		Region:   domain.RegionGraph,
		Op:       domain.OpChart,
		Chart:    payload,
		Revision: snapshot.Revision,
	}
	for _, o := range c.observers {
		o.OnRegionUpdate(u)
	}
}

// Snapshot returns a deep copy of the current chart data.
func (c *LineChart) Snapshot() Data {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshot()
}

func (c *LineChart) snapshot() Data {
	datasets := make([]Dataset, len(c.datasets))
	for i, ds := range c.datasets {
		ds.Data = append([]decimal.Decimal{}, ds.Data...)
		datasets[i] = ds
	}

	return Data{
		Labels:   append([]interface{}{}, c.labels...),
		Datasets: datasets,
		Revision: c.revision,
	}
}
