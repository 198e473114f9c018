package domain

import "context"

type EventType = string

const (
	EvTypeGraph       = "graph"
	EvTypeSubmissions = "submissions"
	EvTypeFunding     = "funding"
)

// GetLiveEventTypes returns the event kinds the views are rendered from.
func GetLiveEventTypes() []EventType {
	return []EventType{
		EvTypeGraph,
		EvTypeSubmissions,
		EvTypeFunding,
	}
}

const (
	MetaSource  = "source"
	MetaEventID = "id"
)

type EventHandler = func(m *Event) error

// EventsBroker describes abstract pub-sub messaging system for internal events
// among components. Each event can contain payload and meta info, so they can
// be used not for notification purposes only.
type EventsBroker interface {
	Subscribe(tp EventType, h EventHandler)
	Publish(tp EventType, data *Event)
}

// Dispatcher queues a continuation onto the goroutine that runs event
// handlers, so it never interleaves with one.
type Dispatcher interface {
	Post(fn func())
}

type (
	meta  map[string]string
	Event struct {
		Ctx     context.Context
		payload []byte
		meta    meta
	}
)

func NewEvent(ctx context.Context, data []byte) *Event {
	if ctx == nil {
		ctx = context.Background()
	}

	return &Event{
		payload: data,
		Ctx:     ctx,
		meta:    nil,
	}
}

func (m *Event) WithMetaKV(key, value string) *Event {
	if m.meta == nil {
		m.meta = make(meta)
	}
	m.meta[key] = value

	return m
}

func (m *Event) WithMeta(meta meta) *Event {
	if m.meta == nil {
		m.meta = meta
		return m
	}

	for k, v := range meta {
		m.meta[k] = v
	}

	return m
}

func (m *Event) GetMeta(key string) string {
	if m.meta == nil {
		return ""
	}

	return m.meta[key]
}

func (m *Event) Data() []byte {
	return m.payload
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Post(fn func()) {
	f(fn)
}
