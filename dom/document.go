package dom

import (
	"sort"
	"sync"

	"bitbucket.org/novatechnologies/liveview/domain"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

var _ domain.Element = new(Element)

// Document owns the rendered view regions. Elements are created on first
// lookup and mutated by the synchronizer; readers take snapshots.
type Document struct {
	mu        sync.RWMutex
	elements  map[string]*Element
	observers []domain.ViewObserver
	log       logger.Logger
}

// ElementState is a point-in-time copy of an element.
type ElementState struct {
	ID         string            `json:"id"`
	Dataset    map[string]string `json:"dataset,omitempty"`
	HTML       string            `json:"html"`
	Class      string            `json:"class,omitempty"`
	Animations int               `json:"animations"`
	LastEffect string            `json:"lastEffect,omitempty"`
	Revision   uint64            `json:"revision"`
}

func NewDocument() *Document {
	return &Document{
		elements: make(map[string]*Element),
		log:      logger.DefaultLogger,
	}
}

func (d *Document) WithLogger(lg logger.Logger) *Document {
	d.log = lg
	return d
}

// Observe registers o for every later mutation. Call before the document is
// shared.
func (d *Document) Observe(o domain.ViewObserver) {
	d.observers = append(d.observers, o)
}

// Element returns the element with id, creating it if needed.
func (d *Document) Element(id string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[id]
	if !ok {
		el = &Element{doc: d, id: id, dataset: map[string]string{}}
		d.elements[id] = el
	}

	return el
}

// Lookup returns the state of an existing element.
func (d *Document) Lookup(id string) (ElementState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	el, ok := d.elements[id]
	if !ok {
		return ElementState{}, false
	}

	return el.state(), true
}

// Snapshot returns the state of every element ordered by id.
func (d *Document) Snapshot() []ElementState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	states := make([]ElementState, 0, len(d.elements))
	for _, el := range d.elements {
		states = append(states, el.state())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].ID < states[j].ID
	})

	return states
}

func (d *Document) notify(u domain.RegionUpdate) {
	for _, o := range d.observers {
		o.OnRegionUpdate(u)
	}
}

// Element is a single view region. All methods are safe for concurrent use.
type Element struct {
	doc        *Document
	id         string
	dataset    map[string]string
	content    []domain.Node
	html       string
	class      string
	animations int
	lastEffect string
	revision   uint64
}

func (e *Element) ID() string {
	return e.id
}

func (e *Element) Data(key string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	return e.dataset[key]
}

func (e *Element) SetData(key, value string) {
	e.doc.mu.Lock()
	e.dataset[key] = value
	e.revision++
	u := domain.RegionUpdate{
		Region:   e.id,
		Op:       domain.OpData,
		Key:      key,
		Value:    value,
		Revision: e.revision,
	}
	e.doc.mu.Unlock()

	e.doc.notify(u)
}

// SetContent replaces the inner content with nodes.
func (e *Element) SetContent(nodes ...domain.Node) {
	rendered, err := RenderHTML(nodes...)
	if err != nil {
		e.doc.log.WithField("element", e.id).Errorf("Can't render content: %v", err)
		return
	}

	e.doc.mu.Lock()
	e.content = append([]domain.Node(nil), nodes...)
	e.html = rendered
	e.revision++
	u := domain.RegionUpdate{
		Region:   e.id,
		Op:       domain.OpContent,
		HTML:     rendered,
		Revision: e.revision,
	}
	e.doc.mu.Unlock()

	e.doc.notify(u)
}

func (e *Element) SetClass(class string) {
	e.doc.mu.Lock()
	e.class = class
	e.revision++
	u := domain.RegionUpdate{
		Region:   e.id,
		Op:       domain.OpClass,
		Class:    class,
		Revision: e.revision,
	}
	e.doc.mu.Unlock()

	e.doc.notify(u)
}

// Animate triggers a named visual transition on the element.
func (e *Element) Animate(effect string) {
	e.doc.mu.Lock()
	e.animations++
	e.lastEffect = effect
	e.revision++
	u := domain.RegionUpdate{
		Region:   e.id,
		Op:       domain.OpAnimate,
		Effect:   effect,
		Revision: e.revision,
	}
	e.doc.mu.Unlock()

	e.doc.notify(u)
}

// Content returns a copy of the current inner nodes.
func (e *Element) Content() []domain.Node {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	return append([]domain.Node(nil), e.content...)
}

func (e *Element) State() ElementState {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	return e.state()
}

func (e *Element) state() ElementState {
	dataset := make(map[string]string, len(e.dataset))
	for k, v := range e.dataset {
		dataset[k] = v
	}

	return ElementState{
		ID:         e.id,
		Dataset:    dataset,
		HTML:       e.html,
		Class:      e.class,
		Animations: e.animations,
		LastEffect: e.lastEffect,
		Revision:   e.revision,
	}
}
