package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-http-utils/headers"
	"github.com/gorilla/mux"

	"bitbucket.org/novatechnologies/liveview/chart"
	"bitbucket.org/novatechnologies/liveview/dom"
	"bitbucket.org/novatechnologies/liveview/infra/logger"
)

const RegionVar = "region"

// Snapshot is the whole rendered state: every region and the chart.
type Snapshot struct {
	Regions []dom.ElementState `json:"regions"`
	Chart   chart.Data         `json:"chart"`
}

type ViewsHandler struct {
	doc   *dom.Document
	chart *chart.LineChart
}

func NewViewsHandler(doc *dom.Document, c *chart.LineChart) *ViewsHandler {
	return &ViewsHandler{doc: doc, chart: c}
}

func (h ViewsHandler) Snapshot() Snapshot {
	return Snapshot{
		Regions: h.doc.Snapshot(),
		Chart:   h.chart.Snapshot(),
	}
}

func (h ViewsHandler) GetViews(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, req, h.Snapshot())
}

// GetRegion writes the HTML fragment of one region.
func (h ViewsHandler) GetRegion(res http.ResponseWriter, req *http.Request) {
	region := mux.Vars(req)[RegionVar]

	state, ok := h.doc.Lookup(region)
	if !ok {
		http.Error(res, fmt.Sprintf("unknown region %q", region), http.StatusNotFound)
		return
	}

	res.Header().Set(headers.ContentType, "text/html; charset=utf-8")
	_, _ = io.WriteString(res, state.HTML)
}

func (h ViewsHandler) GetChart(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, req, h.chart.Snapshot())
}

func Health(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, req, map[string]string{"status": "ok"})
}

func writeJSON(res http.ResponseWriter, req *http.Request, v interface{}) {
	marshal, err := json.Marshal(v)
	if err != nil {
		logger.FromContext(req.Context()).
			WithField("path", req.URL.Path).
			Errorf("Can't marshal response: %v", err)
		http.Error(res, "internal error", http.StatusInternalServerError)
		return
	}

	res.Header().Set(headers.ContentType, "application/json")
	_, _ = res.Write(marshal)
}
