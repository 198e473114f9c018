package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/novatechnologies/liveview/api/http/handler"
	"bitbucket.org/novatechnologies/liveview/chart"
	"bitbucket.org/novatechnologies/liveview/dom"
	"bitbucket.org/novatechnologies/liveview/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *dom.Document) {
	t.Helper()

	doc := dom.NewDocument()
	doc.Element(domain.RegionPrice).SetContent(domain.Text("$300.00"))
	doc.Element(domain.RegionChange).SetClass("text-green")

	c := chart.NewLineChart(chart.DefaultSeries())
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	srv := httptest.NewServer(NewRouter(handler.NewViewsHandler(doc, c), ws))
	t.Cleanup(srv.Close)

	return srv, doc
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRouter_Views(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/views")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snapshot handler.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snapshot))
	require.Len(t, snapshot.Regions, 2)
	assert.Equal(t, domain.RegionChange, snapshot.Regions[0].ID)
	assert.Equal(t, "text-green", snapshot.Regions[0].Class)
	assert.Equal(t, "$300.00", snapshot.Regions[1].HTML)
	assert.Len(t, snapshot.Chart.Datasets, 3)
}

func TestRouter_Region(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/views/price")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "$300.00", body)

	resp, _ = get(t, srv.URL+"/api/views/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Chart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/chart")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data chart.Data
	require.NoError(t, json.Unmarshal([]byte(body), &data))
	assert.Len(t, data.Labels, 48)
	assert.Equal(t, "XMR", data.Datasets[0].Label)
	assert.Equal(t, "#C95B55", data.Datasets[0].BorderColor)
}

func TestRouter_Routes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+"/ws")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	resp, err := http.Post(srv.URL+"/api/views", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
