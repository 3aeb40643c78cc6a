package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GESkunkworks/dependr"
	"github.com/GESkunkworks/dependr/pce"
)

var testNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

var testLabels = []pce.Label{
	{Href: "/orgs/1/labels/1", Key: "app", Value: "web"},
	{Href: "/orgs/1/labels/2", Key: "app", Value: "db"},
	{Href: "/orgs/1/labels/3", Key: "env", Value: "prod"},
}

func workload(name string, hrefs ...string) *pce.Workload {
	w := &pce.Workload{Href: "/orgs/1/workloads/" + name, Name: name}
	for _, h := range hrefs {
		w.Labels = append(w.Labels, pce.Href{Href: h})
	}
	return w
}

func testFlows() []pce.TrafficFlow {
	web := workload("web1", "/orgs/1/labels/1", "/orgs/1/labels/3")
	web2 := workload("web2", "/orgs/1/labels/1", "/orgs/1/labels/3")
	db := workload("db1", "/orgs/1/labels/2", "/orgs/1/labels/3")
	return []pce.TrafficFlow{
		{Src: pce.Endpoint{IP: "10.0.0.1", Workload: web}, Dst: pce.Endpoint{IP: "10.0.1.1", Workload: db}, Service: pce.Service{Port: 5432, Proto: 6}, PolicyDecision: pce.DecisionAllowed},
		{Src: pce.Endpoint{IP: "10.0.0.1", Workload: web}, Dst: pce.Endpoint{IP: "10.0.0.2", Workload: web2}, Service: pce.Service{Port: 443, Proto: 6}, PolicyDecision: pce.DecisionBlocked},
	}
}

type fakeSource struct {
	healthy bool
	flows   []pce.TrafficFlow
	query   *pce.TrafficQuery
}

func (f *fakeSource) CheckConnection(ctx context.Context) (bool, error) {
	return f.healthy, nil
}

func (f *fakeSource) Labels(ctx context.Context) ([]pce.Label, error) {
	return testLabels, nil
}

func (f *fakeSource) TrafficFlows(ctx context.Context, name string, q *pce.TrafficQuery) ([]pce.TrafficFlow, error) {
	f.query = q
	return f.flows, nil
}

type fakeSink struct {
	name        string
	contentType string
	body        []byte
}

func (f *fakeSink) Put(ctx context.Context, name, contentType string, body []byte) (string, error) {
	f.name, f.contentType, f.body = name, contentType, body
	return "https://reports.example.com/" + name + "?signed", nil
}

type fixture struct {
	handler http.Handler
	source  *fakeSource
	sink    *fakeSink
	pceCfg  pce.Config
}

func newFixture(t *testing.T, src *fakeSource) *fixture {
	t.Helper()
	quiet := log15.New()
	quiet.SetHandler(log15.DiscardHandler())

	f := &fixture{source: src, sink: &fakeSink{}}
	cfg := &Config{ListenAddr: ":0", S3BucketName: "reports", LookbackDays: 30, QueryLimit: 1000}
	s := New(cfg, f.sink,
		WithLogger(quiet),
		WithClock(func() time.Time { return testNow }),
		WithRequestID(func() string { return "abc" }),
		WithSourceFactory(func(c pce.Config, _ log15.Logger) (dependr.FlowSource, error) {
			f.pceCfg = c
			return f.source, nil
		}),
	)
	f.handler = s.Handler()
	return f
}

func (f *fixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graph", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const validBody = `{"pce_host": "pce.example.com", "port": "8443", "org_id": 1, "api_key": "api_123", "api_secret": "s3cr3t"}`

func TestGraph(t *testing.T) {
	f := newFixture(t, &fakeSource{healthy: true, flows: testFlows()})

	rec := f.post(validBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"image_url": "https://reports.example.com/graph_abc.png?signed"}, decode(t, rec))

	assert.Equal(t, pce.Config{Host: "pce.example.com", Port: 8443, OrgID: "1", APIKey: "api_123", APISecret: "s3cr3t"}, f.pceCfg)

	q := f.source.query
	require.NotNil(t, q)
	assert.Equal(t, "2024-05-16", q.StartDate)
	assert.Equal(t, "2024-06-15", q.EndDate)
	assert.Equal(t, 1000, q.MaxResults)
	assert.Equal(t, []string{pce.DecisionAllowed, pce.DecisionBlocked, pce.DecisionPotentiallyBlocked}, q.PolicyDecisions)

	assert.Equal(t, "graph_abc.png", f.sink.name)
	assert.Equal(t, "image/png", f.sink.contentType)
	assert.True(t, bytes.HasPrefix(f.sink.body, []byte("\x89PNG")))
}

func TestGraphErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		src  *fakeSource
		body string
		want string
	}{
		"invalid json":   {src: &fakeSource{healthy: true}, body: `{"pce_host":`, want: "request body is not valid JSON"},
		"missing secret": {src: &fakeSource{healthy: true}, body: `{"pce_host":"h","port":443,"org_id":"1","api_key":"k"}`, want: `missing required field "api_secret"`},
		"bad port":       {src: &fakeSource{healthy: true}, body: `{"pce_host":"h","port":"https","org_id":"1","api_key":"k","api_secret":"s"}`, want: `invalid port "https"`},
		"unhealthy":      {src: &fakeSource{healthy: false}, body: validBody, want: dependr.ErrConnection.Error()},
		"no flows":       {src: &fakeSource{healthy: true}, body: validBody, want: "no data to render"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, tc.src)
			rec := f.post(tc.body)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, decode(t, rec)["error"], tc.want)
			assert.Empty(t, f.sink.name)
		})
	}
}

func TestGraphSourceFactoryError(t *testing.T) {
	f := newFixture(t, nil)
	s := New(&Config{LookbackDays: 30, QueryLimit: 10}, f.sink,
		WithSourceFactory(func(pce.Config, log15.Logger) (dependr.FlowSource, error) {
			return nil, errors.New("pce host is required")
		}),
	)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graph", strings.NewReader(validBody)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "pce host is required", decode(t, rec)["error"])
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/graph", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestGraphWrongMethod(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestParseGraphRequestPort(t *testing.T) {
	for port, want := range map[string]int{
		`8443`:    8443,
		`"443"`:   443,
		`"0"`:     -1,
		`true`:    -1,
		`70000`:   -1,
		`"https"`: -1,
	} {
		body := `{"pce_host":"h","port":` + port + `,"org_id":"1","api_key":"k","api_secret":"s"}`
		cfg, err := parseGraphRequest([]byte(body))
		if want < 0 {
			assert.Error(t, err, port)
			continue
		}
		require.NoError(t, err, port)
		assert.Equal(t, want, cfg.Port, port)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DEPENDR_S3_BUCKET_NAME", "reports")
	t.Setenv("DEPENDR_PRESIGN_TTL", "15m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "reports", cfg.S3BucketName)
	assert.Equal(t, 15*time.Minute, cfg.PresignTTL)
	assert.Equal(t, 30, cfg.LookbackDays)
	assert.Equal(t, 1000, cfg.QueryLimit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigRequiresBucket(t *testing.T) {
	t.Setenv("DEPENDR_S3_BUCKET_NAME", "")
	require.NoError(t, os.Unsetenv("DEPENDR_S3_BUCKET_NAME"))
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("DEPENDR_S3_BUCKET_NAME", "reports")
	t.Setenv("DEPENDR_QUERY_LIMIT", "0")
	_, err = LoadConfig()
	assert.Error(t, err)
}
