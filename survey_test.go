package dependr

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GESkunkworks/dependr/pce"
)

type fakeSource struct {
	healthy   bool
	healthErr error
	labelsErr error
	flowsErr  error
	flows     []pce.TrafficFlow

	queryName string
	query     *pce.TrafficQuery
}

func (f *fakeSource) CheckConnection(ctx context.Context) (bool, error) {
	return f.healthy, f.healthErr
}

func (f *fakeSource) Labels(ctx context.Context) ([]pce.Label, error) {
	return testLabels, f.labelsErr
}

func (f *fakeSource) TrafficFlows(ctx context.Context, name string, q *pce.TrafficQuery) ([]pce.TrafficFlow, error) {
	f.queryName = name
	f.query = q
	return f.flows, f.flowsErr
}

func quietLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func newTestSurvey(t *testing.T, src FlowSource, mod func(*SurveyInput)) *Survey {
	t.Helper()
	in := &SurveyInput{
		Client: src,
		Logger: quietLogger(),
		Now:    func() time.Time { return testNow },
	}
	if mod != nil {
		mod(in)
	}
	sv, err := New(in)
	require.NoError(t, err)
	return sv
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(&SurveyInput{})
	assert.Error(t, err)
}

func TestNewRejectsBadLimit(t *testing.T) {
	limit := 0
	_, err := New(&SurveyInput{Client: &fakeSource{}, Limit: &limit})
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	sv, err := New(&SurveyInput{Client: &fakeSource{}})
	require.NoError(t, err)
	assert.Equal(t, "30 days ago", sv.start)
	assert.Equal(t, "today", sv.end)
	assert.Equal(t, 2000, sv.limit)
	assert.Equal(t, "all-traffic", sv.queryName)
	assert.Equal(t, []string{pce.DecisionAllowed, pce.DecisionPotentiallyBlocked}, sv.decisions)
	assert.False(t, sv.keepSelfLoops)
	assert.NotNil(t, sv.log)
}

func TestSurveyStart(t *testing.T) {
	src := &fakeSource{healthy: true, flows: testFlows()}
	sv := newTestSurvey(t, src, nil)

	require.NoError(t, sv.Start(context.Background()))

	assert.Equal(t, "all-traffic", src.queryName)
	require.NotNil(t, src.query)
	assert.Equal(t, "2024-05-16", src.query.StartDate)
	assert.Equal(t, "2024-06-15", src.query.EndDate)
	assert.Equal(t, 2000, src.query.MaxResults)

	assert.Len(t, sv.Rows, 5)
	assert.Equal(t, 3, sv.Connections.Len())
	assert.Equal(t, 1, sv.Connections.Dropped())

	summary := strings.Join(sv.GetSummary(), "\n")
	assert.Contains(t, summary, "Between 2024-05-16 and 2024-06-15 the PCE reported 5 traffic flows")
	assert.Contains(t, summary, "\tweb (prod) -> db (prod): 2")
	assert.Contains(t, summary, "\tallowed: 3")
	assert.Contains(t, summary, "1 flows had an endpoint without app and env labels")
	assert.Contains(t, summary, "1 flows stayed within a single application group")
}

func TestSurveyStartKeepSelfLoops(t *testing.T) {
	src := &fakeSource{healthy: true, flows: testFlows()}
	keep := true
	sv := newTestSurvey(t, src, func(in *SurveyInput) { in.KeepSelfLoops = &keep })

	require.NoError(t, sv.Start(context.Background()))
	assert.Equal(t, 4, sv.Connections.Len())
	assert.NotContains(t, strings.Join(sv.GetSummary(), "\n"), "stayed within")
}

func TestSurveyStartLimitReached(t *testing.T) {
	src := &fakeSource{healthy: true, flows: testFlows()}
	limit := 5
	sv := newTestSurvey(t, src, func(in *SurveyInput) { in.Limit = &limit })

	require.NoError(t, sv.Start(context.Background()))
	assert.Contains(t, strings.Join(sv.GetSummary(), "\n"), "hit its limit of 5 flows")
}

func TestSurveyStartErrors(t *testing.T) {
	boom := errors.New("boom")
	for name, tc := range map[string]struct {
		src  *fakeSource
		want error
	}{
		"unhealthy":    {src: &fakeSource{healthy: false}, want: ErrConnection},
		"health error": {src: &fakeSource{healthErr: boom}, want: boom},
		"labels error": {src: &fakeSource{healthy: true, labelsErr: boom}, want: boom},
		"flows error":  {src: &fakeSource{healthy: true, flowsErr: boom}, want: boom},
	} {
		t.Run(name, func(t *testing.T) {
			sv := newTestSurvey(t, tc.src, nil)
			err := sv.Start(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestSurveyStartBadDates(t *testing.T) {
	start := "next tuesday-ish"
	sv := newTestSurvey(t, &fakeSource{healthy: true}, func(in *SurveyInput) { in.Start = &start })
	assert.Error(t, sv.Start(context.Background()))
}

func TestSurveyWriteRows(t *testing.T) {
	sv := newTestSurvey(t, &fakeSource{healthy: true, flows: testFlows()}, nil)
	require.NoError(t, sv.Start(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, sv.WriteRows(&buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)

	header := records[0]
	assert.Equal(t, "src_ip", header[0])
	assert.Equal(t, "src_role", header[len(header)-1])
	// rows are sorted by source address
	assert.Equal(t, "10.0.0.1", records[1][0])
	assert.Equal(t, "192.168.1.9", records[5][0])
	assert.Equal(t, "", records[5][1])
}

func TestSurveyWriteConnections(t *testing.T) {
	sv := newTestSurvey(t, &fakeSource{healthy: true, flows: testFlows()}, nil)
	require.NoError(t, sv.Start(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, sv.WriteConnections(&buf))
	assert.Equal(t, "Source,Target,Flows\n"+
		"web (prod),db (prod),2\n"+
		"unlabeled (unlabeled),web (prod),1\n"+
		"web (dev),db (prod),1\n", buf.String())
}

func TestSurveyExports(t *testing.T) {
	dir := t.TempDir()
	rowsFile := filepath.Join(dir, "rows.csv")
	connsFile := filepath.Join(dir, "conns.csv")
	summaryFile := filepath.Join(dir, "summary.txt")
	sv := newTestSurvey(t, &fakeSource{healthy: true, flows: testFlows()}, func(in *SurveyInput) {
		in.OutfileRows = &rowsFile
		in.OutfileConnections = &connsFile
		in.OutfileSummary = &summaryFile
	})
	require.NoError(t, sv.Start(context.Background()))

	require.NoError(t, sv.ExportRows())
	require.NoError(t, sv.ExportConnections())
	require.NoError(t, sv.ExportSummary())

	for _, f := range []string{rowsFile, connsFile, summaryFile} {
		info, err := os.Stat(f)
		require.NoError(t, err, f)
		assert.NotZero(t, info.Size(), f)
	}
	summary, err := os.ReadFile(summaryFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(summary), "Between 2024-05-16"))
}
