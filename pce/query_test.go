package pce

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildTrafficQueryDefaults(t *testing.T) {
	q, err := BuildTrafficQuery(QueryOptions{StartDate: "2024-01-01", EndDate: "2024-01-31", MaxResults: 2000})
	require.NoError(t, err)

	assert.Equal(t, []string{DecisionAllowed, DecisionPotentiallyBlocked}, q.PolicyDecisions)
	assert.Equal(t, []ServicePort{{Port: 53}, {Port: 137}, {Port: 138}, {Port: 139}, {Proto: 17}}, q.Services.Exclude)
	assert.Equal(t, []Actor{{Transmission: "broadcast"}, {Transmission: "multicast"}}, q.Destinations.Exclude)

	b, err := json.Marshal(q)
	require.NoError(t, err)
	doc := string(b)
	assert.Equal(t, "[[]]", gjson.Get(doc, "sources.include").Raw)
	assert.Equal(t, "[]", gjson.Get(doc, "sources.exclude").Raw)
	assert.Equal(t, `{"port":53}`, gjson.Get(doc, "services.exclude.0").Raw)
	assert.Equal(t, `{"proto":17}`, gjson.Get(doc, "services.exclude.4").Raw)
	assert.Equal(t, int64(2000), gjson.Get(doc, "max_results").Int())
}

func TestBuildTrafficQueryOverrides(t *testing.T) {
	q, err := BuildTrafficQuery(QueryOptions{
		StartDate:            "2024-01-01",
		EndDate:              "2024-01-31",
		MaxResults:           5,
		PolicyDecisions:      []string{DecisionBlocked},
		ExcludePorts:         []int{22},
		ExcludeProtos:        []string{},
		ExcludeTransmissions: []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, []ServicePort{{Port: 22}}, q.Services.Exclude)
	assert.Empty(t, q.Destinations.Exclude)
	assert.Equal(t, []string{DecisionBlocked}, q.PolicyDecisions)
}

func TestBuildTrafficQueryErrors(t *testing.T) {
	for name, opts := range map[string]QueryOptions{
		"no dates":     {MaxResults: 1},
		"no results":   {StartDate: "2024-01-01", EndDate: "2024-01-02"},
		"bad decision": {StartDate: "2024-01-01", EndDate: "2024-01-02", MaxResults: 1, PolicyDecisions: []string{"maybe"}},
		"bad proto":    {StartDate: "2024-01-01", EndDate: "2024-01-02", MaxResults: 1, ExcludeProtos: []string{"carrier-pigeon"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := BuildTrafficQuery(opts)
			assert.Error(t, err)
		})
	}
}

func TestProtoNumberAndName(t *testing.T) {
	n, err := ProtoNumber("UDP")
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	n, err = ProtoNumber("47")
	require.NoError(t, err)
	assert.Equal(t, 47, n)
	_, err = ProtoNumber("300")
	assert.Error(t, err)

	assert.Equal(t, "tcp", ProtoName(6))
	assert.Equal(t, "47", ProtoName(47))
}
