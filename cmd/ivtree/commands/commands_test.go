package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ivtree/pkg/catalog"
	"github.com/Sumatoshi-tech/ivtree/pkg/config"
	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
)

const testDataset = `intervals:
  - {name: genes, low: 1, high: 3, label: alpha}
  - {name: genes, low: 5, high: 8, label: beta}
  - {name: genes, low: 6, high: 7, label: gamma}
  - {name: genes, low: 2, high: 2, label: delta}
  - {name: exons, low: 10, high: 20}
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func testOptions(t *testing.T) *GlobalOptions {
	t.Helper()

	return &GlobalOptions{ConfigPath: writeTemp(t, "ivtree.yaml", "logging:\n  level: error\n")}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	t.Parallel()

	data := writeTemp(t, "data.yaml", testDataset)

	out, err := run(t, NewQueryCommand(testOptions(t)), "--data", data, "--tree", "genes", "--low", "4", "--high", "6")
	require.NoError(t, err)

	assert.Contains(t, out, "beta")
	assert.Contains(t, out, "gamma")
	assert.NotContains(t, out, "alpha")
	assert.Contains(t, out, "TOTAL")
}

func TestQueryCommand_UnknownTree(t *testing.T) {
	t.Parallel()

	data := writeTemp(t, "data.yaml", testDataset)

	_, err := run(t, NewQueryCommand(testOptions(t)), "--data", data, "--tree", "absent", "--low", "1", "--high", "2")
	require.ErrorIs(t, err, catalog.ErrUnknownTree)
}

func TestQueryCommand_RequiresFlags(t *testing.T) {
	t.Parallel()

	_, err := run(t, NewQueryCommand(testOptions(t)), "--tree", "genes")
	require.Error(t, err)
}

func TestFindCommand(t *testing.T) {
	t.Parallel()

	data := writeTemp(t, "data.yaml", testDataset)

	out, err := run(t, NewFindCommand(testOptions(t)), "--data", data, "--tree", "genes", "--low", "2", "--high", "2")
	require.NoError(t, err)
	assert.Regexp(t, `alpha|delta`, out)

	out, err = run(t, NewFindCommand(testOptions(t)), "--data", data, "--tree", "genes", "--low", "9", "--high", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "no interval")
}

func TestStatsCommand(t *testing.T) {
	t.Parallel()

	data := writeTemp(t, "data.yaml", testDataset)

	out, err := run(t, NewStatsCommand(testOptions(t)), "--data", data)
	require.NoError(t, err)

	assert.Contains(t, out, "genes")
	assert.Contains(t, out, "exons")
	assert.Contains(t, out, "4 SHARDS")
}

func TestStatsCommand_NoDataset(t *testing.T) {
	t.Parallel()

	_, err := run(t, NewStatsCommand(testOptions(t)))
	require.ErrorIs(t, err, ErrNoDataset)
}

func TestVerifyCommand(t *testing.T) {
	t.Parallel()

	data := writeTemp(t, "data.csv", "name,low,high,label\ngenes,1,3,a\ngenes,2,9,b\n")

	out, err := run(t, NewVerifyCommand(testOptions(t)), "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "OK 1 trees verified")
}

func TestBenchCommand(t *testing.T) {
	t.Parallel()

	out, err := run(t, NewBenchCommand(), "--count", "500", "--queries", "50", "--check")
	require.NoError(t, err)

	for _, phase := range []string{"insert", "query", "find", "hibernate", "boot", "remove"} {
		assert.Contains(t, out, phase)
	}

	_, err = run(t, NewBenchCommand(), "--count", "0")
	require.ErrorIs(t, err, ErrInvalidBenchSize)
}

func TestRunBench_Deterministic(t *testing.T) {
	t.Parallel()

	opts := benchOptions{count: 300, queries: 40, seed: 7, span: 1000, width: 50}

	first, err := runBench(opts)
	require.NoError(t, err)

	second, err := runBench(opts)
	require.NoError(t, err)

	assert.Equal(t, first.hits, second.hits)
	assert.Equal(t, first.height, second.height)
	assert.Len(t, first.phases, 6)
}

func TestBenchCommand_Chart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bench.html")

	_, err := run(t, NewBenchCommand(), "--count", "200", "--queries", "20", "--chart", path)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Latency per operation")
	assert.Contains(t, string(content), "hibernate")
}

func TestRenderBenchChart(t *testing.T) {
	t.Parallel()

	result := benchResult{
		phases: []benchPhase{{name: "insert", ops: 10, elapsed: 1000}, {name: "boot", ops: 0, elapsed: 50}},
		hits:   3,
		height: 2,
	}

	var buf bytes.Buffer

	require.NoError(t, renderBenchChart(&buf, result))
	assert.Contains(t, buf.String(), "height 2, 3 hits")
	assert.Contains(t, buf.String(), "insert")
}

func newServeApp(t *testing.T) http.Handler {
	t.Helper()

	a, err := newApp(testOptions(t), observability.ModeServe)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, a.close(context.Background())) })

	require.NoError(t, a.load(context.Background(), writeTemp(t, "data.yaml", testDataset)))

	red, err := observability.NewREDMetrics(a.providers.Meter)
	require.NoError(t, err)

	return a.handler(red)
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, http.NoBody))

	return rec
}

func TestServeHandler_Query(t *testing.T) {
	t.Parallel()

	handler := newServeApp(t)

	rec := get(handler, "/query?tree=genes&low=4&high=6")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []catalog.Entry

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "beta", entries[0].Label)
	assert.Equal(t, "gamma", entries[1].Label)

	rec = get(handler, "/query?tree=genes&low=9&high=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServeHandler_Find(t *testing.T) {
	t.Parallel()

	handler := newServeApp(t)

	rec := get(handler, "/find?tree=exons&low=0&high=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp findResponse

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Found)
	assert.Equal(t, uint32(10), resp.Entry.Low)

	rec = get(handler, "/find?tree=exons&low=0&high=9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entry":null,"found":false}`, rec.Body.String())
}

func TestServeHandler_Errors(t *testing.T) {
	t.Parallel()

	handler := newServeApp(t)

	tests := []struct {
		target string
		code   int
	}{
		{target: "/query?low=1&high=2", code: http.StatusBadRequest},
		{target: "/query?tree=genes&low=x&high=2", code: http.StatusBadRequest},
		{target: "/query?tree=genes&low=1&high=4294967296", code: http.StatusBadRequest},
		{target: "/query?tree=genes&low=5&high=1", code: http.StatusBadRequest},
		{target: "/query?tree=absent&low=1&high=2", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := get(handler, tt.target)
		assert.Equal(t, tt.code, rec.Code, tt.target)
		assert.Contains(t, rec.Body.String(), `"error"`, tt.target)
	}
}

func TestServeHandler_Operational(t *testing.T) {
	t.Parallel()

	handler := newServeApp(t)

	assert.Equal(t, http.StatusOK, get(handler, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(handler, "/readyz").Code)
	assert.JSONEq(t, `["exons","genes"]`, get(handler, "/trees").Body.String())

	get(handler, "/query?tree=genes&low=1&high=2")

	rec := get(handler, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ivtree_index_queries")
	assert.Contains(t, rec.Body.String(), "ivtree_http_requests")
}

func TestObservabilityConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Logging: config.LoggingConfig{Level: "warn", Format: "text"},
		Observability: config.ObservabilityConfig{
			OTLPEndpoint: "collector:4317",
			OTLPHeaders:  "api-key=secret",
			Environment:  "staging",
			SampleRatio:  0.5,
		},
	}

	obsCfg := observabilityConfig(cfg, &GlobalOptions{}, observability.ModeCLI)
	assert.Equal(t, map[string]string{"api-key": "secret"}, obsCfg.OTLPHeaders)
	assert.Equal(t, "collector:4317", obsCfg.OTLPEndpoint)
	assert.Equal(t, "staging", obsCfg.Environment)
	assert.Equal(t, slog.LevelWarn, obsCfg.LogLevel)
	assert.False(t, obsCfg.LogJSON)
	assert.False(t, obsCfg.Prometheus)

	obsCfg = observabilityConfig(cfg, &GlobalOptions{Verbose: true, LogJSON: true}, observability.ModeServe)
	assert.Equal(t, slog.LevelDebug, obsCfg.LogLevel)
	assert.True(t, obsCfg.LogJSON)
	assert.True(t, obsCfg.Prometheus)
}
