package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/app"
	"github.com/JakeFAU/district-staff-crawler/internal/config"
	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

func newDistrictServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/district", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><body><a href="%s/">High School</a></body></html>`, srv.URL)
	})
	mux.HandleFunc("/staff", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><table>
			<tr><th>Name</th><th>Position</th><th>Email</th></tr>
			<tr><td>Smith, Jane</td><td>Principal</td><td>jane@example.org</td></tr>
			<tr><td>John Doe</td><td>Teacher</td><td>john@example.org</td></tr>
		</table></body></html>`)
	})
	mux.HandleFunc("/wiki", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><h1 id="firstHeading">Example County Schools</h1></body></html>`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/staff">Staff</a></body></html>`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) config.Config {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "data.csv")
	csv := "website_1,district_name,district_url\n" +
		srv.URL + "/district,Example County," + srv.URL + "/wiki\n"
	require.NoError(t, os.WriteFile(dataset, []byte(csv), 0o600))

	return config.Config{
		Crawler:    config.CrawlerConfig{UserAgent: "Mozilla/5.0", Workers: 2, Save: true},
		HTTP:       config.HTTPConfig{TimeoutSeconds: 5},
		Reference:  config.ReferenceConfig{Path: dataset, State: "Alabama"},
		Checkpoint: config.CheckpointConfig{Path: filepath.Join(dir, "config.json"), ErrorsPath: filepath.Join(dir, "errors.json")},
		Output:     config.OutputConfig{Sink: config.SinkFile, FilePath: filepath.Join(dir, "results.json")},
	}
}

func TestStartWritesResultsAndAdvancesCheckpoint(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	cfg := testConfig(t, srv)
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	sum, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 2, sum.Records)
	assert.Zero(t, sum.Failed)

	next, err := a.Cursor().Load()
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	data, err := os.ReadFile(cfg.Output.FilePath)
	require.NoError(t, err)
	var results map[string][][]map[string]any
	require.NoError(t, json.Unmarshal(data, &results))
	batches := results[srv.URL+"/district"]
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	jane := batches[0][0]
	assert.Equal(t, "Jane", jane["First Name"])
	assert.Equal(t, "Smith", jane["Last Name"])
	assert.Equal(t, "Principal", jane["Honorific"])
	assert.Equal(t, "Example County", jane["School District"])
	assert.Equal(t, "Example County Schools", jane["School Name"])
	assert.Equal(t, "Alabama", jane["State"])
	assert.Nil(t, jane["City"])

	assert.Equal(t, 1, a.Stats().Processed)
}

func TestStartConcurrentDryRun(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	cfg := testConfig(t, srv)
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	a.SetSave(false)
	a.SetConcurrent(true)
	save, concurrent := a.Mode()
	require.False(t, save)
	require.True(t, concurrent)

	sum, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Records)
	assert.NoFileExists(t, cfg.Output.FilePath)
}

func TestResets(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	cfg := testConfig(t, srv)
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Cursor().Advance(5))
	require.NoError(t, a.ResetPosition())
	next, err := a.Cursor().Load()
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	require.NoError(t, a.ResetData(context.Background()))
	data, err := os.ReadFile(cfg.Output.FilePath)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	require.NoError(t, a.ResetErrors())
	all, err := a.ErrorLog().All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestResetDataUnsupportedSink(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	cfg := testConfig(t, srv)
	cfg.Output.Sink = config.SinkNone
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.ErrorIs(t, a.ResetData(context.Background()), app.ErrResetUnsupported)
}

func TestNewBlobSinkWithMemoryProvider(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	cfg := testConfig(t, srv)
	cfg.Output = config.OutputConfig{Sink: config.SinkBlob, BlobProvider: config.BlobMemory, Prefix: "staff"}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	sum, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.NotEmpty(t, a.RunID())
}

func TestNewRejectsUnknownSink(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Output: config.OutputConfig{Sink: "tape"}}
	_, err := app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown output sink")
}

func TestStatusServerDisabledWithoutAddr(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	a, err := app.New(context.Background(), testConfig(t, srv), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.StatusServer())
}

func TestSeedsMissingDataset(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	cfg := testConfig(t, srv)
	cfg.Reference.Path = filepath.Join(t.TempDir(), "missing.xlsx")
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Start(context.Background())
	require.Error(t, err)
}

func TestNextPositionBeforeAndAfterRun(t *testing.T) {
	t.Parallel()

	srv := newDistrictServer(t)
	a, err := app.New(context.Background(), testConfig(t, srv), nil)
	require.NoError(t, err)
	defer a.Close()

	next, err := a.NextPosition()
	require.ErrorIs(t, err, crawler.ErrConfigMissing)
	assert.Equal(t, 1, next)

	_, err = a.Start(context.Background())
	require.NoError(t, err)

	next, err = a.NextPosition()
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	errs, err := a.Errors()
	require.NoError(t, err)
	assert.Empty(t, errs)
}
