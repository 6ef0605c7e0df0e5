package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/district-staff-crawler/internal/api"
	"github.com/JakeFAU/district-staff-crawler/internal/app"
	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
	"github.com/JakeFAU/district-staff-crawler/internal/pipeline"
)

type fakeApp struct {
	save       bool
	concurrent bool
	next       int
	fresh      bool
	errs       []crawler.ErrorRecord
	startErr   error
	resetErr   error
	starts     int
	resets     []string
	closed     bool
}

func newFakeApp() *fakeApp {
	return &fakeApp{save: true, next: 1}
}

func (f *fakeApp) Close()              { f.closed = true }
func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Start(context.Context) (pipeline.Summary, error) {
	f.starts++
	return pipeline.Summary{Start: f.next, Processed: 3, Failed: 1, Records: 7}, f.startErr
}

func (f *fakeApp) SetSave(save bool)         { f.save = save }
func (f *fakeApp) SetConcurrent(on bool)     { f.concurrent = on }
func (f *fakeApp) Mode() (bool, bool)        { return f.save, f.concurrent }
func (f *fakeApp) StatusServer() *api.Server { return nil }
func (f *fakeApp) StatusAddr() string        { return "" }

func (f *fakeApp) ResetPosition() error {
	f.resets = append(f.resets, "pos")
	return f.resetErr
}

func (f *fakeApp) ResetErrors() error {
	f.resets = append(f.resets, "errors")
	return f.resetErr
}

func (f *fakeApp) ResetData(context.Context) error {
	f.resets = append(f.resets, "data")
	return f.resetErr
}

func (f *fakeApp) NextPosition() (int, error) {
	if f.fresh {
		return 1, fmt.Errorf("load checkpoint: %w", crawler.ErrConfigMissing)
	}
	return f.next, nil
}

func (f *fakeApp) Errors() ([]crawler.ErrorRecord, error) { return f.errs, nil }

func TestRunConsole(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	in := strings.NewReader(strings.Join([]string{
		"mode -debug",
		"concurrent -on",
		"",
		"start",
		"reset pos",
		"reset cache",
		"reset data",
		"y",
		"bogus",
		"mode -loud",
		"exit",
		"start",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), fake, in, &out))

	assert.False(t, fake.save)
	assert.True(t, fake.concurrent)
	assert.Equal(t, 1, fake.starts)
	assert.Equal(t, []string{"pos", "pos", "data"}, fake.resets)
	text := out.String()
	assert.Contains(t, text, "mode: debug")
	assert.Contains(t, text, "concurrent: on")
	assert.Contains(t, text, "processed 3 seeds from position 1: 1 failed, 7 records")
	assert.Contains(t, text, `error: unknown command "bogus"`)
	assert.Contains(t, text, "error: usage: mode -debug|-default")
}

func TestRunConsoleConfirmsDataReset(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	in := strings.NewReader(strings.Join([]string{
		"reset data",
		"n",
		"RESET DATA",
		"",
		"Reset Data",
		"Yes",
		"MODE -DEBUG",
		"Exit",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), fake, in, &out))

	assert.Equal(t, []string{"data"}, fake.resets)
	assert.Equal(t, 2, strings.Count(out.String(), "reset cancelled"))
	assert.Contains(t, out.String(), "clear all saved output? [y/N]")
	assert.Contains(t, out.String(), "output cleared")
	assert.False(t, fake.save)
}

func TestRunConsoleStopsAtEOF(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), fake, strings.NewReader("help\n"), &out))

	assert.Contains(t, out.String(), "reset pos|cache|data|errors")
	assert.Zero(t, fake.starts)
}

func TestRunConsoleStopsWhenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := newFakeApp()

	require.NoError(t, runConsole(ctx, fake, strings.NewReader("start\n"), &bytes.Buffer{}))
	assert.Zero(t, fake.starts)
}

func TestRunReset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target  string
		want    []string
		wantErr bool
	}{
		{target: "pos", want: []string{"pos"}},
		{target: "cache", want: []string{"pos"}},
		{target: "data", want: []string{"data"}},
		{target: "errors", want: []string{"errors"}},
		{target: "everything", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			t.Parallel()
			fake := newFakeApp()
			err := runReset(context.Background(), fake, tc.target, &bytes.Buffer{})
			if tc.wantErr {
				require.ErrorIs(t, err, errUnknownTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, fake.resets)
		})
	}
}

func TestRunResetWrapsFailure(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	fake.resetErr = app.ErrResetUnsupported

	err := runReset(context.Background(), fake, "data", &bytes.Buffer{})
	require.ErrorIs(t, err, app.ErrResetUnsupported)
	assert.Contains(t, err.Error(), "reset data")
}

func TestRunStatusJSON(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	fake.fresh = true
	var out bytes.Buffer

	require.NoError(t, runStatus(fake, true, &out))

	var report statusReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.Next)
	assert.True(t, report.Fresh)
	assert.True(t, report.Save)
	assert.NotNil(t, report.Errors)
}

func TestRunStatusText(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	fake.next = 14
	fake.save = false
	fake.errs = []crawler.ErrorRecord{{Position: 9, Message: "fetching_root: network error"}}
	var out bytes.Buffer

	require.NoError(t, runStatus(fake, false, &out))

	text := out.String()
	assert.Contains(t, text, "next position: 14\n")
	assert.Contains(t, text, "mode: debug, concurrent: off")
	assert.Contains(t, text, "9: fetching_root: network error")
}

func TestRunStartIgnoresCancellation(t *testing.T) {
	t.Parallel()

	fake := newFakeApp()
	fake.startErr = fmt.Errorf("run: %w", context.Canceled)
	require.NoError(t, runStart(context.Background(), fake, &bytes.Buffer{}))

	fake.startErr = errors.New("checkpoint write failed")
	require.ErrorContains(t, runStart(context.Background(), fake, &bytes.Buffer{}), "run crawler")
}

// The root command tests replace the package-level factory and must not run in parallel.

func withFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context, string) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootStartAppliesFlags(t *testing.T) {
	fake := newFakeApp()
	withFakeApp(t, fake)

	out, err := execute(t, "start", "--debug", "--concurrent")

	require.NoError(t, err)
	assert.False(t, fake.save)
	assert.True(t, fake.concurrent)
	assert.Equal(t, 1, fake.starts)
	assert.True(t, fake.closed)
	assert.Contains(t, out, "processed 3 seeds")
}

func TestRootStartKeepsConfiguredMode(t *testing.T) {
	fake := newFakeApp()
	fake.concurrent = true
	withFakeApp(t, fake)

	_, err := execute(t, "start")

	require.NoError(t, err)
	assert.True(t, fake.save)
	assert.True(t, fake.concurrent)
}

func TestRootReset(t *testing.T) {
	fake := newFakeApp()
	withFakeApp(t, fake)

	_, err := execute(t, "reset", "errors")
	require.NoError(t, err)
	assert.Equal(t, []string{"errors"}, fake.resets)

	_, err = execute(t, "reset")
	require.Error(t, err)
}

func TestRootInitFailure(t *testing.T) {
	orig := newApp
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("bad config") }
	t.Cleanup(func() { newApp = orig })

	_, err := execute(t, "status")

	require.ErrorContains(t, err, "failed to initialize application services: bad config")
}
