package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/district-staff-crawler/internal/crawler"
)

func TestErrorLogRecordAndAll(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "errors.json")
	log := NewErrorLog(path)

	require.NoError(t, log.Record(crawler.ErrorRecord{Position: 12, Message: "fetching_root: network error"}))
	require.NoError(t, log.Record(crawler.ErrorRecord{Position: 3, Message: "first"}))
	require.NoError(t, log.Record(crawler.ErrorRecord{Position: 3, Message: "second"}))

	all, err := log.All()
	require.NoError(t, err)
	assert.Equal(t, []crawler.ErrorRecord{
		{Position: 3, Message: "second"},
		{Position: 12, Message: "fetching_root: network error"},
	}, all)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"3": "second", "12": "fetching_root: network error"}`, string(data))
}

func TestErrorLogMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	all, err := NewErrorLog(filepath.Join(t.TempDir(), "errors.json")).All()

	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestErrorLogReset(t *testing.T) {
	t.Parallel()

	log := NewErrorLog(filepath.Join(t.TempDir(), "nested", "errors.json"))
	require.NoError(t, log.Record(crawler.ErrorRecord{Position: 1, Message: "boom"}))

	require.NoError(t, log.Reset())

	all, err := log.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}
