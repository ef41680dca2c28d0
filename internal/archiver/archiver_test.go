package archiver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstack/internal/types"
)

type fakeLogSource struct {
	rows        []*types.SystemLog
	listErr     error
	deleted     [][]string
	listCutoffs []time.Time
}

func (f *fakeLogSource) ListOlderThan(_ context.Context, cutoff time.Time, batchSize int) ([]*types.SystemLog, error) {
	f.listCutoffs = append(f.listCutoffs, cutoff)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.rows) == 0 {
		return nil, nil
	}
	n := batchSize
	if n > len(f.rows) {
		n = len(f.rows)
	}
	return f.rows[:n], nil
}

func (f *fakeLogSource) DeleteByPublicIDs(_ context.Context, publicIDs []string) (int64, error) {
	f.deleted = append(f.deleted, publicIDs)
	f.rows = f.rows[len(publicIDs):]
	return int64(len(publicIDs)), nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testLogs(n int) []*types.SystemLog {
	logs := make([]*types.SystemLog, n)
	for i := range logs {
		logs[i] = &types.SystemLog{
			OwnedRecord: types.OwnedRecord{PublicID: fmt.Sprintf("%014d", i)},
			RequestPath: "/api/v1/customer-profiles",
			HTTPStatus:  200,
		}
	}
	return logs
}

func newTestArchiver(t *testing.T, source *fakeLogSource, batchSize int) (*Archiver, string) {
	t.Helper()
	dir := t.TempDir()
	clock := fixedClock{now: time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)}
	arch := New(source, Config{Dir: dir, RetentionAge: 90 * 24 * time.Hour, BatchSize: batchSize},
		clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return arch, dir
}

func readArchive(t *testing.T, path string) []*types.SystemLog {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	var rows []*types.SystemLog
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var row types.SystemLog
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, &row)
	}
	require.NoError(t, scanner.Err())
	return rows
}

func TestArchiverRun(t *testing.T) {
	source := &fakeLogSource{rows: testLogs(5)}
	arch, dir := newTestArchiver(t, source, 10)

	total, err := arch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	// Cutoff is now minus the retention age.
	require.Len(t, source.listCutoffs, 2)
	expected := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC).Add(-90 * 24 * time.Hour)
	assert.True(t, source.listCutoffs[0].Equal(expected))

	files, err := filepath.Glob(filepath.Join(dir, "system-logs-*.ndjson.zst"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	rows := readArchive(t, files[0])
	require.Len(t, rows, 5)
	assert.Equal(t, "/api/v1/customer-profiles", rows[0].RequestPath)
}

func TestArchiverRunsInBatches(t *testing.T) {
	source := &fakeLogSource{rows: testLogs(7)}
	arch, _ := newTestArchiver(t, source, 3)

	total, err := arch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, source.deleted, 3) // 3 + 3 + 1
}

func TestArchiverWritesBeforeDeleting(t *testing.T) {
	source := &fakeLogSource{rows: testLogs(2)}
	arch, dir := newTestArchiver(t, source, 10)

	_, err := arch.Run(context.Background())
	require.NoError(t, err)

	// Delete carried exactly the IDs that were written out.
	require.Len(t, source.deleted, 1)
	assert.Equal(t, []string{"00000000000000", "00000000000001"}, source.deleted[0])

	files, _ := filepath.Glob(filepath.Join(dir, "*.ndjson.zst"))
	require.Len(t, files, 1)
}

func TestArchiverNothingToDo(t *testing.T) {
	source := &fakeLogSource{}
	arch, dir := newTestArchiver(t, source, 10)

	total, err := arch.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)

	files, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Empty(t, files)
}

func TestArchiverListFailure(t *testing.T) {
	source := &fakeLogSource{listErr: fmt.Errorf("connection refused")}
	arch, _ := newTestArchiver(t, source, 10)

	_, err := arch.Run(context.Background())
	assert.Error(t, err)
}
