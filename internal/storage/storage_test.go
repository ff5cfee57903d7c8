package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/rndlabs/daily-stoic-waku/pkg/logx"
)

func record(i int) BroadcastRecord {
	return BroadcastRecord{
		ID:        fmt.Sprintf("id-%d", i),
		At:        time.Date(2026, 1, 1, 7, 0, i, 0, time.UTC),
		Trigger:   "schedule",
		Topic:     "/dailystoic/1/broadcast/proto",
		Author:    "Seneca",
		Timestamp: uint64(1767250800 + i),
		Size:      42,
		OK:        i%2 == 0,
		Error:     map[bool]string{true: "", false: "publish failed"}[i%2 == 0],
		TookMS:    3,
	}
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	assert.Error(t, err)
}

func TestDrivers(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "journal", "dailystoic."+driver)
			st, err := Open(Config{Driver: driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				require.NoError(t, st.AppendBroadcast(ctx, record(i)))
			}

			got, err := st.RecentBroadcasts(ctx, 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, record(4), got[0])
			assert.Equal(t, record(2), got[2])
			assert.Equal(t, "publish failed", got[1].Error)
			require.NoError(t, st.Close())

			// Reopen: history survives.
			st, err = Open(Config{Driver: driver, Path: path}, logx.Nop())
			require.NoError(t, err)
			defer st.Close()
			got, err = st.RecentBroadcasts(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, got, 5)
			assert.Equal(t, "id-4", got[0].ID)
		})
	}
}

func TestFileStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"a\"}\nnot json\n{\"id\":\"b\"}\n{\"id\":"), 0o600))

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	got, err := st.RecentBroadcasts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	require.NoError(t, st.AppendBroadcast(context.Background(), record(7)))
	require.NoError(t, st.Close())
	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	got, err = st.RecentBroadcasts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "id-7", got[0].ID)
}

func TestRequiresPath(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		_, err := Open(Config{Driver: driver}, logx.Nop())
		assert.Error(t, err, driver)
	}
}
