package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/verse-engine/internal/config"
	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/progression"
	"github.com/jwebster45206/verse-engine/pkg/storage"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/jwebster45206/verse-engine/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sites", "pavilion.json"), `{
		"id": "ignored",
		"label": "Moon Pavilion",
		"cooldown_seconds": 2.5,
		"items": [
			{"id": "dawn", "title": " Dawn ", "text": "e\u0301", "when": {"season": "spring", "weather": "any"}, "emotion": "relaxed", "audio_seconds": 4}
		]
	}`)
	writeFile(t, filepath.Join(dir, "sites", "notes.txt"), "not a site")
	writeFile(t, filepath.Join(dir, "farm.json"), `{
		"title": "Fields",
		"plots": ["north", "south"],
		"rewards": [{"id": "jar-1"}],
		"verses": [{"id": "sow", "text": "种"}, {"id": "reap", "text": "收"}],
		"closing": {"id": "harvest", "text": "丰"}
	}`)
	writeFile(t, filepath.Join(dir, "actions.json"), `[
		{"id": "feeder", "label": "Feed the chickens", "when": {"weather": "sunny"}, "duration_seconds": 3, "clip": "cluck"}
	]`)
	return dir
}

func TestContent_Sites(t *testing.T) {
	c := NewContent(seedDataDir(t), testLogger())
	ctx := context.Background()

	ids, err := c.ListSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pavilion"}, ids)

	site, err := c.GetSite(ctx, "pavilion")
	require.NoError(t, err)
	assert.Equal(t, "pavilion", site.ID, "filename overrides the id in the file")
	assert.Equal(t, "Moon Pavilion", site.Label)
	assert.Equal(t, 2500*time.Millisecond, site.Cooldown)
	require.Len(t, site.Items, 1)

	item := site.Items[0]
	assert.Equal(t, "Dawn", item.Title)
	assert.Equal(t, "\u00e9", item.PrimaryText)
	assert.Equal(t, environment.Spring, item.When.Season)
	assert.Equal(t, environment.WeatherAny, item.When.Weather)
	assert.Equal(t, narrative.EmotionRelaxed, item.Emotion)
	assert.Equal(t, 4*time.Second, item.AudioDuration())

	_, err = c.GetSite(ctx, "missing")
	assert.Error(t, err)
}

func TestContent_FarmAndActions(t *testing.T) {
	c := NewContent(seedDataDir(t), testLogger())
	ctx := context.Background()

	farm, err := c.GetFarm(ctx)
	require.NoError(t, err)
	require.NotNil(t, farm)
	assert.Equal(t, []string{"north", "south"}, farm.Plots)
	assert.Equal(t, []progression.RewardSlot{{ID: "jar-1"}}, farm.Rewards)
	assert.Equal(t, DefaultClosingDelay, farm.ClosingDelay)
	assert.Equal(t, "harvest", farm.Closing.ID)

	actions, err := c.GetActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, 3*time.Second, actions[0].Duration)
	assert.Equal(t, environment.Sunny, actions[0].When.Weather)
}

func TestContent_EmptyDataDir(t *testing.T) {
	c := NewContent(t.TempDir(), testLogger())
	ctx := context.Background()

	ids, err := c.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	farm, err := c.GetFarm(ctx)
	require.NoError(t, err)
	assert.Nil(t, farm)

	actions, err := c.GetActions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestContent_InvalidSeason(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sites", "bad.json"), `{"items": [{"id": "x", "text": "x", "when": {"season": "monsoon"}}]}`)
	c := NewContent(dir, testLogger())
	_, err := c.GetSite(context.Background(), "bad")
	assert.Error(t, err)
}

func sampleProgress() *world.Progress {
	return &world.Progress{
		WorldID: "garden",
		Tracker: progression.Snapshot{
			Plots:           []string{"north", "south"},
			Completed:       []string{"north"},
			MilestonesFired: 1,
			ActiveSlots:     []int{0},
			UnitSize:        1,
			Sealed:          true,
		},
		Revision: 3,
		Plots:    []plot.State{{ID: "north", Stage: 5, Grown: true}, {ID: "south", Stage: 3}},
		Sequence: trigger.SequenceSnapshot{Step: 1, Queued: []string{"sow"}},
	}
}

func exerciseProgressStore(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	p, err := s.LoadProgress(ctx, "garden")
	require.NoError(t, err)
	assert.Nil(t, p, "nothing saved yet")

	require.NoError(t, s.SaveProgress(ctx, sampleProgress()))
	p, err = s.LoadProgress(ctx, "garden")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"north"}, p.Tracker.Completed)
	assert.Equal(t, sampleProgress().Sequence, p.Sequence)
	assert.Equal(t, 3, p.Plots[1].Stage)
	assert.Equal(t, int64(3), p.Revision)

	next := sampleProgress()
	next.Revision = 4
	next.Sequence = trigger.SequenceSnapshot{Step: 2, ClosingHanded: true}
	require.NoError(t, s.SaveProgress(ctx, next))
	p, err = s.LoadProgress(ctx, "garden")
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Revision, "save overwrites")
	assert.True(t, p.Sequence.ClosingHanded)

	require.NoError(t, s.DeleteProgress(ctx, "garden"))
	p, err = s.LoadProgress(ctx, "garden")
	require.NoError(t, err)
	assert.Nil(t, p)

	assert.Error(t, s.SaveProgress(ctx, nil))
}

func TestRedisStorage_Progress(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	s := NewRedisStorage(mr.Addr(), t.TempDir(), testLogger())
	defer s.Close()

	exerciseProgressStore(t, s)

	require.NoError(t, s.SaveProgress(context.Background(), sampleProgress()))
	assert.True(t, mr.Exists("progress:garden"))
	assert.Equal(t, time.Duration(0), mr.TTL("progress:garden"))
}

func TestRedisStorage_CorruptProgress(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	require.NoError(t, mr.Set("progress:garden", "{not json"))
	s := NewRedisStorage(mr.Addr(), t.TempDir(), testLogger())
	defer s.Close()

	_, err = s.LoadProgress(context.Background(), "garden")
	assert.Error(t, err)
}

func TestSQLiteStorage_Progress(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "progress.db"), t.TempDir(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	exerciseProgressStore(t, s)
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	s, err := OpenSQLite(path, t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SaveProgress(context.Background(), sampleProgress()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, t.TempDir(), testLogger())
	require.NoError(t, err)
	defer s.Close()
	p, err := s.LoadProgress(context.Background(), "garden")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Tracker.MilestonesFired)
}

func TestMemoryStorage_Progress(t *testing.T) {
	exerciseProgressStore(t, NewMemoryStorage(t.TempDir(), testLogger()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, &config.Config{ProgressStore: config.StoreMemory, DataDir: t.TempDir()}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = Open(ctx, &config.Config{
		ProgressStore: config.StoreSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "p.db"),
		DataDir:       t.TempDir(),
	}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, &config.Config{ProgressStore: "etcd"}, testLogger())
	assert.Error(t, err)
}

func TestValidateSite(t *testing.T) {
	tests := []struct {
		name    string
		site    *world.Site
		wantErr int
	}{
		{
			name:    "valid",
			site:    &world.Site{ID: "a", Items: []*narrative.Item{{ID: "x", PrimaryText: "x"}}},
			wantErr: 0,
		},
		{
			name:    "no items",
			site:    &world.Site{ID: "a"},
			wantErr: 1,
		},
		{
			name: "duplicate ids and bad emotion",
			site: &world.Site{ID: "a", Items: []*narrative.Item{
				{ID: "x", PrimaryText: "x"},
				{ID: "x", PrimaryText: "y", Emotion: "angry"},
			}},
			wantErr: 2,
		},
		{
			name:    "empty text",
			site:    &world.Site{ID: "a", Items: []*narrative.Item{{ID: "x"}}},
			wantErr: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ValidateSite(tt.site), tt.wantErr)
		})
	}
}

func TestValidateFarm(t *testing.T) {
	farm := &world.Farm{
		Plots:   []string{"a", "a"},
		Rewards: []progression.RewardSlot{{ID: "r1"}, {ID: "r2"}, {ID: "r3"}},
		Verses:  []*narrative.Item{{ID: "v", PrimaryText: "v"}},
	}
	// duplicate plot, fewer plots than rewards, fewer verses than plots
	assert.Len(t, ValidateFarm(farm), 3)

	ok := &world.Farm{
		Plots:   []string{"a", "b"},
		Rewards: []progression.RewardSlot{{ID: "r1"}},
		Verses:  []*narrative.Item{{ID: "v1", PrimaryText: "v"}, {ID: "v2", PrimaryText: "w"}},
		Closing: &narrative.Item{ID: "end", PrimaryText: "end"},
	}
	assert.Empty(t, ValidateFarm(ok))
}
