package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() Snapshot {
	return Snapshot{
		Rotators: []RotatorRecord{
			{ID: 1, Name: "ads", Enabled: true},
			{ID: 2, Name: "jingles", Enabled: true, EvenlyCycle: true},
			{ID: 3, Name: "station ids", Enabled: true, IsSinglePlay: true},
		},
		Assets: []AssetRecord{
			{ID: 20, Name: "spot b", Weight: 1, Duration: 30, Enabled: true,
				RotatorIDs: []int64{1}, File: FileRecord{Filename: "b.mp3"}},
			{ID: 10, Name: "spot a", Weight: 2, Duration: 15, Enabled: true,
				RotatorIDs: []int64{1, 2}, File: FileRecord{Filename: "a.mp3"}},
		},
		Stopsets: []StopsetRecord{
			{ID: 5, Name: "hourly", Weight: 1, Enabled: true, RotatorIDs: []int64{1, 2, 1}},
		},
	}
}

func TestHydrateLinksEverything(t *testing.T) {
	now := time.Now()
	db, err := Hydrate(snapshot(), "/assets", now)
	require.NoError(t, err)

	require.Len(t, db.Assets, 2)
	require.Len(t, db.Rotators, 3)
	require.Len(t, db.Stopsets, 1)
	assert.Equal(t, now, db.SyncedAt)

	ads := db.Rotators[1]
	require.Len(t, ads.Assets, 2)
	assert.Equal(t, int64(10), ads.Assets[0].ID, "membership sorts by ascending asset id")
	assert.Equal(t, int64(20), ads.Assets[1].ID)

	ss := db.Stopsets[0]
	require.Len(t, ss.Rotators, 3)
	assert.Same(t, ads, ss.Rotators[0])
	assert.Same(t, ads, ss.Rotators[2], "a rotator may fill several slots")

	a := db.AssetByID(10)
	require.NotNil(t, a)
	assert.Equal(t, "/assets/a.mp3", a.File.LocalPath)
	assert.Equal(t, 15*time.Second, a.Duration)
}

func TestHydrateDropsDanglingReferences(t *testing.T) {
	snap := snapshot()
	snap.Assets[0].RotatorIDs = []int64{1, 99}
	snap.Stopsets[0].RotatorIDs = []int64{1, 77}

	db, err := Hydrate(snap, "/assets", time.Now())
	require.NoError(t, err)
	require.Len(t, db.Stopsets[0].Rotators, 1, "unknown rotator ids disappear silently")
}

func TestHydrateRejectsInvalidRecords(t *testing.T) {
	bad := snapshot()
	bad.Assets[0].ID = 0
	_, err := Hydrate(bad, "/assets", time.Now())
	assert.ErrorContains(t, err, "invalid id")

	bad = snapshot()
	bad.Assets[0].Weight = -1
	_, err = Hydrate(bad, "/assets", time.Now())
	assert.ErrorContains(t, err, "negative weight")

	bad = snapshot()
	bad.Assets[0].File.Filename = ""
	_, err = Hydrate(bad, "/assets", time.Now())
	assert.ErrorContains(t, err, "missing file")

	bad = snapshot()
	bad.Assets[0].Begin = "2025-06-20T00:00:00Z"
	bad.Assets[0].End = "2025-06-10T00:00:00Z"
	_, err = Hydrate(bad, "/assets", time.Now())
	assert.ErrorContains(t, err, "after end")
}

func TestHydrateWindowLayouts(t *testing.T) {
	snap := snapshot()
	snap.Assets[0].Begin = "2025-06-10 08:00:00"
	snap.Assets[0].End = "2025-06-20T22:00:00"

	db, err := Hydrate(snap, "/assets", time.Now())
	require.NoError(t, err)

	a := db.AssetByID(20)
	require.NotNil(t, a.Window.Begin)
	require.NotNil(t, a.Window.End)
	assert.True(t, a.ActiveAt(time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)))
	assert.False(t, a.ActiveAt(time.Date(2025, 7, 1, 12, 0, 0, 0, time.Local)))
}

func TestSinglePlayRotators(t *testing.T) {
	db, err := Hydrate(snapshot(), "/assets", time.Now())
	require.NoError(t, err)

	singles := db.SinglePlayRotators()
	require.Len(t, singles, 1)
	assert.Equal(t, int64(3), singles[0].ID)
}

func TestUsedFilenames(t *testing.T) {
	snap := snapshot()
	snap.Assets[0].Alternates = []FileRecord{{Filename: "b-alt.mp3"}}

	db, err := Hydrate(snap, "/assets", time.Now())
	require.NoError(t, err)

	used := db.UsedFilenames()
	assert.Contains(t, used, "a.mp3")
	assert.Contains(t, used, "b.mp3")
	assert.Contains(t, used, "b-alt.mp3")
	assert.Len(t, used, 3)
}
