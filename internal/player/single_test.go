package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
)

func singleFixture(t *testing.T) (*SinglePlayer, *fixture) {
	t.Helper()
	f := newFixture(config.ServerConfig{})
	sp := NewSinglePlayer(f.pool, f.picker, f.state, f.log, nil)
	return sp, f
}

func TestSinglePlayRotatesCuts(t *testing.T) {
	sp, f := singleFixture(t)

	asset := stopsetAsset(1, 5*time.Second)
	asset.Alternates = []catalog.File{
		{Filename: "1-alt1.mp3", LocalPath: "/assets/1-alt1.mp3", Duration: 5 * time.Second},
		{Filename: "1-alt2.mp3", LocalPath: "/assets/1-alt2.mp3", Duration: 5 * time.Second},
	}
	rot := testRotator(9, asset)
	rot.IsSinglePlay = true

	seen := map[string]bool{}
	for i := 0; i < 60; i++ {
		sp.Play(asset, rot, time.Now())
		h := f.backend.Playing()
		require.NotNil(t, h)
		seen[h.Source()] = true
		sp.Stop()
	}

	assert.Len(t, seen, 3, "the main file and both alternates all get airtime")
}

func TestSinglePlayFinishReleasesHandle(t *testing.T) {
	sp, f := singleFixture(t)
	asset := stopsetAsset(1, 5*time.Second)
	rot := testRotator(9, asset)
	rot.IsSinglePlay = true

	sp.Play(asset, rot, time.Now())
	assert.True(t, sp.IsPlaying())
	assert.Equal(t, 1, f.pool.InUse())

	require.True(t, f.backend.FinishCurrent())
	assert.False(t, sp.IsPlaying())
	assert.Zero(t, f.pool.InUse())
	assert.Equal(t, []string{"played_single"}, f.log.Types())
}

func TestSinglePlayMarksPlayed(t *testing.T) {
	sp, f := singleFixture(t)
	asset := stopsetAsset(1, 5*time.Second)
	rot := testRotator(9, asset)

	now := time.Now()
	sp.Play(asset, rot, now)
	ignored := f.state.SoftIgnoreIDs(time.Hour, now)
	assert.Contains(t, ignored, int64(1), "singles count toward repeat avoidance")
	sp.Stop()
}

func TestSinglePlayReplacesInProgress(t *testing.T) {
	sp, f := singleFixture(t)
	first := stopsetAsset(1, 5*time.Second)
	second := stopsetAsset(2, 5*time.Second)
	rot := testRotator(9, first, second)

	sp.Play(first, rot, time.Now())
	sp.Play(second, rot, time.Now())

	assert.Equal(t, 1, f.pool.InUse(), "the first handle is released before the second starts")
	assert.Equal(t, "ad-2", sp.Status().Asset)
	sp.Stop()
	assert.Zero(t, f.pool.InUse())
}
