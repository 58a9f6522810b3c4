package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelara/stopsetd/internal/catalog"
	"github.com/avelara/stopsetd/internal/config"
)

func testRotator(id int64, assets ...*catalog.Asset) *catalog.Rotator {
	return &catalog.Rotator{ID: id, Name: "rot", Enabled: true, Assets: assets}
}

func TestSwapAsset(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	g := f.stopset(stopsetAsset(1, 5*time.Second), stopsetAsset(2, 5*time.Second))

	replacement := stopsetAsset(9, 8*time.Second)
	require.NoError(t, g.SwapAsset(1, replacement, testRotator(5, replacement)))
	assert.Equal(t, int64(9), g.Item(1).Asset.ID)
	assert.Equal(t, 13*time.Second, g.Duration())
}

func TestSwapReleasesOldHandle(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	g := f.stopset(stopsetAsset(1, 5*time.Second), stopsetAsset(2, 5*time.Second))
	g.LoadAudio()
	inUse := f.pool.InUse()

	replacement := stopsetAsset(9, 5*time.Second)
	require.NoError(t, g.SwapAsset(1, replacement, testRotator(5, replacement)))
	assert.Equal(t, inUse, f.pool.InUse(), "the old handle returns before the new one loads")
	assert.Equal(t, ItemLoading, g.Item(1).State, "a loaded stopset loads replacements eagerly")
}

func TestMutationRejectedOnLiveItem(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	g := f.stopset(stopsetAsset(1, 5*time.Second), stopsetAsset(2, 5*time.Second))

	g.Play()
	require.True(t, f.backend.FinishCurrent())

	other := stopsetAsset(9, 5*time.Second)
	rot := testRotator(5, other)
	assert.ErrorIs(t, g.SwapAsset(0, other, rot), ErrAlreadyAired, "aired item")
	assert.ErrorIs(t, g.SwapAsset(1, other, rot), ErrAlreadyAired, "live item")
	assert.ErrorIs(t, g.DeleteAsset(1), ErrAlreadyAired)
	assert.ErrorIs(t, g.InsertAsset(1, other, rot, true), ErrAlreadyAired)
	assert.ErrorIs(t, g.SwapAsset(7, other, rot), ErrOutOfRange)
}

func TestMutationRejectedAfterDone(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	g := f.stopset(stopsetAsset(1, 5*time.Second))
	g.Done(true, true)

	other := stopsetAsset(9, 5*time.Second)
	assert.ErrorIs(t, g.SwapAsset(0, other, testRotator(5, other)), ErrDestroyed)
}

func TestInsertAsset(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	g := f.stopset(stopsetAsset(1, 5*time.Second), stopsetAsset(2, 5*time.Second))

	extra := stopsetAsset(9, 5*time.Second)
	require.NoError(t, g.InsertAsset(1, extra, testRotator(5, extra), true))
	require.Equal(t, 3, g.Len())
	assert.Equal(t, int64(9), g.Item(1).Asset.ID)
	assert.Equal(t, int64(2), g.Item(2).Asset.ID)

	after := stopsetAsset(10, 5*time.Second)
	require.NoError(t, g.InsertAsset(1, after, testRotator(6, after), false))
	assert.Equal(t, int64(10), g.Item(2).Asset.ID)
}

func TestDeleteAsset(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	g := f.stopset(stopsetAsset(1, 5*time.Second), stopsetAsset(2, 5*time.Second))

	require.NoError(t, g.DeleteAsset(0))
	require.Equal(t, 1, g.Len())
	assert.Equal(t, int64(2), g.Item(0).Asset.ID)
}

func TestRegenerateAsset(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	a1 := stopsetAsset(1, 5*time.Second)
	a2 := stopsetAsset(2, 5*time.Second)
	alt := stopsetAsset(3, 5*time.Second)

	g := f.stopset(a1, a2)
	// Regeneration draws from the slot's rotator, which also offers alt.
	g.items[1].Rotator.Assets = []*catalog.Asset{a2, alt}

	require.NoError(t, g.RegenerateAsset(1, time.Now(), nil))
	assert.Equal(t, int64(3), g.Item(1).Asset.ID,
		"assets already slotted in the stopset are excluded, so only alt remains")
}

func TestRegenerateExhaustedRotator(t *testing.T) {
	f := newFixture(config.ServerConfig{})
	a1 := stopsetAsset(1, 5*time.Second)
	a2 := stopsetAsset(2, 5*time.Second)

	g := f.stopset(a1, a2)
	g.items[1].Rotator.Assets = []*catalog.Asset{a2}

	err := g.RegenerateAsset(1, time.Now(), nil)
	assert.Error(t, err, "no candidate outside the stopset leaves the slot untouched")
	assert.Equal(t, int64(2), g.Item(1).Asset.ID)
}
