package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Hydrate builds a linked content database from raw snapshot records.
// Cross-references are resolved by id; a reference to a missing entity is
// dropped silently since partial sync failures upstream are expected.
// Structurally invalid records (bad id, negative weight, inverted window)
// fail the whole hydration.
func Hydrate(snap Snapshot, assetsDir string, syncedAt time.Time) (*DB, error) {
	db := &DB{
		Rotators: make(map[int64]*Rotator, len(snap.Rotators)),
		SyncedAt: syncedAt,
	}

	for _, rec := range snap.Rotators {
		if rec.ID <= 0 {
			return nil, fmt.Errorf("rotator %q: invalid id %d", rec.Name, rec.ID)
		}
		db.Rotators[rec.ID] = &Rotator{
			ID:           rec.ID,
			Name:         rec.Name,
			Enabled:      rec.Enabled,
			EvenlyCycle:  rec.EvenlyCycle,
			IsSinglePlay: rec.IsSinglePlay,
			Color:        rec.Color,
		}
	}

	for _, rec := range snap.Assets {
		asset, err := hydrateAsset(rec, assetsDir)
		if err != nil {
			return nil, err
		}
		db.Assets = append(db.Assets, asset)
		for _, rid := range rec.RotatorIDs {
			if rot, ok := db.Rotators[rid]; ok {
				rot.Assets = append(rot.Assets, asset)
			}
		}
	}

	// Stable increasing id order so evenly-cycle mode is deterministic
	// regardless of snapshot ordering.
	for _, rot := range db.Rotators {
		sort.Slice(rot.Assets, func(i, j int) bool { return rot.Assets[i].ID < rot.Assets[j].ID })
	}

	for _, rec := range snap.Stopsets {
		if rec.ID <= 0 {
			return nil, fmt.Errorf("stopset %q: invalid id %d", rec.Name, rec.ID)
		}
		if rec.Weight < 0 {
			return nil, fmt.Errorf("stopset %q: negative weight %v", rec.Name, rec.Weight)
		}
		window, err := parseWindow(rec.Begin, rec.End)
		if err != nil {
			return nil, fmt.Errorf("stopset %q: %w", rec.Name, err)
		}
		ss := &Stopset{
			ID:      rec.ID,
			Name:    rec.Name,
			Weight:  rec.Weight,
			Window:  window,
			Enabled: rec.Enabled,
		}
		for _, rid := range rec.RotatorIDs {
			if rot, ok := db.Rotators[rid]; ok {
				ss.Rotators = append(ss.Rotators, rot)
			}
		}
		db.Stopsets = append(db.Stopsets, ss)
	}

	return db, nil
}

// EmptyDB is the database in effect before the first sync or after a
// logout. Selection and generation against it yield "nothing eligible".
func EmptyDB() *DB {
	return &DB{Rotators: make(map[int64]*Rotator)}
}

func hydrateAsset(rec AssetRecord, assetsDir string) (*Asset, error) {
	if rec.ID <= 0 {
		return nil, fmt.Errorf("asset %q: invalid id %d", rec.Name, rec.ID)
	}
	if rec.Weight < 0 {
		return nil, fmt.Errorf("asset %q: negative weight %v", rec.Name, rec.Weight)
	}
	if rec.Duration < 0 {
		return nil, fmt.Errorf("asset %q: negative duration %v", rec.Name, rec.Duration)
	}
	if rec.File.Filename == "" {
		return nil, fmt.Errorf("asset %q: missing file", rec.Name)
	}
	window, err := parseWindow(rec.Begin, rec.End)
	if err != nil {
		return nil, fmt.Errorf("asset %q: %w", rec.Name, err)
	}

	asset := &Asset{
		ID:         rec.ID,
		Name:       rec.Name,
		Weight:     rec.Weight,
		Duration:   secondsToDuration(rec.Duration),
		File:       hydrateFile(rec.File, assetsDir, rec.Duration),
		Window:     window,
		Enabled:    rec.Enabled,
		RotatorIDs: append([]int64(nil), rec.RotatorIDs...),
	}
	for _, alt := range rec.Alternates {
		if alt.Filename == "" {
			continue
		}
		asset.Alternates = append(asset.Alternates, hydrateFile(alt, assetsDir, alt.Duration))
	}
	return asset, nil
}

func hydrateFile(rec FileRecord, assetsDir string, durationSecs float64) File {
	return File{
		Filename:  rec.Filename,
		URL:       rec.URL,
		LocalPath: filepath.Join(assetsDir, rec.Filename),
		Size:      rec.Size,
		MD5Sum:    rec.MD5Sum,
		Duration:  secondsToDuration(durationSecs),
	}
}

func parseWindow(begin, end string) (Window, error) {
	var w Window
	var err error
	if w.Begin, err = parseInstant(begin); err != nil {
		return w, fmt.Errorf("bad begin %q: %w", begin, err)
	}
	if w.End, err = parseInstant(end); err != nil {
		return w, fmt.Errorf("bad end %q: %w", end, err)
	}
	if w.Begin != nil && w.End != nil && w.Begin.After(*w.End) {
		return w, fmt.Errorf("begin %s after end %s", w.Begin, w.End)
	}
	return w, nil
}

// The server emits ISO 8601; older versions omit the zone designator.
var instantLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

func parseInstant(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized instant")
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sortRotatorsByName(rotators []*Rotator) {
	sort.Slice(rotators, func(i, j int) bool {
		return strings.ToLower(rotators[i].Name) < strings.ToLower(rotators[j].Name)
	})
}
