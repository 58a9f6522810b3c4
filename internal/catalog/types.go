package catalog

import "time"

// Raw snapshot records as the server serializes them. Hydrate resolves the
// id cross-references into the linked types below.

type FileRecord struct {
	Filename string  `json:"filename"`
	URL      string  `json:"url"`
	Size     int64   `json:"size"`
	MD5Sum   string  `json:"md5sum"`
	Duration float64 `json:"duration,omitempty"`
}

type AssetRecord struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	Weight     float64      `json:"weight"`
	Duration   float64      `json:"duration"`
	Begin      string       `json:"begin,omitempty"`
	End        string       `json:"end,omitempty"`
	Enabled    bool         `json:"enabled"`
	RotatorIDs []int64      `json:"rotators"`
	File       FileRecord   `json:"file"`
	Alternates []FileRecord `json:"alternates,omitempty"`
}

type RotatorRecord struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	EvenlyCycle  bool   `json:"evenly_cycle"`
	IsSinglePlay bool   `json:"is_single_play"`
	Color        string `json:"color,omitempty"`
}

type StopsetRecord struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Begin      string  `json:"begin,omitempty"`
	End        string  `json:"end,omitempty"`
	Enabled    bool    `json:"enabled"`
	RotatorIDs []int64 `json:"rotators"`
}

type Snapshot struct {
	Assets   []AssetRecord   `json:"assets"`
	Rotators []RotatorRecord `json:"rotators"`
	Stopsets []StopsetRecord `json:"stopsets"`
	Config   map[string]any  `json:"config,omitempty"`
}

// Window is an optional airing interval. A nil bound means unbounded on
// that side.
type Window struct {
	Begin *time.Time
	End   *time.Time
}

func (w Window) Contains(at time.Time) bool {
	if w.Begin != nil && w.Begin.After(at) {
		return false
	}
	if w.End != nil && w.End.Before(at) {
		return false
	}
	return true
}

// File is a playable media file, local path already resolved against the
// assets directory.
type File struct {
	Filename  string
	URL       string
	LocalPath string
	Size      int64
	MD5Sum    string
	Duration  time.Duration
}

type Asset struct {
	ID         int64
	Name       string
	Weight     float64
	Duration   time.Duration
	File       File
	Alternates []File
	Window     Window
	Enabled    bool
	RotatorIDs []int64
}

func (a *Asset) ActiveAt(at time.Time) bool { return a.Enabled && a.Window.Contains(at) }
func (a *Asset) AirWeight() float64         { return a.Weight }
func (a *Asset) EndBound() *time.Time       { return a.Window.End }

type Rotator struct {
	ID           int64
	Name         string
	Enabled      bool
	EvenlyCycle  bool
	IsSinglePlay bool
	Color        string

	// Membership is derived from each asset's rotator id list, sorted by
	// ascending asset id so evenly-cycle walks a stable order.
	Assets []*Asset
}

type Stopset struct {
	ID      int64
	Name    string
	Weight  float64
	Window  Window
	Enabled bool

	// Fixed slot order; defines playback order of the generated items.
	Rotators []*Rotator
}

func (s *Stopset) ActiveAt(at time.Time) bool { return s.Enabled && s.Window.Contains(at) }
func (s *Stopset) AirWeight() float64         { return s.Weight }
func (s *Stopset) EndBound() *time.Time       { return s.Window.End }

// DB is the hydrated content database for one sync snapshot. It is
// immutable once built; a new sync constructs a replacement wholesale.
type DB struct {
	Assets   []*Asset
	Rotators map[int64]*Rotator
	Stopsets []*Stopset
	SyncedAt time.Time
}

// AssetByID finds an asset in the snapshot, or nil.
func (db *DB) AssetByID(id int64) *Asset {
	for _, a := range db.Assets {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// SinglePlayRotators returns enabled rotators flagged for standalone
// playback, sorted by name for stable presentation.
func (db *DB) SinglePlayRotators() []*Rotator {
	var out []*Rotator
	for _, r := range db.Rotators {
		if r.Enabled && r.IsSinglePlay {
			out = append(out, r)
		}
	}
	sortRotatorsByName(out)
	return out
}

// UsedFilenames is the set of media files the database references,
// including alternates. Sync cleanup reconciles the assets directory
// against it.
func (db *DB) UsedFilenames() map[string]struct{} {
	used := make(map[string]struct{})
	for _, a := range db.Assets {
		used[a.File.Filename] = struct{}{}
		for _, alt := range a.Alternates {
			used[alt.Filename] = struct{}{}
		}
	}
	return used
}
