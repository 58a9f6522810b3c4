package config

import (
	"os"
	"path/filepath"
	"strconv"
)

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func LoadConfig() (*Config, error) {
	dataDir := getenv("DATA_DIR", "./data")

	cfg := &Config{
		ServerURL:       os.Getenv("TOMATO_SERVER_URL"),
		Username:        os.Getenv("TOMATO_USERNAME"),
		Password:        os.Getenv("TOMATO_PASSWORD"),
		DataDir:         dataDir,
		AssetsDir:       filepath.Join(dataDir, "assets"),
		OverridesFile:   getenv("CONFIG_OVERRIDES", ""),
		AudioDevice:     getenv("AUDIO_DEVICE", ""),
		ProtocolVersion: DefaultProtocolVersion,
	}

	if cfg.ServerURL == "" {
		return nil, ErrConfig("TOMATO_SERVER_URL required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrConfig("TOMATO_USERNAME and TOMATO_PASSWORD required")
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.AssetsDir, 0o755)
	_ = os.MkdirAll(filepath.Join(cfg.AssetsDir, "tmp"), 0o755)
	return cfg, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

// ParseServerConfig converts the raw key/value map the server sends into a
// ServerConfig. Keys listed under "_numeric" arrive as strings and are
// coerced; a missing or malformed numeric value becomes 0, which reads as
// "feature disabled" everywhere the value is consulted.
func ParseServerConfig(raw map[string]any) ServerConfig {
	if numeric, ok := raw["_numeric"].([]any); ok {
		for _, k := range numeric {
			key, ok := k.(string)
			if !ok {
				continue
			}
			if s, ok := raw[key].(string); ok {
				f, _ := strconv.ParseFloat(s, 64)
				raw[key] = f
			}
		}
	}

	sc := ServerConfig{
		NoRepeatAssetsTime:              asInt64(raw["NO_REPEAT_ASSETS_TIME"]),
		AllowRepeatsInStopset:           asBool(raw["ALLOW_REPEATS_IN_STOPSET"]),
		EndDatePriorityWeightMultiplier: asFloat(raw["END_DATE_PRIORITY_WEIGHT_MULTIPLIER"]),
		EndDatePriorityBoundary:         asString(raw["END_DATE_PRIORITY_BOUNDARY"]),
		WaitInterval:                    asInt64(raw["WAIT_INTERVAL"]),
		StopsetOverdueTime:              asInt64(raw["STOPSET_OVERDUE_TIME"]),
		Autoplay:                        asBool(raw["AUTOPLAY"]),
	}
	if sc.EndDatePriorityBoundary != Boundary24h {
		sc.EndDatePriorityBoundary = BoundaryDay
	}
	return sc
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
