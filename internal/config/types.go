package config

// Config holds process-level settings read from the environment once at
// startup. Tunables the server controls live in ServerConfig instead.
type Config struct {
	ServerURL       string
	Username        string
	Password        string
	DataDir         string
	AssetsDir       string
	OverridesFile   string
	AudioDevice     string
	ProtocolVersion int
}

// ServerConfig is the server-pushed tunable set. A zero value disables the
// corresponding feature, matching how the server omits unset keys.
type ServerConfig struct {
	// Seconds an asset stays soft-ignored after airing. 0 disables
	// repeat avoidance entirely.
	NoRepeatAssetsTime int64

	// Permit the all-active fallback tier during selection.
	AllowRepeatsInStopset bool

	// Weight multiplier applied to assets whose end bound is about to
	// pass. 0 disables the boost.
	EndDatePriorityWeightMultiplier float64

	// "day" boosts assets ending the same calendar day as the draw;
	// "24h" uses a rolling 24 hour window.
	EndDatePriorityBoundary string

	// Seconds of dead air between stopsets.
	WaitInterval int64

	// Seconds past the expected start before a stopset is flagged
	// overdue. 0 disables the flag.
	StopsetOverdueTime int64

	// Start the next stopset without waiting for an operator.
	Autoplay bool
}

const (
	BoundaryDay = "day"
	Boundary24h = "24h"

	DefaultProtocolVersion = 2
)
