package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string // connection string for the database
	NatsURL           string // URL of the NATS server, empty for in-process transport
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	SQLLogLevel       string // sets the log level for sql subsystem
	LogFormat         string // text vs json
	LogConfig         string // path to log config file
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry, "stdout" writes to the console
	ProfilingPort     int    // port for profiling
	APIAddr           string // listen addr for the HTTP API, empty disables it
	TLSCertFile       string // path to TLS certificate
	TLSKeyFile        string // path to TLS key
	TLSCAFile         string // path to TLS CA
	RaceID            string // race to host or join
	Player            string // own player id
	Opponent          string // player id of the opponent (host only)
	Convener          string // player id of the convener (join only)
	TrackFile         string // path to a track layout, empty for the built-in track
	TickInterval      string // wall time of one authoritative tick
	Countdown         string // delay between start signal and first tick
	TokensPerPoint    string // decimal number of tokens per reward point
	ProfileCacheTTL   string // how long loaded driver profiles are kept
	KVBucket          string // JetStream bucket keeping the latest snapshots
	DebugWire         bool   // log every message sent by the API
)

// Config holds the configuration values which are used by the application
type Config struct {
	DebugWire bool // if true, debug events affecting "wire" actions (send/receive)
}
