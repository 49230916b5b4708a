package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrInvalidValue = errors.New("invalid configuration value")

// Wire encodings.
const (
	EncodingText   = "text"
	EncodingBinary = "binary"
)

// Server holds the server process configuration.
type Server struct {
	ServerAddr        string        // UDP listen address
	PlayerCap         int           // Maximum simultaneous players
	GridWidth         int           // Grid columns
	GridHeight        int           // Grid rows
	GameSeconds       int           // Initial countdown
	TickInterval      time.Duration // Countdown step
	SessionTimeout    time.Duration // Idle eviction threshold, zero disables eviction
	FreezeAtZero      bool          // Ignore moves once the countdown is over
	WorldLayout       string        // Optional YAML layout file
	TreasureCount     int           // Random layout treasures
	TrapCount         int           // Random layout traps
	WireEncoding      string        // text or binary
	ReadBufferSize    int           // Largest accepted datagram
	MaxDatagramSize   int           // Largest snapshot sent; clients must read at least this much
	HTTPAddr          string        // Status API address, empty disables the API
	GinMode           string        // Mode for the Gin framework (e.g., release, debug, test)
	RedisAddr         string        // Scoreboard store, empty disables the scoreboard
	RedisTTL          time.Duration // Scoreboard key expiry
	JWTSecret         string        // Secret key for JWT signing
	JWTIssuer         string        // Issuer claim for JWTs
	AdminPasswordHash string        // bcrypt hash of the admin password
	LogFile           string        // Rolling log file, empty logs to stderr
	LogLevel          string        // debug, info, warn or error
}

// Client holds the client process configuration.
type Client struct {
	ServerAddr      string // Server UDP address
	BasePort        int    // Local port of player 1; player n binds BasePort+n-1
	Host            string // Local bind host
	WireEncoding    string // text or binary
	SendDisconnect  bool   // Tell the server when quitting
	GridWidth       int    // Grid columns drawn
	GridHeight      int    // Grid rows drawn
	MaxDatagramSize int    // Largest snapshot read from the server
	LogFile         string // Log file, empty discards logs since the terminal belongs to the grid
	LogLevel        string // debug, info, warn or error
}

// LoadDotEnv loads a .env file into the environment if one exists.
func LoadDotEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// LoadServer reads the server configuration from the environment. Values that
// do not parse fall back to their default and are reported in the returned errors.
func LoadServer() (Server, []error) {
	r := &envReader{}
	c := Server{
		ServerAddr:        r.str("SERVER_ADDR", "127.0.0.1:8080"),
		PlayerCap:         r.positiveInt("PLAYER_CAP", 3),
		GridWidth:         r.positiveInt("GRID_WIDTH", 10),
		GridHeight:        r.positiveInt("GRID_HEIGHT", 10),
		GameSeconds:       r.positiveInt("GAME_SECONDS", 60),
		TickInterval:      r.duration("TICK_INTERVAL", time.Second),
		SessionTimeout:    r.duration("SESSION_TIMEOUT", 0),
		FreezeAtZero:      r.flag("FREEZE_AT_ZERO", false),
		WorldLayout:       r.str("WORLD_LAYOUT", ""),
		TreasureCount:     r.nonNegativeInt("TREASURE_COUNT", 5),
		TrapCount:         r.nonNegativeInt("TRAP_COUNT", 3),
		WireEncoding:      r.oneOf("WIRE_ENCODING", EncodingText, EncodingText, EncodingBinary),
		ReadBufferSize:    r.positiveInt("READ_BUFFER_SIZE", 1024),
		MaxDatagramSize:   r.positiveInt("MAX_DATAGRAM_SIZE", 1024),
		HTTPAddr:          r.str("HTTP_ADDR", ""),
		GinMode:           r.oneOf("GIN_MODE", "release", "release", "debug", "test"),
		RedisAddr:         r.str("REDIS_ADDR", ""),
		RedisTTL:          time.Duration(r.nonNegativeInt("REDIS_TTL_SECONDS", 3600)) * time.Second,
		JWTSecret:         r.str("JWT_SECRET", ""),
		JWTIssuer:         r.str("JWT_ISSUER", "treasure-server"),
		AdminPasswordHash: r.str("ADMIN_PASSWORD_HASH", ""),
		LogFile:           r.str("LOG_FILE", ""),
		LogLevel:          r.oneOf("LOG_LEVEL", "info", "debug", "info", "warn", "error"),
	}
	return c, r.errs
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (Client, []error) {
	r := &envReader{}
	c := Client{
		ServerAddr:      r.str("SERVER_ADDR", "127.0.0.1:8080"),
		BasePort:        r.positiveInt("CLIENT_BASE_PORT", 8081),
		Host:            r.str("CLIENT_HOST", "127.0.0.1"),
		WireEncoding:    r.oneOf("WIRE_ENCODING", EncodingText, EncodingText, EncodingBinary),
		SendDisconnect:  r.flag("SEND_DISCONNECT", false),
		GridWidth:       r.positiveInt("GRID_WIDTH", 10),
		GridHeight:      r.positiveInt("GRID_HEIGHT", 10),
		MaxDatagramSize: r.positiveInt("MAX_DATAGRAM_SIZE", 1024),
		LogFile:         r.str("LOG_FILE", ""),
		LogLevel:        r.oneOf("LOG_LEVEL", "info", "debug", "info", "warn", "error"),
	}
	return c, r.errs
}

// envReader reads typed variables and remembers every value it had to replace.
type envReader struct {
	errs []error
}

func (r *envReader) invalid(key, value string, reason string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q %s", ErrInvalidValue, key, value, reason))
}

// str retrieves the value of an environment variable or returns a default value if not set or empty.
func (r *envReader) str(key, defaultValue string) string {
	if value := getEnvWithDefault(key, defaultValue); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) integer(key string, defaultValue int, valid func(int) bool, reason string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil || !valid(value) {
		r.invalid(key, valueStr, reason)
		return defaultValue
	}
	return value
}

func (r *envReader) positiveInt(key string, defaultValue int) int {
	return r.integer(key, defaultValue, func(v int) bool { return v > 0 }, "must be a positive integer")
}

func (r *envReader) nonNegativeInt(key string, defaultValue int) int {
	return r.integer(key, defaultValue, func(v int) bool { return v >= 0 }, "must be a non-negative integer")
}

// duration accepts Go durations ("500ms", "2m") or a bare number of seconds.
func (r *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueStr = strings.TrimSpace(valueStr)
	if secs, err := strconv.Atoi(valueStr); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value < 0 {
		r.invalid(key, valueStr, "must be a non-negative duration")
		return defaultValue
	}
	return value
}

func (r *envReader) flag(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		r.invalid(key, valueStr, "must be a boolean")
		return defaultValue
	}
	return value
}

func (r *envReader) oneOf(key, defaultValue string, allowed ...string) string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value := strings.ToLower(strings.TrimSpace(valueStr))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	r.invalid(key, valueStr, "must be one of "+strings.Join(allowed, ", "))
	return defaultValue
}

// getEnvWithDefault retrieves the value of an environment variable or returns a default value if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
