package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Auth     AuthConfig     `toml:"auth"`     // Token issuance and verification settings
	Ingest   IngestConfig   `toml:"ingest"`   // Sensor ingest front door settings
	Fusion   FusionConfig   `toml:"fusion"`   // Track fusion engine settings
	Scoring  ScoringConfig  `toml:"scoring"`  // Threat scoring engine settings
	Audit    AuditConfig    `toml:"audit"`    // Audit event emission settings
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
	Station  StationConfig  `toml:"station"`  // Reference point for scenario generation
	Scenario ScenarioConfig `toml:"scenario"` // Demo scenario generation settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int   `toml:"port"`                  // Primary HTTP port for the server
	Host             string `toml:"host"`                 // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int   `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int   `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int   `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts  []int `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// AuthConfig contains JWT token settings shared by issuance and verification
type AuthConfig struct {
	JWTSecret       string   `toml:"jwt_secret"`        // HS256 signing secret (override in production)
	TokenTTLSeconds int      `toml:"token_ttl_seconds"` // Lifetime of issued tokens in seconds
	IngestRoles     []string `toml:"ingest_roles"`      // Roles allowed on ingestion paths
}

// IngestConfig contains sensor ingest front door settings
type IngestConfig struct {
	FusionURL          string `toml:"fusion_url"`              // Base URL of the track fusion service
	ForwardTimeoutSecs int    `toml:"forward_timeout_seconds"` // Timeout for the forward to fusion
}

// FusionConfig contains track fusion engine settings
type FusionConfig struct {
	CorrelationRadiusKM float64 `toml:"correlation_radius_km"` // Spatial fallback match threshold in kilometers
	ConfidenceStep      float64 `toml:"confidence_step"`       // Confidence increment applied on every matched update
	MaxTracksInAPI      int     `toml:"max_tracks_in_api"`     // Maximum number of tracks returned by the list endpoint
	ScoringURL          string  `toml:"scoring_url"`           // Base URL of the threat scoring service (empty = push disabled)
	PushTimeoutSecs     int     `toml:"push_timeout_seconds"`  // Timeout for the best-effort track push to scoring
}

// ScoringConfig contains threat scoring engine settings
type ScoringConfig struct {
	RulesPath        string `toml:"rules_path"`         // Path to the YAML rule set, read fresh on every scoring call
	MaxActiveThreats int    `toml:"max_active_threats"` // Capacity bound on the active threat set
	MaxThreatsInAPI  int    `toml:"max_threats_in_api"` // Maximum number of threats returned by the list endpoint
}

// AuditConfig contains audit event emission settings
type AuditConfig struct {
	URL            string `toml:"url"`               // Base URL of the audit-log service (empty = emission disabled)
	TimeoutSecs    int    `toml:"timeout_seconds"`   // Timeout for each best-effort audit POST
	MaxEventsInAPI int    `toml:"max_events_in_api"` // Maximum number of events returned by the audit list endpoint
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLiteBasePath string `toml:"sqlite_base_path"` // Base path for SQLite database files (filename is generated as iamd-YYYY-MM-DD.db)
}

// StationConfig contains the reference point scenarios are generated around
type StationConfig struct {
	Name      string  `toml:"name"`      // Display name for the station
	Latitude  float64 `toml:"latitude"`  // Latitude of the station in decimal degrees
	Longitude float64 `toml:"longitude"` // Longitude of the station in decimal degrees
}

// ScenarioConfig contains demo scenario generation settings
type ScenarioConfig struct {
	SpreadMiles  float64 `toml:"spread_miles"`  // Maximum random offset from the station in statute miles
	ContactCount int     `toml:"contact_count"` // Number of contacts generated per scenario run
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Standard location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	// Validate auth config
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}
	if c.Auth.TokenTTLSeconds <= 0 {
		c.Auth.TokenTTLSeconds = 3600
	}
	if len(c.Auth.IngestRoles) == 0 {
		c.Auth.IngestRoles = []string{"sensor", "operator", "system"}
	}

	// Validate ingest config
	if c.Ingest.ForwardTimeoutSecs <= 0 {
		c.Ingest.ForwardTimeoutSecs = 3
	}

	// Validate fusion config
	if c.Fusion.CorrelationRadiusKM <= 0 {
		c.Fusion.CorrelationRadiusKM = 2.0
	}
	if c.Fusion.ConfidenceStep <= 0 {
		c.Fusion.ConfidenceStep = 0.05
	}
	if c.Fusion.MaxTracksInAPI <= 0 {
		c.Fusion.MaxTracksInAPI = 10
	}
	if c.Fusion.PushTimeoutSecs <= 0 {
		c.Fusion.PushTimeoutSecs = 3
	}

	// Validate scoring config
	if c.Scoring.RulesPath == "" {
		c.Scoring.RulesPath = "configs/rules.yaml"
	}
	if c.Scoring.MaxActiveThreats <= 0 {
		c.Scoring.MaxActiveThreats = 10
	}
	if c.Scoring.MaxThreatsInAPI <= 0 {
		c.Scoring.MaxThreatsInAPI = 10
	}

	// Validate audit config
	if c.Audit.TimeoutSecs <= 0 {
		c.Audit.TimeoutSecs = 2
	}
	if c.Audit.MaxEventsInAPI <= 0 {
		c.Audit.MaxEventsInAPI = 10
	}

	// Validate storage config
	if c.Storage.SQLiteBasePath == "" {
		c.Storage.SQLiteBasePath = "data"
	}

	// Validate station config
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("invalid station latitude: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("invalid station longitude: %f", c.Station.Longitude)
	}

	// Validate scenario config
	if c.Scenario.SpreadMiles <= 0 {
		c.Scenario.SpreadMiles = 8.0
	}
	if c.Scenario.ContactCount <= 0 {
		c.Scenario.ContactCount = 3
	}

	return nil
}
