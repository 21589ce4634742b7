package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the guildboard service.
// Environment variables are automatically parsed from the GUILDBOARD_ prefix.
type Config struct {
	// Chat platform
	ChatBaseURL  string `envconfig:"CHAT_BASE_URL" default:"https://discord.com/api/v10"`
	ChatToken    string `envconfig:"CHAT_TOKEN" default:""`
	BoardChannel string `envconfig:"BOARD_CHANNEL" default:""`
	OpsChannel   string `envconfig:"OPS_CHANNEL" default:""`

	// Roster of participant user IDs pinged on timer completion.
	Roster []string `envconfig:"ROSTER" default:""`

	// Players maps platform user IDs to the names written into ledger rows,
	// e.g. "123:Alice,456:Bob". Unmapped users record under their raw ID.
	Players map[string]string `envconfig:"PLAYERS" default:""`

	// Ledger source (spreadsheet)
	SpreadsheetID   string `envconfig:"SPREADSHEET_ID" default:""`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE" default:"service_account.json"`
	BalanceTab      string `envconfig:"BALANCE_TAB" default:"Dashboard"`
	BalanceCell     string `envconfig:"BALANCE_CELL" default:"B2"`
	LedgerTab       string `envconfig:"LEDGER_TAB" default:"DISCORD UPDATES"`
	FormTab         string `envconfig:"FORM_TAB" default:"FORM UPDATES"`
	ArchiveTab      string `envconfig:"ARCHIVE_TAB" default:"OLD DATA"`

	// State persistence
	StateDir string `envconfig:"STATE_DIR" default:".guildboard"`

	// All bucketing, reminders and prune cutoffs use this fixed zone.
	TimeZone string `envconfig:"TIME_ZONE" default:"Europe/London"`

	// Ops HTTP surface
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Cadences. Overridable mainly for development; production values match
	// the documented schedule.
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1s"`
	RefreshInterval  time.Duration `envconfig:"REFRESH_INTERVAL" default:"10m"`
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"60m"`
	ReminderInterval time.Duration `envconfig:"REMINDER_INTERVAL" default:"1m"`
	PruneInterval    time.Duration `envconfig:"PRUNE_INTERVAL" default:"2m"`

	// Daily reminder fire time, in the fixed zone.
	ReminderHour   int `envconfig:"REMINDER_HOUR" default:"4"`
	ReminderMinute int `envconfig:"REMINDER_MINUTE" default:"30"`
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		return fmt.Errorf("invalid REMINDER_HOUR: %d", c.ReminderHour)
	}
	if c.ReminderMinute < 0 || c.ReminderMinute > 59 {
		return fmt.Errorf("invalid REMINDER_MINUTE: %d", c.ReminderMinute)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return nil
}

// Location returns the fixed zone all civil-date logic runs in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// New creates a new Config by parsing environment variables.
// Example: GUILDBOARD_BOARD_CHANNEL, GUILDBOARD_SPREADSHEET_ID.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("GUILDBOARD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("board_channel", cfg.BoardChannel).
		Str("ops_channel", cfg.OpsChannel).
		Str("spreadsheet", cfg.SpreadsheetID).
		Str("state_dir", cfg.StateDir).
		Str("time_zone", cfg.TimeZone).
		Int("http_port", cfg.HTTPPort).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: UTC zone, short
// cadences, no external endpoints.
func NewForTesting() *Config {
	return &Config{
		ChatBaseURL:      "http://localhost:0",
		BoardChannel:     "board",
		OpsChannel:       "ops",
		Roster:           []string{"u1", "u2"},
		Players:          map[string]string{"u1": "Alice"},
		BalanceTab:       "Dashboard",
		BalanceCell:      "B2",
		LedgerTab:        "Ledger",
		FormTab:          "Form",
		ArchiveTab:       "Archive",
		StateDir:         "",
		TimeZone:         "UTC",
		HTTPPort:         8080,
		SweepInterval:    time.Second,
		RefreshInterval:  10 * time.Minute,
		PollInterval:     time.Hour,
		ReminderInterval: time.Minute,
		PruneInterval:    2 * time.Minute,
		ReminderHour:     4,
		ReminderMinute:   30,
	}
}
