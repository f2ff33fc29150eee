package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml configs can say "120s" or "2h".
type Duration time.Duration

// UnmarshalYAML parses either a duration string or a plain number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Fusion      FusionConfig      `yaml:"fusion"`
	Opportunity OpportunityConfig `yaml:"opportunity"`
	AutoBet     AutoBetConfig     `yaml:"autobet"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Redis       RedisConfig       `yaml:"redis"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`     // debug, info, warn, error
	JSONPath string `yaml:"json_path"` // optional JSON log file, empty = stdout text only
}

type IngestConfig struct {
	HTTPAddr string      `yaml:"http_addr"` // feed intake + query API listen address
	Kafka    KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type FusionConfig struct {
	FreshnessWindow Duration       `yaml:"freshness_window"` // source silence before its data is stale
	SweepInterval   Duration       `yaml:"sweep_interval"`
	Resolver        ResolverConfig `yaml:"resolver"`
}

type ResolverConfig struct {
	FuzzyEnabled       bool     `yaml:"fuzzy_enabled"`        // kill-switch for token-subset matching
	StripSuffixes      bool     `yaml:"strip_suffixes"`       // strip club/youth/reserve qualifiers
	ExtraSuffixes      []string `yaml:"extra_suffixes"`       // deployment-specific additions
	MinTeamTokens      int      `yaml:"min_team_tokens"`      // never strip below this many tokens
	AliasCacheCapacity int      `yaml:"alias_cache_capacity"` // LRU size cap
	AliasCacheTTL      Duration `yaml:"alias_cache_ttl"`
}

type OpportunityConfig struct {
	TickInterval    Duration `yaml:"tick_interval"`
	MinEdgePercent  float64  `yaml:"min_edge_percent"`  // below this nothing is emitted
	MaxOddsAge      Duration `yaml:"max_odds_age"`      // quotes older than this are too stale to trade on
	AnomalyPercent  float64  `yaml:"anomaly_percent"`   // cross-source divergence threshold
	AnomalyMinBooks int      `yaml:"anomaly_min_books"` // independent quoting sources required
	MinConfidence   float64  `yaml:"min_confidence"`    // model confidence floor for momentum signals
}

type AutoBetConfig struct {
	Enabled  bool   `yaml:"enabled"`
	HTTPAddr string `yaml:"http_addr"` // settlement intake + decision queries

	// Edge and odds bounds, overridable per "sport" or "sport/signal".
	MinEdgePercent float64                 `yaml:"min_edge_percent"`
	OddsFloor      float64                 `yaml:"odds_floor"`
	OddsCeiling    float64                 `yaml:"odds_ceiling"`
	Overrides      map[string]PolicyBounds `yaml:"overrides"`

	// Re-bet policy: a second decision on a condition already bet is allowed
	// only with a strictly larger edge, and only if enabled.
	RebetEnabled       bool    `yaml:"rebet_enabled"`
	RebetMinEdgeGrowth float64 `yaml:"rebet_min_edge_growth"` // percentage points

	MaxInflight int `yaml:"max_inflight"` // submitted-but-unconfirmed cap

	// Exposure caps as fractions of current bankroll.
	StakeFraction        float64 `yaml:"stake_fraction"`         // stake per decision
	MaxBetFraction       float64 `yaml:"max_bet_fraction"`
	MaxMatchFraction     float64 `yaml:"max_match_fraction"`
	MaxConditionFraction float64 `yaml:"max_condition_fraction"`
	MaxSportFraction     float64 `yaml:"max_sport_fraction"`
	MaxDailyFraction     float64 `yaml:"max_daily_fraction"`

	DailyLossLimit  float64  `yaml:"daily_loss_limit"`  // currency units, circuit breaker
	LossStreakLimit int      `yaml:"loss_streak_limit"` // consecutive losses before cooldown
	LossStreakPause Duration `yaml:"loss_streak_pause"`
	MinBankroll     float64  `yaml:"min_bankroll"`      // absolute floor, refuse below
	InitialBankroll float64  `yaml:"initial_bankroll"`  // used when the ledger has no history

	ConfirmDelay   Duration       `yaml:"confirm_delay"`   // wait before the single status poll
	ConfirmTimeout Duration       `yaml:"confirm_timeout"`
	Executor       ExecutorConfig `yaml:"executor"`
	Telegram       TelegramConfig `yaml:"telegram"`
}

// PolicyBounds overrides edge/odds limits for one sport or sport/signal pair.
// A zero field means "inherit the global value".
type PolicyBounds struct {
	MinEdgePercent float64 `yaml:"min_edge_percent"`
	OddsFloor      float64 `yaml:"odds_floor"`
	OddsCeiling    float64 `yaml:"odds_ceiling"`
}

type ExecutorConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
	RetryBase  Duration `yaml:"retry_base"`   // backoff base, doubled per attempt
	RatePerSec float64  `yaml:"rate_per_sec"` // request rate limit toward the venue
	RateBurst  int      `yaml:"rate_burst"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"` // TELEGRAM_BOT_TOKEN env overrides
	ChatID   int64  `yaml:"chat_id"`   // TELEGRAM_CHAT_ID env overrides
}

type LedgerConfig struct {
	Backend     string `yaml:"backend"`      // "sqlite" (default) or "postgres"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"` // POSTGRES_DSN env overrides
}

type RedisConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"` // snapshot expiry
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // prometheus /metrics listen address, empty disables
}

// Load reads and parses the yaml config, then fills defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()
	return &config, nil
}

// applyEnvOverrides lets deployments keep secrets out of the yaml file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.AutoBet.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.AutoBet.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Ledger.PostgresDSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Ingest.HTTPAddr == "" {
		c.Ingest.HTTPAddr = ":8080"
	}
	if c.Fusion.FreshnessWindow <= 0 {
		c.Fusion.FreshnessWindow = Duration(120 * time.Second)
	}
	if c.Fusion.SweepInterval <= 0 {
		c.Fusion.SweepInterval = Duration(15 * time.Second)
	}
	r := &c.Fusion.Resolver
	if r.MinTeamTokens <= 0 {
		r.MinTeamTokens = 1
	}
	if r.AliasCacheCapacity <= 0 {
		r.AliasCacheCapacity = 4096
	}
	if r.AliasCacheTTL <= 0 {
		r.AliasCacheTTL = Duration(12 * time.Hour)
	}

	o := &c.Opportunity
	if o.TickInterval <= 0 {
		o.TickInterval = Duration(2 * time.Second)
	}
	if o.MinEdgePercent <= 0 {
		o.MinEdgePercent = 5.0
	}
	if o.MaxOddsAge <= 0 {
		o.MaxOddsAge = Duration(20 * time.Second)
	}
	if o.AnomalyPercent <= 0 {
		o.AnomalyPercent = 10.0
	}
	if o.AnomalyMinBooks <= 0 {
		o.AnomalyMinBooks = 2
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.3
	}

	a := &c.AutoBet
	if a.HTTPAddr == "" {
		a.HTTPAddr = ":8081"
	}
	if a.MinEdgePercent <= 0 {
		a.MinEdgePercent = 18.0
	}
	if a.OddsFloor <= 0 {
		a.OddsFloor = 1.2
	}
	if a.OddsCeiling <= 0 {
		a.OddsCeiling = 3.5
	}
	if a.RebetMinEdgeGrowth <= 0 {
		a.RebetMinEdgeGrowth = 3.0
	}
	if a.MaxInflight <= 0 {
		a.MaxInflight = 4
	}
	if a.StakeFraction <= 0 {
		a.StakeFraction = 0.01
	}
	if a.MaxBetFraction <= 0 {
		a.MaxBetFraction = 0.02
	}
	if a.MaxMatchFraction <= 0 {
		a.MaxMatchFraction = 0.04
	}
	if a.MaxConditionFraction <= 0 {
		a.MaxConditionFraction = 0.02
	}
	if a.MaxSportFraction <= 0 {
		a.MaxSportFraction = 0.10
	}
	if a.MaxDailyFraction <= 0 {
		a.MaxDailyFraction = 0.20
	}
	if a.LossStreakLimit <= 0 {
		a.LossStreakLimit = 3
	}
	if a.LossStreakPause <= 0 {
		a.LossStreakPause = Duration(2 * time.Hour)
	}
	if a.ConfirmDelay <= 0 {
		a.ConfirmDelay = Duration(10 * time.Second)
	}
	if a.ConfirmTimeout <= 0 {
		a.ConfirmTimeout = Duration(15 * time.Second)
	}
	e := &a.Executor
	if e.Timeout <= 0 {
		e.Timeout = Duration(5 * time.Second)
	}
	if e.MaxRetries <= 0 {
		e.MaxRetries = 3
	}
	if e.RetryBase <= 0 {
		e.RetryBase = Duration(500 * time.Millisecond)
	}
	if e.RatePerSec <= 0 {
		e.RatePerSec = 2
	}
	if e.RateBurst <= 0 {
		e.RateBurst = 2
	}

	if c.Ledger.Backend == "" {
		c.Ledger.Backend = "sqlite"
	}
	if c.Ledger.SQLitePath == "" {
		c.Ledger.SQLitePath = "betfuse.db"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = Duration(time.Hour)
	}
}
