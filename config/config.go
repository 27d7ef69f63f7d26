package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "NEWSDESK_CONFIG"
	portEnv           = "PORT"
	logModeEnv        = "LOG_MODE"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	redisPassEnv      = "REDIS_PASS"
	kafkaBrokersEnv   = "KAFKA_BROKERS"
	archiveBucketEnv  = "ARCHIVE_BUCKET"
	awsRegionEnv      = "AWS_REGION"
	cohereAPIKeyEnv   = "COHERE_API_KEY"
	cohereModelEnv    = "COHERE_MODEL"
	searchURLEnv      = "SEARCH_API_URL"
	searchKeyEnv      = "SEARCH_API_KEY"
	socialURLEnv      = "SOCIAL_API_URL"
	mailURLEnv        = "MAIL_API_URL"
	mailKeyEnv        = "MAIL_API_KEY"
	mailFromEnv       = "MAIL_FROM"
	editorsEmailEnv   = "EDITORS_EMAIL"
)

// Config holds every setting the newsdesk server needs.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
	Database  DatabaseConfig    `yaml:"database"`
	Redis     RedisConfig       `yaml:"redis"`
	Kafka     KafkaConfig       `yaml:"kafka"`
	Archive   ArchiveConfig     `yaml:"archive"`
	Providers ProvidersConfig   `yaml:"providers"`
	Pipeline  PipelineConfig    `yaml:"pipeline"`
	Coverage  CoverageConfig    `yaml:"coverage"`
	Feeds     []FeedConfig      `yaml:"feeds"`
	Schedules map[string]string `yaml:"schedules"`
}

type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"ginMode"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"`
}

// DatabaseConfig selects the gorm driver: "sqlite" for local runs, "postgres" in production.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the Bloom filter fast path for intake.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	BloomKey  string        `yaml:"bloomKey"`
	TTL       time.Duration `yaml:"ttl"`
	Capacity  int           `yaml:"capacity"`
	ErrorRate float64       `yaml:"errorRate"`
}

// KafkaConfig wires the outbound event topic and the inbound editorial command topic.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	EventsTopic   string   `yaml:"eventsTopic"`
	CommandsTopic string   `yaml:"commandsTopic"`
	GroupID       string   `yaml:"groupId"`
}

// ArchiveConfig points the publisher at the S3 bucket holding published article snapshots.
type ArchiveConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

type ProvidersConfig struct {
	Cohere         CohereConfig  `yaml:"cohere"`
	Search         SearchConfig  `yaml:"search"`
	Social         SocialConfig  `yaml:"social"`
	Mail           MailConfig    `yaml:"mail"`
	Timeout        time.Duration `yaml:"timeout"`
	Attempts       uint          `yaml:"attempts"`
	InitialBackoff time.Duration `yaml:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff"`
}

type CohereConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type SearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

type SocialConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type MailConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	From     string `yaml:"from"`
	// Editors receives pull-back and escalation notices.
	Editors string `yaml:"editors"`
}

// PipelineConfig carries the editorial policy knobs.
type PipelineConfig struct {
	DedupThreshold      float64       `yaml:"dedupThreshold"`
	DedupWindow         time.Duration `yaml:"dedupWindow"`
	RejectBelow         int           `yaml:"rejectBelow"`
	ApproveAt           int           `yaml:"approveAt"`
	SearchBudget        int           `yaml:"searchBudget"`
	MinCredibleSources  int           `yaml:"minCredibleSources"`
	MinPrimaryCitations int           `yaml:"minPrimaryCitations"`
	CredibleThreshold   float64       `yaml:"credibleThreshold"`
	DraftRetryBudget    int           `yaml:"draftRetryBudget"`
	MaxRevisions        int           `yaml:"maxRevisions"`
	ReadingLevelMin     float64       `yaml:"readingLevelMin"`
	ReadingLevelMax     float64       `yaml:"readingLevelMax"`
	MaxWords            int           `yaml:"maxWords"`
	ReplyDeadlineUrgent time.Duration `yaml:"replyDeadlineUrgent"`
	ReplyDeadline       time.Duration `yaml:"replyDeadline"`
	MonitorWindow       time.Duration `yaml:"monitorWindow"`
	LedgerHalfLife      time.Duration `yaml:"ledgerHalfLife"`
	Workers             int           `yaml:"workers"`
	BatchSize           int           `yaml:"batchSize"`
}

// CoverageConfig describes the audience the desk writes for; it drives proximity scoring.
type CoverageConfig struct {
	Regions []string `yaml:"regions"`
	Terms   []string `yaml:"terms"`
}

// FeedConfig is one RSS/Atom connector. Kind is "rss" or "government".
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Kind     string `yaml:"kind"`
	Region   string `yaml:"region"`
	Category string `yaml:"category"`
	Extract  bool   `yaml:"extract"`
}

// Load reads YAML configuration (if present) over the defaults and applies environment
// overrides. A config file that cannot be read or parsed is reported in warnings and the
// defaults are used in its place; the caller logs them once its logger exists.
func Load() (cfg Config, warnings []error) {
	cfg = Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			warnings = append(warnings, fmt.Errorf("cannot read %s, using defaults: %w", path, err))
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			warnings = append(warnings, fmt.Errorf("cannot parse %s, using defaults: %w", path, err))
			cfg = Default()
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroes()
	return cfg, warnings
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080", GinMode: "release"},
		Logging:  LoggingConfig{Mode: "development"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "newsdesk.db"},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			BloomKey:  "newsdesk:candidates:bloom",
			TTL:       DefaultDedupWindow,
			Capacity:  100000,
			ErrorRate: 0.001,
		},
		Kafka: KafkaConfig{
			EventsTopic:   "newsdesk.events",
			CommandsTopic: "newsdesk.editorial-commands",
			GroupID:       "newsdesk-editorial",
		},
		Archive: ArchiveConfig{Prefix: "published/"},
		Providers: ProvidersConfig{
			Cohere:         CohereConfig{Model: "command-r-plus"},
			Timeout:        DefaultProviderTimeout,
			Attempts:       DefaultProviderRetries,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
		},
		Pipeline: PipelineConfig{
			DedupThreshold:      DefaultDedupThreshold,
			DedupWindow:         DefaultDedupWindow,
			RejectBelow:         DefaultRejectBelow,
			ApproveAt:           DefaultApproveAt,
			SearchBudget:        DefaultSearchBudget,
			MinCredibleSources:  DefaultMinCredibleSources,
			MinPrimaryCitations: DefaultMinPrimaryCitations,
			CredibleThreshold:   DefaultCredibleThreshold,
			DraftRetryBudget:    DefaultDraftRetryBudget,
			MaxRevisions:        DefaultMaxRevisions,
			ReadingLevelMin:     DefaultReadingLevelMin,
			ReadingLevelMax:     DefaultReadingLevelMax,
			MaxWords:            DefaultMaxWords,
			ReplyDeadlineUrgent: DefaultReplyDeadlineUrgent,
			ReplyDeadline:       DefaultReplyDeadline,
			MonitorWindow:       DefaultMonitorWindow,
			LedgerHalfLife:      DefaultLedgerHalfLife,
			Workers:             DefaultWorkers,
			BatchSize:           DefaultBatchSize,
		},
		Feeds: defaultFeeds(),
		Schedules: map[string]string{
			StageIntake:   "*/15 * * * *",
			StageEvaluate: "5,20,35,50 * * * *",
			StageVerify:   "*/10 * * * *",
			StageDraft:    "*/10 * * * *",
			StageReplies:  "*/5 * * * *",
			StagePublish:  "* * * * *",
			StageMonitor:  "0 * * * *",
		},
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(logModeEnv); v != "" {
		c.Logging.Mode = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv(redisPassEnv); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv(archiveBucketEnv); v != "" {
		c.Archive.Bucket = v
	}
	if v := os.Getenv(awsRegionEnv); v != "" {
		c.Archive.Region = v
	}
	if v := os.Getenv(cohereAPIKeyEnv); v != "" {
		c.Providers.Cohere.APIKey = v
	}
	if v := os.Getenv(cohereModelEnv); v != "" {
		c.Providers.Cohere.Model = v
	}
	if v := os.Getenv(searchURLEnv); v != "" {
		c.Providers.Search.Endpoint = v
	}
	if v := os.Getenv(searchKeyEnv); v != "" {
		c.Providers.Search.APIKey = v
	}
	if v := os.Getenv(socialURLEnv); v != "" {
		c.Providers.Social.Endpoint = v
	}
	if v := os.Getenv(mailURLEnv); v != "" {
		c.Providers.Mail.Endpoint = v
	}
	if v := os.Getenv(mailKeyEnv); v != "" {
		c.Providers.Mail.APIKey = v
	}
	if v := os.Getenv(mailFromEnv); v != "" {
		c.Providers.Mail.From = v
	}
	if v := os.Getenv(editorsEmailEnv); v != "" {
		c.Providers.Mail.Editors = v
	}
	if v := os.Getenv("PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
}

// fillZeroes restores defaults for numeric policy values a partial YAML file left at zero.
func (c *Config) fillZeroes() {
	d := Default().Pipeline
	p := &c.Pipeline
	if p.DedupThreshold <= 0 || p.DedupThreshold > 1 {
		p.DedupThreshold = d.DedupThreshold
	}
	if p.DedupWindow <= 0 {
		p.DedupWindow = d.DedupWindow
	}
	if p.RejectBelow <= 0 {
		p.RejectBelow = d.RejectBelow
	}
	if p.ApproveAt <= p.RejectBelow {
		p.ApproveAt = d.ApproveAt
	}
	if p.SearchBudget <= 0 {
		p.SearchBudget = d.SearchBudget
	}
	if p.MinCredibleSources <= 0 {
		p.MinCredibleSources = d.MinCredibleSources
	}
	if p.MinPrimaryCitations <= 0 {
		p.MinPrimaryCitations = d.MinPrimaryCitations
	}
	if p.CredibleThreshold <= 0 {
		p.CredibleThreshold = d.CredibleThreshold
	}
	if p.DraftRetryBudget < 0 {
		p.DraftRetryBudget = d.DraftRetryBudget
	}
	if p.MaxRevisions <= 0 {
		p.MaxRevisions = d.MaxRevisions
	}
	if p.ReadingLevelMin <= 0 || p.ReadingLevelMax <= p.ReadingLevelMin {
		p.ReadingLevelMin, p.ReadingLevelMax = d.ReadingLevelMin, d.ReadingLevelMax
	}
	if p.MaxWords <= 0 {
		p.MaxWords = d.MaxWords
	}
	if p.ReplyDeadlineUrgent <= 0 {
		p.ReplyDeadlineUrgent = d.ReplyDeadlineUrgent
	}
	if p.ReplyDeadline <= 0 {
		p.ReplyDeadline = d.ReplyDeadline
	}
	if p.MonitorWindow <= 0 {
		p.MonitorWindow = d.MonitorWindow
	}
	if p.LedgerHalfLife <= 0 {
		p.LedgerHalfLife = d.LedgerHalfLife
	}
	if p.Workers <= 0 {
		p.Workers = d.Workers
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	if c.Providers.Timeout <= 0 {
		c.Providers.Timeout = DefaultProviderTimeout
	}
	if c.Providers.Attempts == 0 {
		c.Providers.Attempts = DefaultProviderRetries
	}
	if c.Schedules == nil {
		c.Schedules = Default().Schedules
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
