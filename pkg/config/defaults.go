package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Repository defaults
	DefaultRepositoryBackend = "memory"
	DefaultFileDebounce      = 250 * time.Millisecond
	DefaultGitBranch         = "main"
	DefaultGitPollInterval   = time.Minute
	DefaultGitFetchTimeout   = 30 * time.Second
	DefaultCacheTTL          = 30 * time.Second

	// Audit defaults
	DefaultAuditBackend        = "sqlite"
	DefaultAuditSQLitePath     = "data/audit.db"
	DefaultAuditBusyTimeout    = 5 * time.Second
	DefaultAuditBuffer         = 1024
	DefaultAuditWriteTimeout   = 5 * time.Second
	DefaultRetentionDays       = 90
	DefaultRetentionSchedule   = "0 3 * * *"
	DefaultRetentionMaxRecords = int64(0)
	DefaultArchivePath         = "data/archives"

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Metrics defaults
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "guardrail"
)

// DefaultConfig returns a fully populated configuration. Loading
// unmarshals YAML onto this tree, so keys absent from the file keep
// their defaults and an explicit false survives for the boolean fields
// that default to true.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			RequestTimeout:  DefaultRequestTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
		},
		Repository: RepositoryConfig{
			Backend: DefaultRepositoryBackend,
			File: FilePackConfig{
				DebounceInterval: DefaultFileDebounce,
			},
			Git: GitPackConfig{
				Branch:       DefaultGitBranch,
				PollInterval: DefaultGitPollInterval,
				FetchTimeout: DefaultGitFetchTimeout,
			},
			Cache: CacheConfig{
				Enabled: true,
				TTL:     DefaultCacheTTL,
			},
		},
		Audit: AuditConfig{
			Enabled: true,
			Backend: DefaultAuditBackend,
			SQLite: AuditSQLiteConfig{
				Path:        DefaultAuditSQLitePath,
				BusyTimeout: DefaultAuditBusyTimeout,
			},
			Recorder: AuditRecorderConfig{
				Buffer:       DefaultAuditBuffer,
				WriteTimeout: DefaultAuditWriteTimeout,
			},
			Retention: RetentionConfig{
				Days:        DefaultRetentionDays,
				Schedule:    DefaultRetentionSchedule,
				MaxRecords:  DefaultRetentionMaxRecords,
				ArchivePath: DefaultArchivePath,
			},
			Export: ExportConfig{
				JSONPretty:       true,
				CSVIncludeHeader: true,
			},
		},
		Logging: LoggingConfig{
			Level:     DefaultLoggingLevel,
			Format:    DefaultLoggingFormat,
			RedactPII: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      DefaultMetricsPath,
			Namespace: DefaultMetricsNamespace,
		},
	}
}

// ApplyDefaults fills zero-valued fields with defaults. It never
// touches booleans, so a Config built by hand keeps explicit false
// values; DefaultConfig is the source of the boolean defaults. The
// function is idempotent.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Repository defaults
	if cfg.Repository.Backend == "" {
		cfg.Repository.Backend = DefaultRepositoryBackend
	}
	if cfg.Repository.File.DebounceInterval == 0 {
		cfg.Repository.File.DebounceInterval = DefaultFileDebounce
	}
	if cfg.Repository.Git.Branch == "" {
		cfg.Repository.Git.Branch = DefaultGitBranch
	}
	if cfg.Repository.Git.PollInterval == 0 {
		cfg.Repository.Git.PollInterval = DefaultGitPollInterval
	}
	if cfg.Repository.Git.FetchTimeout == 0 {
		cfg.Repository.Git.FetchTimeout = DefaultGitFetchTimeout
	}
	if cfg.Repository.Cache.TTL == 0 {
		cfg.Repository.Cache.TTL = DefaultCacheTTL
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditBusyTimeout
	}
	if cfg.Audit.Recorder.Buffer == 0 {
		cfg.Audit.Recorder.Buffer = DefaultAuditBuffer
	}
	if cfg.Audit.Recorder.WriteTimeout == 0 {
		cfg.Audit.Recorder.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Audit.Retention.ArchivePath == "" {
		cfg.Audit.Retention.ArchivePath = DefaultArchivePath
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
