package config

import "time"

// ViewerConfig contains viewing-session and token configuration.
type ViewerConfig struct {
	// SessionTTL is the lifetime of a viewing session and of each issued token.
	// Rotation slides the session's expiry forward by this amount; it is both
	// the token lifetime and the idle/abandonment timeout.
	SessionTTL time.Duration `env:"VIEWER_SESSION_TTL" envDefault:"30m"`

	// TokenSigningKey is the HMAC key used to sign viewer access tokens.
	// Injected into the token service at construction; never read from
	// ambient state at issue/verify time.
	TokenSigningKey string `env:"VIEWER_TOKEN_SIGNING_KEY,required"`

	// StorageRoot is the directory the local object store serves document
	// bytes from.
	StorageRoot string `env:"VIEWER_STORAGE_ROOT" envDefault:"./storage"`
}

// Sanitize applies guardrails to viewer configuration values.
func (v *ViewerConfig) Sanitize() {
	if v.SessionTTL < time.Minute {
		v.SessionTTL = time.Minute
	}
	if v.StorageRoot == "" {
		v.StorageRoot = "./storage"
	}
}

// SweeperConfig contains expired-session sweeper configuration.
// The sweeper is storage hygiene only: lazy expiry on validate is what
// keeps lapsed sessions from being used.
type SweeperConfig struct {
	// Interval is the sweeper tick interval.
	Interval time.Duration `env:"SWEEPER_INTERVAL" envDefault:"5m"`

	// Retention is how long closed/expired sessions are kept before deletion.
	Retention time.Duration `env:"SWEEPER_RETENTION" envDefault:"720h"` // 30 days

	// AuditRetention is how long access log entries are kept. Zero disables
	// audit pruning entirely; the log is append-only until then.
	AuditRetention time.Duration `env:"SWEEPER_AUDIT_RETENTION" envDefault:"0"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"SWEEPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	if s.Interval < time.Minute {
		s.Interval = time.Minute
	}
	if s.Retention < time.Hour {
		s.Retention = time.Hour
	}
	if s.AuditRetention != 0 && s.AuditRetention < 24*time.Hour {
		s.AuditRetention = 24 * time.Hour
	}
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.BatchSize > 10000 {
		s.BatchSize = 10000
	}
}
