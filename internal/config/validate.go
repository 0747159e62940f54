package config

import (
	"time"

	validation "github.com/jellydator/validation"
)

// Validate rejects settings the service cannot start with. Master keys are
// checked later, when the chain is loaded, since some commands run without them.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerPort, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.MetricsPort, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.DBDriver, validation.Required, validation.In("postgres", "mysql")),
		validation.Field(&c.DBConnectionString, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.RateLimitRequestsPerSec, validation.When(c.RateLimitEnabled, validation.Required, validation.Min(0.0))),
		validation.Field(&c.RateLimitBurst, validation.When(c.RateLimitEnabled, validation.Required, validation.Min(1))),
		validation.Field(&c.MetricsNamespace, validation.When(c.MetricsEnabled, validation.Required)),
		validation.Field(&c.KMSKeyURI, validation.When(c.KMSProvider != "", validation.Required)),
		validation.Field(&c.DefaultAlgorithm, validation.In("aes-gcm", "chacha20-poly1305")),
		validation.Field(&c.RotationConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.KeyDestroyGracePeriod, validation.Min(time.Duration(0))),
		validation.Field(&c.RotationSchedulerInterval,
			validation.When(c.RotationSchedulerEnabled, validation.Required, validation.Min(time.Minute))),
		validation.Field(&c.KeyBackupBucketURL, validation.Required),
		validation.Field(&c.LockBackend, validation.In("local", "redis")),
		validation.Field(&c.RedisURL, validation.When(c.LockBackend == "redis", validation.Required)),
		validation.Field(&c.LockTTL, validation.When(c.LockBackend == "redis", validation.Required, validation.Min(time.Second))),
	)
}
