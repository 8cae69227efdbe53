package redis

import (
	"errors"
	"time"
)

const (
	defaultAddr        = "localhost:6379"
	defaultKeyPrefix   = "chat"
	defaultTTL         = 24 * time.Hour
	defaultDialTimeout = 5 * time.Second
)

// Config holds the Redis connection and key space settings.
type Config struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix is the first segment of every key. Defaults to "chat".
	KeyPrefix string `yaml:"key_prefix"`

	// TTL is refreshed on every write to a session key. Defaults to 24h.
	TTL time.Duration `yaml:"ttl"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.DB < 0 {
		errs = append(errs, errors.New("redis: db must be non-negative"))
	}
	if c.TTL < 0 {
		errs = append(errs, errors.New("redis: ttl must be non-negative"))
	}
	return errors.Join(errs...)
}

// keyspace renders the per-user keys.
type keyspace struct {
	prefix string
}

func (k keyspace) messages(userID string) string { return k.prefix + ":" + userID + ":messages" }
func (k keyspace) summary(userID string) string  { return k.prefix + ":" + userID + ":summary" }
func (k keyspace) userContext(userID string) string {
	return k.prefix + ":" + userID + ":user_context"
}
func (k keyspace) count(userID string) string { return k.prefix + ":" + userID + ":count" }
func (k keyspace) lock(userID string) string  { return k.prefix + ":" + userID + ":summary_lock" }
