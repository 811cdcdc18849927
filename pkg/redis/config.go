package redis

import "time"

// Config describes the redis connection and the key layout of Storage.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" yaml:"url"`                                          // ConnectionURL is in the format "redis://:password@localhost:6379/0". Empty disables redis.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3" yaml:"retry_attempts"`     // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s" yaml:"retry_interval"`    // RetryInterval is the pause between connection attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"15s" yaml:"connect_timeout"` // ConnectTimeout bounds all connection attempts together.
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"oidc:" yaml:"key_prefix"`         // KeyPrefix namespaces every key written by Storage.
	TTL            time.Duration `env:"REDIS_TTL" envDefault:"0s" yaml:"ttl"`                          // TTL expires stored values; zero keeps them forever.
	ScanBatchSize  int64         `env:"REDIS_SCAN_BATCH_SIZE" envDefault:"500" yaml:"scan_batch_size"` // ScanBatchSize is the COUNT hint used by Keys.
}
