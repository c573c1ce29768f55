package engine

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultMaxRetries      = 3
	DefaultBackoffBase     = 2
	DefaultBackoffUnit     = time.Second
	DefaultFetchTimeout    = 30 * time.Second
	DefaultClassifyTimeout = 20 * time.Second
	DefaultNotifyTimeout   = 10 * time.Second
)

// Config tunes retries and the timeouts of the three external calls of a run.
type Config struct {
	MaxRetries      int           `validate:"gte=1,lte=10"`
	BackoffBase     int           `validate:"gte=1"`
	BackoffUnit     time.Duration `validate:"gte=0"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	ClassifyTimeout time.Duration `validate:"gt=0"`
	NotifyTimeout   time.Duration `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		BackoffBase:     DefaultBackoffBase,
		BackoffUnit:     DefaultBackoffUnit,
		FetchTimeout:    DefaultFetchTimeout,
		ClassifyTimeout: DefaultClassifyTimeout,
		NotifyTimeout:   DefaultNotifyTimeout,
	}
}

func (c Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// Backoff is the delay before the fetch attempt that follows the retryCount-th
// recoverable failure: BackoffUnit * BackoffBase^retryCount.
func (c Config) Backoff(retryCount int) time.Duration {
	return time.Duration(float64(c.BackoffUnit) * math.Pow(float64(c.BackoffBase), float64(retryCount)))
}
