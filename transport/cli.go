// Copyright 2019 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"time"

	"github.com/spf13/pflag"
)

// Config holds the client-side retry/circuit-breaker tuning shared by every
// outbound HTTP client this module builds (Schema Registry, ksqlDB REST).
type Config struct {
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxRetries      uint8
	CircuitBreakerTimeout time.Duration
}

// RegisterFlags registers outbound HTTP client flags with pflag.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.DurationVar(&c.RetryInitialInterval, "http-retry-initial-interval", 100*time.Millisecond, "initial backoff interval for retried HTTP requests")
	flags.DurationVar(&c.RetryMaxInterval, "http-retry-max-interval", 10*time.Second, "max backoff interval for retried HTTP requests")
	flags.Uint8Var(&c.RetryMaxRetries, "http-retry-max-retries", 5, "max retry attempts for a retriable HTTP request")
	flags.DurationVar(&c.CircuitBreakerTimeout, "http-circuit-breaker-timeout", 30*time.Second, "per-request timeout before the circuit breaker counts a failure")
}
