// Copyright 2024 SpotHero
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

package registry

import (
	"net/http"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spothero/ksqlstream/transport"
)

// Config defines the necessary configuration for interacting with the
// Kafka Schema Registry, following spothero-tools/kafka's
// SchemaRegistryConfig convention.
type Config struct {
	URL                  string
	RegisterRetries      int
	RetrieveRetries      int
	CompatibilityRetries int
	// BasicAuthUserInfo holds "username:password" credentials for schema
	// registries deployed behind HTTP basic auth (Confluent Cloud's
	// USER_INFO source), matching the spec's basic_auth_user_info option.
	BasicAuthUserInfo string
}

// RegisterFlags registers schema registry flags with pflag.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.URL, "schema-registry-url", "http://localhost:8081", "Kafka schema registry URL")
	flags.IntVar(&c.RegisterRetries, "schema-registry-register-retries", 5, "max attempts for schema registration")
	flags.IntVar(&c.RetrieveRetries, "schema-registry-retrieve-retries", 3, "max attempts for schema retrieval")
	flags.IntVar(&c.CompatibilityRetries, "schema-registry-compatibility-retries", 2, "max attempts for compatibility checks")
	flags.StringVar(&c.BasicAuthUserInfo, "schema-registry-basic-auth-user-info", "", "schema registry basic auth credentials as username:password")
}

// basicAuthRoundTripper attaches a fixed Basic Authorization header to
// every outgoing request, the schema registry's USER_INFO auth source.
type basicAuthRoundTripper struct {
	http.RoundTripper
	username, password string
}

func (rt basicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(rt.username, rt.password)
	return rt.RoundTripper.RoundTrip(req)
}

// NewClient builds a Client around an HTTP client carrying the standard
// retry/circuit-breaker/metrics round-tripper chain, plus basic auth when
// BasicAuthUserInfo is set. httpCfg supplies the shared retry tuning; 409
// Conflict is added to the retriable set beyond httpCfg's defaults, since a
// concurrent schema registration race surfaces as a Conflict that a retry
// will usually resolve.
func (c Config) NewClient(httpCfg transport.Config, metrics transport.Metrics) *Client {
	circuitBreakerRT := transport.NewDefaultCircuitBreakerRoundTripper(http.DefaultTransport)
	retryRT := transport.NewRetryRoundTripper(httpCfg, circuitBreakerRT, http.StatusConflict)
	var rt http.RoundTripper = retryRT
	if user, pass, ok := strings.Cut(c.BasicAuthUserInfo, ":"); ok {
		rt = basicAuthRoundTripper{RoundTripper: rt, username: user, password: pass}
	}
	metricsRT := transport.MetricsRoundTripper{RoundTripper: rt, Metrics: metrics}
	return NewClient(&http.Client{Transport: metricsRT}, c.URL)
}
