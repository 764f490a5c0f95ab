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

// Package kafkatransport wraps github.com/IBM/sarama into the producer
// and consumer primitives streaming.EntitySet builds on, following
// spothero-tools/kafka's Client/Producer/Consumer shape but driven by
// entity.Descriptor instead of bespoke per-topic wiring.
package kafkatransport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"

	"github.com/spothero/ksqlstream/log"
)

// ClientConfig contains connection settings for a Kafka cluster.
type ClientConfig struct {
	Brokers      []string
	ClientID     string
	TLSCaCrtPath string
	TLSCrtPath   string
	TLSKeyPath   string
	Verbose      bool
	KafkaVersion string

	// GroupID identifies the consumer group a Consumer built from this
	// config joins. Two clients with the same Brokers/ClientID but
	// different GroupID are pooled separately: they drive independent
	// consumer-group membership even though they could share a producer.
	GroupID string

	// AutoOffsetReset controls where a consumer with no committed offset
	// starts reading: "earliest" (pull-query-backing consumption, the
	// default) or "latest".
	AutoOffsetReset string
	// EnableAutoCommit toggles sarama's background offset commit loop.
	EnableAutoCommit      bool
	SessionTimeout        time.Duration
	HeartbeatInterval     time.Duration
	MaxPollInterval       time.Duration
	FetchMinBytes         int32
	FetchMaxBytes         int32

	// MaxInFlightRequests bounds in-flight produce requests per
	// connection; combined with idempotent production this preserves
	// per-partition send order even across retries.
	MaxInFlightRequests int
}

// RegisterFlags registers Kafka client flags with pflag.
func (c *ClientConfig) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringSliceVarP(&c.Brokers, "kafka-brokers", "b", []string{"kafka:29092"}, "Kafka broker addresses")
	flags.StringVar(&c.ClientID, "kafka-client-id", "ksqlstream", "Kafka client ID")
	flags.StringVar(&c.TLSCaCrtPath, "kafka-server-ca-crt-path", "", "Kafka server TLS CA certificate path")
	flags.StringVar(&c.TLSCrtPath, "kafka-client-crt-path", "", "Kafka client TLS certificate path")
	flags.StringVar(&c.TLSKeyPath, "kafka-client-key-path", "", "Kafka client TLS key path")
	flags.BoolVar(&c.Verbose, "kafka-verbose", false, "Log Kafka client internals verbosely")
	flags.StringVar(&c.KafkaVersion, "kafka-version", "3.0.0", "Kafka broker version")
	flags.StringVar(&c.GroupID, "kafka-consumer-group-id", "ksqlstream", "Kafka consumer group ID")
	flags.StringVar(&c.AutoOffsetReset, "kafka-auto-offset-reset", "earliest", "Kafka offset reset policy: earliest or latest")
	flags.BoolVar(&c.EnableAutoCommit, "kafka-enable-auto-commit", true, "enable Kafka consumer group auto-commit")
	flags.DurationVar(&c.SessionTimeout, "kafka-session-timeout", 10*time.Second, "Kafka consumer group session timeout")
	flags.DurationVar(&c.HeartbeatInterval, "kafka-heartbeat-interval", 3*time.Second, "Kafka consumer group heartbeat interval")
	flags.DurationVar(&c.MaxPollInterval, "kafka-max-poll-interval", 5*time.Minute, "Kafka consumer group max poll interval")
	flags.Int32Var(&c.FetchMinBytes, "kafka-fetch-min-bytes", 1, "Kafka consumer fetch.min.bytes")
	flags.Int32Var(&c.FetchMaxBytes, "kafka-fetch-max-bytes", 52428800, "Kafka consumer fetch.max.bytes")
	flags.IntVar(&c.MaxInFlightRequests, "kafka-max-in-flight-requests", 1, "Kafka producer max in-flight requests per connection")
}

// Client wraps a sarama.Client, pooled by (bootstrap_servers, client_id,
// group_id) so that multiple entity producers/consumers sharing a cluster
// connection reuse a single underlying TCP pool.
type Client struct {
	ClientConfig
	Sarama        sarama.Client
	metricsCancel context.CancelFunc
}

var (
	poolMu sync.Mutex
	pool   = map[string]Client{}
)

// poolKey identifies a pooled Client by bootstrap servers, client ID, and
// consumer group ID: producers and consumers sharing the first two but
// targeting different groups must not share a pooled client, since
// sarama.Client bakes GroupID into its owning consumer group session.
// Codec identity is intentionally not part of the key: the underlying
// TCP connection is shared across entities regardless of which Avro
// schema they use.
func poolKey(c ClientConfig) string {
	return strings.Join(c.Brokers, ",") + "|" + c.ClientID + "|" + c.GroupID
}

// NewClient returns a pooled Client for this configuration, creating one
// on first use.
func (c ClientConfig) NewClient(ctx context.Context) (Client, error) {
	poolMu.Lock()
	defer poolMu.Unlock()
	key := poolKey(c)
	if existing, ok := pool[key]; ok {
		return existing, nil
	}
	client, err := c.newClient(ctx)
	if err != nil {
		return Client{}, err
	}
	pool[key] = client
	return client, nil
}

func (c ClientConfig) newClient(ctx context.Context) (Client, error) {
	if c.Verbose {
		saramaLogger, err := zap.NewStdLogAt(log.Get(ctx).Named("sarama"), zapcore.InfoLevel)
		if err != nil {
			return Client{}, xerrors.Errorf("verbose was requested but failed to create zap standard logger: %w", err)
		}
		sarama.Logger = saramaLogger
	}

	kafkaConfig := sarama.NewConfig()
	kafkaVersion, err := sarama.ParseKafkaVersion(c.KafkaVersion)
	if err != nil {
		return Client{}, err
	}
	kafkaConfig.Version = kafkaVersion
	kafkaConfig.ClientID = c.ClientID

	// acks=all, idempotence, and a single in-flight request per
	// connection together preserve send order within a partition even
	// across retries, matching the order guarantee the ksqlDB emit path
	// relies on.
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Compression = sarama.CompressionSnappy
	maxInFlight := c.MaxInFlightRequests
	if maxInFlight == 0 {
		maxInFlight = 1
	}
	kafkaConfig.Net.MaxOpenRequests = maxInFlight

	kafkaConfig.Consumer.Return.Errors = true
	kafkaConfig.Consumer.Offsets.AutoCommit.Enable = c.EnableAutoCommit
	switch strings.ToLower(c.AutoOffsetReset) {
	case "latest":
		kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	if c.SessionTimeout > 0 {
		kafkaConfig.Consumer.Group.Session.Timeout = c.SessionTimeout
	}
	if c.HeartbeatInterval > 0 {
		kafkaConfig.Consumer.Group.Heartbeat.Interval = c.HeartbeatInterval
	}
	if c.MaxPollInterval > 0 {
		kafkaConfig.Consumer.MaxProcessingTime = c.MaxPollInterval
	}
	if c.FetchMinBytes > 0 {
		kafkaConfig.Consumer.Fetch.Min = c.FetchMinBytes
	}
	if c.FetchMaxBytes > 0 {
		kafkaConfig.Consumer.Fetch.Max = c.FetchMaxBytes
	}

	if c.TLSCrtPath != "" && c.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCrtPath, c.TLSKeyPath)
		if err != nil {
			return Client{}, xerrors.Errorf("failed to load Kafka client TLS key pair: %w", err)
		}
		kafkaConfig.Net.TLS.Config = &tls.Config{Certificates: []tls.Certificate{cert}}
		kafkaConfig.Net.TLS.Enable = true
		if c.TLSCaCrtPath != "" {
			caCert, err := os.ReadFile(c.TLSCaCrtPath)
			if err != nil {
				return Client{}, xerrors.Errorf("failed to load Kafka server CA certificate: %w", err)
			}
			caCertPool := x509.NewCertPool()
			caCertPool.AppendCertsFromPEM(caCert)
			kafkaConfig.Net.TLS.Config.RootCAs = caCertPool
		}
	}

	saramaClient, err := sarama.NewClient(c.Brokers, kafkaConfig)
	if err != nil {
		return Client{}, xerrors.Errorf("failed to create Kafka client: %w", err)
	}

	metricsCtx, cancel := context.WithCancel(ctx)
	kafkaConfig.MetricRegistry = metrics.NewRegistry()
	c.recordBrokerMetrics(metricsCtx, 500*time.Millisecond, kafkaConfig.MetricRegistry)

	return Client{ClientConfig: c, Sarama: saramaClient, metricsCancel: cancel}, nil
}

// Close closes the underlying sarama client and stops metrics collection.
func (c Client) Close(ctx context.Context) {
	if c.metricsCancel != nil {
		c.metricsCancel()
	}
	if err := c.Sarama.Close(); err != nil {
		log.Get(ctx).Error("error closing Kafka client", zap.Error(err))
	}
	poolMu.Lock()
	delete(pool, poolKey(c.ClientConfig))
	poolMu.Unlock()
}

func (c ClientConfig) updateBrokerMetrics(registry metrics.Registry, gauges map[string]*prometheus.GaugeVec) {
	registry.Each(func(name string, i interface{}) {
		var value float64
		switch m := i.(type) {
		case metrics.Meter:
			value = m.Snapshot().Rate1()
		case metrics.Histogram:
			values := m.Snapshot().Sample().Values()
			if len(values) > 0 {
				value = float64(values[len(values)-1])
			}
		default:
			log.Get(context.Background()).Warn(
				"unknown metric type exporting sarama metrics",
				zap.String("type", reflect.TypeOf(m).String()))
			return
		}
		promName := strings.ReplaceAll(name, "-", "_")
		gauge, ok := gauges[promName]
		if !ok {
			gauge = prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Namespace: "sarama", Name: promName, Help: name},
				[]string{"client"},
			)
			prometheus.MustRegister(gauge)
			gauges[promName] = gauge
		}
		gauge.With(prometheus.Labels{"client": c.ClientID}).Set(value)
	})
}

func (c ClientConfig) recordBrokerMetrics(ctx context.Context, interval time.Duration, registry metrics.Registry) {
	ticker := time.NewTicker(interval)
	gauges := make(map[string]*prometheus.GaugeVec)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.updateBrokerMetrics(registry, gauges)
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}
