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

// Command ksqlstream wires the ambient stack (flags, environment binding,
// logging, tracing, outbound HTTP tuning) around a streaming.Context and
// blocks until interrupted. It intentionally does not declare any entity
// types of its own: entity registration and the EntitySet operations built
// on top of the Context are an application concern, not this module's.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/cli"
	"github.com/spothero/ksqlstream/entity"
	"github.com/spothero/ksqlstream/kafkatransport"
	"github.com/spothero/ksqlstream/ksql"
	"github.com/spothero/ksqlstream/log"
	"github.com/spothero/ksqlstream/registry"
	"github.com/spothero/ksqlstream/serde"
	"github.com/spothero/ksqlstream/streaming"
	"github.com/spothero/ksqlstream/tracing"
	"github.com/spothero/ksqlstream/transport"
)

func main() {
	var (
		logCfg      log.Config
		tracingCfg  tracing.Config
		httpCfg     transport.Config
		kafkaCfg    kafkatransport.ClientConfig
		registryCfg registry.Config
		ksqlURL     string
	)

	cmd := &cobra.Command{
		Use:               "ksqlstream",
		Short:             "Run the ksqlstream entity-streaming process",
		PersistentPreRun:  cli.CobraBindEnvironmentVariables("ksqlstream"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logCfg, tracingCfg, httpCfg, kafkaCfg, registryCfg, ksqlURL)
		},
	}

	flags := cmd.Flags()
	logCfg.RegisterFlags(flags)
	tracingCfg.RegisterFlags(flags)
	httpCfg.RegisterFlags(flags)
	kafkaCfg.RegisterFlags(flags)
	registryCfg.RegisterFlags(flags)
	flags.StringVar(&ksqlURL, "ksql-url", "http://localhost:8088", "ksqlDB REST API base URL")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Get(ctx).Fatal("ksqlstream exited with error", zap.Error(err))
	}
}

// run wires the full dependency graph a streaming.Context needs and blocks
// until ctx is canceled.
func run(
	ctx context.Context,
	logCfg log.Config,
	tracingCfg tracing.Config,
	httpCfg transport.Config,
	kafkaCfg kafkatransport.ClientConfig,
	registryCfg registry.Config,
	ksqlURL string,
) error {
	if err := logCfg.InitializeLogger(); err != nil {
		return err
	}
	logger := log.Get(ctx)

	if closer := tracingCfg.ConfigureTracer(); closer != nil {
		defer closer.Close()
	}

	metrics := transport.NewMetrics(nil, true)

	kafkaClient, err := kafkaCfg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer kafkaClient.Close(ctx)

	registryClient := registryCfg.NewClient(httpCfg, metrics)
	coordinator := registry.NewCoordinator(registryClient, registryCfg)
	cache := serde.NewCache()

	circuitBreakerRT := transport.NewDefaultCircuitBreakerRoundTripper(http.DefaultTransport)
	circuitBreakerRT.WithDefaultTimeout(httpCfg.CircuitBreakerTimeout)
	retryRT := transport.NewRetryRoundTripper(httpCfg, circuitBreakerRT)
	ksqlHTTPClient := &http.Client{
		Transport: transport.MetricsRoundTripper{RoundTripper: retryRT, Metrics: metrics},
	}
	ksqlClient := ksql.NewRESTClient(ksqlHTTPClient, ksqlURL)

	streamCtx := streaming.NewContext(kafkaClient, cache, coordinator, ksqlClient, entity.Strict, logger)
	_ = streamCtx // held for application code registering entities against this process

	logger.Info("ksqlstream running", zap.Strings("brokers", kafkaCfg.Brokers), zap.String("ksql_url", ksqlURL))
	<-ctx.Done()
	logger.Info("ksqlstream shutting down")
	return nil
}
