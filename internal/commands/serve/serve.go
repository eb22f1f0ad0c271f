// Copyright 2026 The Isobox Authors
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

// Package serve implements `isobox serve-metrics`: a minimal HTTP server
// exposing the allocator and session instrument set for Prometheus to
// scrape. It does not accept or execute submissions itself; that surface
// belongs to the embedding application.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arborjudge/isobox/internal/config"
	"github.com/arborjudge/isobox/internal/metrics"
)

// NewCommand builds the `serve-metrics` subcommand.
func NewCommand(configPathFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics for the sandbox layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPathFlag)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Metrics.Enabled {
		fmt.Println("metrics disabled in config; nothing to serve")
		return nil
	}

	provider, err := metrics.NewProvider()
	if err != nil {
		return fmt.Errorf("starting metrics provider: %w", err)
	}
	defer provider.Shutdown(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", provider.Handler())

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
