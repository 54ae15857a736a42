// Copyright 2026 The Orchestrator Kernel Authors
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

// Command kerneld boots the orchestration Kernel from environment
// configuration and serves POST /orchestrate, GET /health and GET
// /metrics until terminated (spec §6).
//
// Exit codes:
//
//	0  clean shutdown
//	1  fatal configuration or startup error
//	2  the HTTP server or the gRPC health listener failed while running;
//	   storage errors after startup do not end the process
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/kernel"
	"github.com/kernelmesh/orchestrator/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = config.LoadDotEnv("")
	cfg := config.FromEnvironment()

	if path := os.Getenv("KERNEL_CONFIG_FILE"); path != "" {
		loaded, err := config.LoadFromYAML(path, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading KERNEL_CONFIG_FILE: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid KERNEL_LOG_LEVEL: %v\n", err)
		return 1
	}
	logger.Init(level, os.Stdout, cfg.LogFormat)
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k, err := kernel.New(ctx, cfg)
	if err != nil {
		log.Error("kernel startup failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := k.Close(shutdownCtx); err != nil {
			log.Error("kernel shutdown error", "error", err)
		}
	}()

	if cfg.AutoCycleEvery > 0 {
		go runAutoCycle(ctx, k, cfg.AutoCycleEvery, log)
	}

	if err := k.Start(ctx, cfg.ListenAddr); err != nil {
		log.Error("server error", "error", err)
		return 2
	}

	log.Info("shutdown complete")
	return 0
}

// runAutoCycle periodically runs the Cognitive Engine's autonomous cycle
// (summarization, modality sync, retention sweep) over every known
// session (spec §4.8).
func runAutoCycle(ctx context.Context, k *kernel.Kernel, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sessionID := range k.Sessions.ListSessions() {
				report := k.Cognitive.RunAutonomousCycle(ctx, sessionID)
				if report.SummaryErr != nil {
					log.Warn("autosummarize failed", "session", sessionID, "error", report.SummaryErr)
				}
				if report.VisionErr != nil {
					log.Warn("vision sync failed", "session", sessionID, "error", report.VisionErr)
				}
				if report.AudioErr != nil {
					log.Warn("audio sync failed", "session", sessionID, "error", report.AudioErr)
				}
				if report.RetentionErr != nil {
					log.Warn("retention sweep failed", "session", sessionID, "error", report.RetentionErr)
				}
			}
		}
	}
}
