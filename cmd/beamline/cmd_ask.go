// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/beamline/pkg/logging"
	"github.com/AleutianAI/beamline/services/refine"
	"github.com/AleutianAI/beamline/services/refine/generate"
	"github.com/AleutianAI/beamline/services/refine/judge"
	"github.com/AleutianAI/beamline/services/refine/llm"
	"github.com/AleutianAI/beamline/services/refine/phases"
	"github.com/AleutianAI/beamline/services/refine/tools"
)

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "beamline",
		JSON:    cfg.Logging.JSON,
		Quiet:   quietFlag,
	})
	defer logger.Close()
	slogger := logger.Slog()

	order, err := cfg.rotationOrder()
	if err != nil {
		return err
	}
	rotation, err := refine.NewRotation(order)
	if err != nil {
		return err
	}

	clients, err := buildClients(cfg, order, slogger)
	if err != nil {
		return err
	}

	judgeClient, err := buildJudgeClient(cfg, slogger)
	if err != nil {
		return err
	}

	runner, err := generate.NewRunner(clients, judgeClient, tools.NewRegistry(),
		generate.WithRunnerLogger(slogger),
		generate.WithMaxTokens(cfg.Run.MaxTokens),
		generate.WithTemperature(cfg.Run.Temperature),
		generate.WithMaxToolIterations(maxToolIterations(cfg)),
	)
	if err != nil {
		return err
	}

	evaluator, err := judge.New(judgeClient,
		judge.WithLogger(slogger),
		judge.WithMaxTokens(cfg.Run.MaxTokens),
	)
	if err != nil {
		return err
	}

	registry, err := phases.NewRegistry(phases.Dependencies{
		Generator:  runner,
		Critic:     evaluator,
		Scorer:     evaluator,
		Classifier: evaluator,
		Judge:      evaluator,
		Aggregator: evaluator,
		Logger:     slogger,
	})
	if err != nil {
		return err
	}

	engine := refine.NewEngine(registry, rotation,
		refine.WithLogger(slogger),
		refine.WithTimeout(cfg.Run.Timeout.Std()),
	)

	var override *refine.RunConfig
	if tierFlag != 0 {
		tierCfg, err := refine.ConfigForTier(tierFlag)
		if err != nil {
			return err
		}
		override = &tierCfg
	}

	result, err := engine.Run(cmd.Context(), question, override)
	if err != nil {
		return err
	}

	slogger.Info("run finished",
		slog.Int("rounds", result.Rounds),
		slog.Int("llm_calls", result.LLMCalls),
		slog.Duration("duration", result.Duration),
	)
	fmt.Println(result.FinalText)
	return nil
}

// buildClients constructs one adapter per backend in the rotation.
func buildClients(cfg Config, order []refine.BackendID, logger *slog.Logger) (map[refine.BackendID]llm.Client, error) {
	clients := make(map[refine.BackendID]llm.Client, len(order))
	for _, backend := range order {
		client, err := buildBackendClient(cfg, backend, logger)
		if err != nil {
			return nil, err
		}
		clients[backend] = client
	}
	return clients, nil
}

func buildBackendClient(cfg Config, backend refine.BackendID, logger *slog.Logger) (llm.Client, error) {
	bc := cfg.Backends[backend.String()]
	key := cfg.apiKey(backend.String())

	switch backend {
	case refine.BackendOpenAI:
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:            key,
			Model:             bc.Model,
			RequestsPerMinute: bc.RequestsPerMinute,
			Logger:            logger,
		})
	case refine.BackendAnthropic:
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:            key,
			Model:             bc.Model,
			RequestsPerMinute: bc.RequestsPerMinute,
			Logger:            logger,
		})
	case refine.BackendMistral:
		return llm.NewMistralClient(llm.MistralConfig{
			APIKey:            key,
			Model:             bc.Model,
			RequestsPerMinute: bc.RequestsPerMinute,
			Logger:            logger,
		})
	default:
		return nil, fmt.Errorf("no adapter for backend %q", backend)
	}
}

// buildJudgeClient constructs the client shared by all evaluation
// calls and the summarization step.
func buildJudgeClient(cfg Config, logger *slog.Logger) (llm.Client, error) {
	backend := refine.BackendID(cfg.Judge.Backend)
	judgeCfg := cfg
	if cfg.Judge.Model != "" {
		backends := make(map[string]BackendConfig, len(cfg.Backends)+1)
		for k, v := range cfg.Backends {
			backends[k] = v
		}
		bc := backends[backend.String()]
		bc.Model = cfg.Judge.Model
		backends[backend.String()] = bc
		judgeCfg.Backends = backends
	}
	return buildBackendClient(judgeCfg, backend, logger)
}

func maxToolIterations(cfg Config) int {
	if cfg.Run.MaxToolIterations > 0 {
		return cfg.Run.MaxToolIterations
	}
	return generate.DefaultMaxToolIterations
}
