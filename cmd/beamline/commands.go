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
	"github.com/spf13/cobra"
)

var (
	configPath string
	tierFlag   int
	quietFlag  bool

	rootCmd = &cobra.Command{
		Use:   "beamline",
		Short: "A cli for adaptive beam-search answer refinement across LLM backends",
		Long: `Beamline answers a question by generating several reasoning
threads across different LLM backends, scoring and pruning them with
beam search, and revising the survivors until they converge.`,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Refine an answer to a question through beam-search revision",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk, // Defined in cmd_ask.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress log output on stderr")

	askCmd.Flags().IntVar(&tierFlag, "tier", 0, "force a difficulty tier (1-4) and skip classification")

	rootCmd.AddCommand(askCmd)
}
