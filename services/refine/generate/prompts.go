// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generate

import (
	"fmt"
	"strings"
)

// responseSystemPrompt instructs a backend producing an initial answer.
func responseSystemPrompt(toolNames []string) string {
	return "You are an expert reasoner and excel at answering complex questions.\n" +
		"You will be given a complex question, and you must use chain of thought reasoning to come to your answer.\n" +
		toolLine(toolNames)
}

// revisionSystemPrompt instructs a backend improving a prior answer.
func revisionSystemPrompt(toolNames []string) string {
	return "You are an expert reasoner and excel at revising pre-generated answers to questions.\n" +
		"You will be given a question, a reasoning chain answering the question, and a set of comments " +
		"assessing the quality of the reasoning. You must improve upon this answer, using chain of thought reasoning to come to your revised answer.\n" +
		toolLine(toolNames)
}

// summarySystemPrompt instructs the summarizer condensing a trace.
const summarySystemPrompt = "You are an expert at putting complex chains of reasoning into more readable forms.\n" +
	"You will be given a reasoning chain in response to a question, and you are to put this chain into a more readable form, clearly describing each step and its output.\n" +
	"Here is the reasoning chain:"

func toolLine(toolNames []string) string {
	if len(toolNames) == 0 {
		return ""
	}
	return fmt.Sprintf("To help, you have access to the following tools: %s\n", strings.Join(toolNames, ", "))
}

// revisionUserPrompt assembles the revision input.
func revisionUserPrompt(question, prior, comments string) string {
	return fmt.Sprintf("Question: %s\n\nPrevious answer:\n%s\n\nComments on the answer:\n%s", question, prior, comments)
}
