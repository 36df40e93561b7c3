// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package judge implements the evaluation collaborators: critique,
// scoring, difficulty classification, convergence checking, and final
// aggregation. All of them run over a single designated judge client.
package judge

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/beamline/services/refine"
)

const commenterSystemPrompt = "You are an expert reasoner and excel at assessing the quality of reasoning chains. \n" +
	"You will be given a question and a reasoning chain, and you are to assess how well" +
	" the reasoning chain does at answering the question both accurately and with sound logic. \n" +
	"In response, you will give comments. Your comments should be one to two sentences, and no more than two sentences. \n" +
	"Again, in assessing the reasoning chain, focus on both accuracy and " +
	"the logical structure of the response. Is the response making invalid assumptions? Could there be a better way to go about answering the question? \n" +
	"BE HARSH - think outside the box, just because an answer is " +
	"logically sound and organized, doesn't mean it is correct. Think creatively to find shortcomings of the answer, and note these in the comments\n" +
	"It is imperative that your response is just the two sentences, with no prefix."

const scorerSystemPrompt = "You are an expert reasoner and excel at scoring the quality of a pre-generated answer. \n" +
	"You will be given a question, a reasoning chain, and comments on that reasoning chain, and you are to " +
	"produce a numeric score of the answer. Respond with a decimal number out of 10, with high numbers representing " +
	"high quality responses and low numbers representing low quality responses. BE HARSH - only the finest answers should be " +
	"getting the highest marks. \n" +
	"It is imperative that your response is just the decimal score out of 10, like 3.5, 5.6, or 7.8."

const difficultySystemPrompt = "You are an expert at chain of thought reasoning and assessing the difficulty of a question. \n" +
	"You will be given a question, three different responses to the question, comments on the quality of those responses, and grades on those responses. \n" +
	"Using your knowledge of the question, your assessments of the answers, the comments, and grades, you are to assess the difficulty of the question. \n" +
	"If all responses are similar with high grades and comments, and you can verify their accuracy, it is probably an easier problem. On the other hand, if the " +
	"answers vary widely, that's probably a good sign the question is more challenging. \n" +
	"In response, you will simply return a number from 1 to 4, with 1 being an easy question and 4 being a very difficult question. Do not return anything else, just the integer grade on difficulty."

const convergenceSystemPrompt = "You are an expert at chain of thought reasoning and determining when a correct answer has been converged on. \n" +
	"You will be given a question and several reasoning chains containing revised responses to the question, and you are to assess if a correct answer has been converged on, or " +
	"if there is still more work to do. \n" +
	"Only determine the process is done, and an answer has been " +
	"converged on, when there are no more improvements to be made. \n" +
	"When you have concluded this, return \"PROCESS DONE\". Otherwise, return \"CONTINUE\". ONLY return one of these two things, and nothing else."

const aggregatorSystemPrompt = "You are an expert at putting complex chains of reasoning into more readable forms. \n" +
	"You will be given several reasoning chains in response to a question, with each reasoning chain containing multiple revised responses. \n" +
	"FOCUS ONLY ON THE FINAL RESPONSE IN EACH SEPARATE CHAIN, and use the comments and scores associated with each to combine the answers into one, combined answer \n" +
	"ONLY return this combined answer, no prefix or anything else"

// convergenceDone is the exact reply that signals convergence. Any
// other reply means continue.
const convergenceDone = "PROCESS DONE"

func commenterUserPrompt(question, text string) string {
	return fmt.Sprintf("Here is the question: %s \nHere is the reasoning chain: %s \n", question, text)
}

func scorerUserPrompt(question, text, comments string) string {
	return fmt.Sprintf("Here is the question: %s \nHere is the reasoning chain: %s \nHere are the comments: %s \n",
		question, text, comments)
}

// difficultyUserPrompt lays out each bootstrap thread's latest answer
// with its critique and score.
func difficultyUserPrompt(question string, evidence []*refine.ResponseThread) string {
	ordinals := []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth"}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is the question: %s \n", question)
	for i, thread := range evidence {
		latest, ok := thread.Latest()
		if !ok {
			continue
		}
		ordinal := fmt.Sprintf("#%d", i+1)
		if i < len(ordinals) {
			ordinal = ordinals[i]
		}
		fmt.Fprintf(&b, "Here is the %s response, comments on the response, and its grade: %s, %s, %g \n",
			ordinal, latest.Text, latest.Comments, latest.Score)
	}
	return b.String()
}

// renderChains lays out every thread's full history for the
// convergence and aggregation judges.
func renderChains(question string, pop *refine.Population) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the question: %s \n", question)
	b.WriteString("Here are the reasoning chains: \n")
	for i, thread := range pop.Threads {
		fmt.Fprintf(&b, "Chain %d (backend %s):\n", i+1, thread.AgentIdentity)
		for j, entry := range thread.History {
			fmt.Fprintf(&b, "  Revision %d: %s\n", j, entry.Text)
			if entry.Comments != "" {
				fmt.Fprintf(&b, "  Comments: %s\n", entry.Comments)
			}
			if entry.Scored {
				fmt.Fprintf(&b, "  Score: %g\n", entry.Score)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
