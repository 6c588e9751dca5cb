package reasoning

import (
	"fmt"
	"strings"

	"github.com/HexSleeves/ponder/internal/llm"
)

// Delimiters around private reasoning.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

// DefaultReasoningTokenCap bounds each private reasoning call.
const DefaultReasoningTokenCap = 1024

// ReasoningPrompt opens every run. It asks for private step-by-step work and
// forbids a final answer until the finalize directive arrives.
const ReasoningPrompt = `You are a careful reasoner working through a problem before answering.

Think step by step inside a single ` + ThinkOpen + ` ... ` + ThinkClose + ` block.
- Restate what is actually being asked.
- Surface the assumptions the question makes and check whether they hold.
- Point out ambiguities, false premises or fallacies in the question.
- Work through the problem, checking each step.

Do not give a final answer yet. Only output your thinking.`

// ContinuePrompt is inserted between reasoning rounds.
const ContinuePrompt = `Keep thinking. Review your previous reasoning, look for mistakes or gaps, and go deeper. Do not give a final answer yet. Only output your thinking inside ` + ThinkOpen + ` ... ` + ThinkClose + `.`

// FinalizePrompt ends the reasoning phase.
const FinalizePrompt = `Stop thinking now. Using your reasoning above, write the final answer for the user.
Do not include the ` + ThinkOpen + ` block or refer to it. Format the answer as Markdown.`

// wrapThought re-wraps a stripped thought so later calls see it as prior
// reasoning.
func wrapThought(thought string) string {
	return ThinkOpen + "\n" + thought + "\n" + ThinkClose
}

// fileMessage labels an auxiliary file with its origin and fences its
// content verbatim.
func fileMessage(f llm.FileContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", f.Path)
	b.WriteString("```\n")
	b.WriteString(f.Content)
	if !strings.HasSuffix(f.Content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	return b.String()
}
