package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/threadsmith/agentgraph/llm"
)

// Scores are the four salience sub-scores, each in [0, 1].
type Scores struct {
	Importance    float64 `json:"importance"`
	Novelty       float64 `json:"novelty"`
	Contradiction float64 `json:"contradiction"`
	Risk          float64 `json:"risk"`
}

// Weights combine the sub-scores into one salience value. Risk counts
// against the total.
type Weights struct {
	Importance    float64
	Novelty       float64
	Contradiction float64
	Risk          float64
}

// DefaultWeights reflect that importance dominates, novelty and
// contradiction matter, and risky content is penalized.
var DefaultWeights = Weights{
	Importance:    0.4,
	Novelty:       0.3,
	Contradiction: 0.2,
	Risk:          0.1,
}

// DefaultThreshold gates memory writes without an explicit trigger.
const DefaultThreshold = 0.6

// Gate decides whether a candidate memory write is persisted.
type Gate struct {
	Threshold float64
	Weights   Weights
}

// NewGate creates a gate with the given threshold and default weights.
func NewGate(threshold float64) *Gate {
	return &Gate{Threshold: threshold, Weights: DefaultWeights}
}

// Combined computes the weighted salience value: risk subtracts from the
// weighted sum of the other three.
func (g *Gate) Combined(s Scores) float64 {
	w := g.Weights
	return w.Importance*s.Importance +
		w.Novelty*s.Novelty +
		w.Contradiction*s.Contradiction -
		w.Risk*s.Risk
}

// Accept reports whether the candidate should be persisted. An explicit
// trigger (a state-changing tool action such as ticket creation)
// bypasses the threshold entirely; otherwise the combined value must
// meet or exceed it. Rejected candidates are discarded, not queued.
func (g *Gate) Accept(s Scores, explicitTrigger bool) bool {
	if explicitTrigger {
		return true
	}
	return g.Combined(s) >= g.Threshold
}

const scorePrompt = `Analyze this conversation and compute salience scores (0.0-1.0) for:
1. importance: How critical is this information? (ticket creation, escalation, resolution = high)
2. novelty: Is this new information not already stored? (contradictions, corrections = high)
3. contradiction: Does this contradict existing memories? (user corrections = high)
4. risk: Could storing this cause harm? (PII, sensitive data = high)

Conversation:
%s

Tool Result:
%s

Return JSON:
{"importance": 0.0-1.0, "novelty": 0.0-1.0, "contradiction": 0.0-1.0, "risk": 0.0-1.0}`

// Scorer computes Scores for a conversation with an LLM.
type Scorer struct {
	llm llm.Completer
}

// NewScorer creates an LLM-backed salience scorer.
func NewScorer(completer llm.Completer) *Scorer {
	return &Scorer{llm: completer}
}

// fallbackScores stand in when the model's response cannot be parsed:
// mildly important, mildly novel, nothing flagged.
var fallbackScores = Scores{Importance: 0.5, Novelty: 0.5}

// Score computes salience scores for the conversation and optional tool
// result. A malformed model response degrades to the fallback scores
// rather than failing the run; a transport error is returned.
func (s *Scorer) Score(ctx context.Context, conversation string, toolResult map[string]any) (Scores, error) {
	toolText := "None"
	if toolResult != nil {
		data, err := json.MarshalIndent(toolResult, "", "  ")
		if err != nil {
			return Scores{}, fmt.Errorf("marshal tool result: %w", err)
		}
		toolText = string(data)
	}

	response, err := s.llm.Complete(ctx, fmt.Sprintf(scorePrompt, conversation, toolText))
	if err != nil {
		return Scores{}, fmt.Errorf("salience scoring failed: %w", err)
	}

	var scores Scores
	if err := json.Unmarshal([]byte(ExtractJSON(response)), &scores); err != nil {
		return fallbackScores, nil
	}
	return clampScores(scores), nil
}

func clampScores(s Scores) Scores {
	return Scores{
		Importance:    clamp01(s.Importance),
		Novelty:       clamp01(s.Novelty),
		Contradiction: clamp01(s.Contradiction),
		Risk:          clamp01(s.Risk),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ExtractJSON pulls the first complete JSON object or array out of a
// model response, tolerating markdown code fences and surrounding prose.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```"); idx != -1 {
		content = content[idx+3:]
		content = strings.TrimPrefix(content, "json")
		if end := strings.Index(content, "```"); end != -1 {
			content = content[:end]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.IndexAny(content, "{[")
	if start == -1 {
		return content
	}

	open := content[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return content[start:]
}
