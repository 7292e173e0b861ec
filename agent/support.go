// Package agent assembles the shipped workflows: a customer-support
// graph that routes queries to specialized nodes, and a multi-memory
// agent that recalls, plans, executes tools and persists salient
// memories.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/threadsmith/agentgraph/graph"
	"github.com/threadsmith/agentgraph/llm"
	"github.com/threadsmith/agentgraph/memory"
)

const intentPrompt = `Classify the user's intent into one of these categories:
- order_status
- product_info
- tech_support
- refund_request
- unknown

Return ONLY the intent value, nothing else.

Query: %s`

const entityPrompt = `Extract structured information from the user query.

Return a JSON object with any relevant entities.
For example: {"product_id": "12345"} or {"order_number": "ORD-789"}

If no entities are found, return {}.

Query: %s`

const troubleshootPrompt = `You are a technical troubleshooting agent.

Analyze the user's query and identify the technical issues.
Return a JSON array of error codes.

Valid error codes:
- "device_not_powering_on"
- "possible_hardware_damage"
- "battery_issue"
- "screen_unresponsive"
- "charging_issue"
- "unknown_issue"

Rules:
- ALWAYS return a JSON array (e.g., ["device_not_powering_on"])
- If no clear issue is found, return ["unknown_issue"]

User query: %s`

const refundPrompt = `You are a refund analysis agent.

Analyze the user's query and determine:
1. Whether the user is requesting a refund
2. Whether the product appears eligible for refund
3. What the next action should be

Return ONLY a JSON dictionary with this structure:
{
  "refund_intent": true/false,
  "eligible": true/false,
  "reason": "short explanation",
  "next_step": "actionable step for the reply agent"
}

Rules:
- If refund is mentioned, refund_intent = true
- If product is old, damaged, or outside return window, eligible = false
- If information is insufficient, eligible = false and reason = "need_more_info"
- Keep next_step short and actionable

User query: %s
Product info: %s`

const replyPrompt = `You are a helpful customer support agent. Generate a clear, helpful response.

Context:
- User Query: %s
- Intent: %s
- Entities: %s
- Product Info: %s
- User History: %s
- Errors: %s
- Refund Analysis: %s

Rules by intent:

- tech_support: do NOT ask what the issue is, use the error codes to give
  concrete troubleshooting steps, escalate if hardware damage is suspected.
- product_info: provide specific product details (name, stock, price, warranty).
- order_status: reference product_id or order data if available.
- refund_request: explain the refund policy and use the refund analysis
  to guide next steps.
- unknown: ask ONE specific clarifying question, never a generic
  "How can I help?".`

// ProductAPI fetches product details by ID.
type ProductAPI func(ctx context.Context, productID string) (map[string]any, error)

// UserHistoryAPI fetches the requesting user's account history.
type UserHistoryAPI func(ctx context.Context) (map[string]any, error)

// Support is the customer-support workflow: intent classification,
// entity extraction, parallel product/history lookups, troubleshooting,
// refund analysis and a final composed reply.
type Support struct {
	llm         llm.Completer
	productAPI  ProductAPI
	userHistory UserHistoryAPI
}

// NewSupport creates the support workflow. productAPI and userHistory
// are the backing data sources; in tests they are stubbed.
func NewSupport(completer llm.Completer, productAPI ProductAPI, userHistory UserHistoryAPI) *Support {
	return &Support{
		llm:         completer,
		productAPI:  productAPI,
		userHistory: userHistory,
	}
}

// Graph builds the support workflow graph. Callers compile it themselves
// so they can layer executor options on the result.
func (s *Support) Graph() *graph.StateGraph {
	g := graph.NewStateGraph()

	g.AddNode("intent", "classify the query intent", []string{"intent"}, s.classifyIntent)
	g.AddNode("entities", "extract structured entities", []string{"entities"}, s.extractEntities)
	g.AddParallelGroup("parallel",
		graph.Node{
			Name:        "product_info",
			Description: "fetch product details",
			Outputs:     []string{"product_info"},
			Function:    s.fetchProductInfo,
		},
		graph.Node{
			Name:        "user_history",
			Description: "fetch account history",
			Outputs:     []string{"user_history"},
			Function:    s.fetchUserHistory,
		},
	)
	g.AddNode("troubleshoot", "identify technical issues", []string{"errors"}, s.troubleshoot)
	g.AddNode("refund", "analyze refund eligibility", []string{"refund"}, s.analyzeRefund)
	g.AddNode("reply", "compose the final response", []string{"reply"}, s.composeReply)

	g.SetEntryPoint("intent")
	g.AddConditionalEdges("intent",
		func(ctx context.Context, state graph.State) string {
			intent, _ := state["intent"].(string)
			return intent
		},
		map[string]string{
			"unknown":        "reply",
			"product_info":   "entities",
			"order_status":   "entities",
			"refund_request": "refund",
			"tech_support":   "troubleshoot",
		},
		"reply",
	)
	g.AddEdge("entities", "parallel")
	g.AddEdge("parallel", "reply")
	g.AddEdge("troubleshoot", "reply")
	g.AddEdge("refund", "reply")
	g.AddEdge("reply", graph.END)

	return g
}

func (s *Support) classifyIntent(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	response, err := s.llm.Complete(ctx, fmt.Sprintf(intentPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}
	return graph.State{"intent": strings.ToLower(strings.TrimSpace(response))}, nil
}

func (s *Support) extractEntities(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	response, err := s.llm.Complete(ctx, fmt.Sprintf(entityPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	entities := map[string]any{}
	if err := json.Unmarshal([]byte(memory.ExtractJSON(response)), &entities); err != nil {
		entities = map[string]any{}
	}
	return graph.State{"entities": entities}, nil
}

func (s *Support) fetchProductInfo(ctx context.Context, state graph.State) (graph.State, error) {
	entities, _ := state["entities"].(map[string]any)
	productID, _ := entities["product_id"].(string)
	if productID == "" {
		// Explicitly null: the lookup ran and found nothing.
		return graph.State{"product_info": nil}, nil
	}

	info, err := s.productAPI(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product lookup for %s: %w", productID, err)
	}
	return graph.State{"product_info": info}, nil
}

func (s *Support) fetchUserHistory(ctx context.Context, state graph.State) (graph.State, error) {
	history, err := s.userHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("user history lookup: %w", err)
	}
	return graph.State{"user_history": history}, nil
}

func (s *Support) troubleshoot(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	response, err := s.llm.Complete(ctx, fmt.Sprintf(troubleshootPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("troubleshoot: %w", err)
	}

	var codes []string
	if err := json.Unmarshal([]byte(memory.ExtractJSON(response)), &codes); err != nil || len(codes) == 0 {
		codes = []string{"unknown_issue"}
	}
	return graph.State{"errors": codes}, nil
}

func (s *Support) analyzeRefund(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	productInfo := "No product information available"
	if info, ok := state["product_info"].(map[string]any); ok && info != nil {
		productInfo = renderJSON(info)
	}

	response, err := s.llm.Complete(ctx, fmt.Sprintf(refundPrompt, query, productInfo))
	if err != nil {
		return nil, fmt.Errorf("refund analysis: %w", err)
	}

	analysis := map[string]any{}
	if err := json.Unmarshal([]byte(memory.ExtractJSON(response)), &analysis); err != nil || len(analysis) == 0 {
		analysis = map[string]any{
			"refund_intent": true,
			"eligible":      false,
			"reason":        "parse_error",
			"next_step":     "Please provide more details about your refund request",
		}
	}
	return graph.State{"refund": analysis}, nil
}

func (s *Support) composeReply(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	intent, _ := state["intent"].(string)
	if intent == "" {
		intent = "unknown"
	}

	response, err := s.llm.Complete(ctx, fmt.Sprintf(replyPrompt,
		query,
		intent,
		renderJSON(state["entities"]),
		renderJSON(state["product_info"]),
		renderJSON(state["user_history"]),
		renderJSON(state["errors"]),
		renderJSON(state["refund"]),
	))
	if err != nil {
		return nil, fmt.Errorf("compose reply: %w", err)
	}
	return graph.State{"reply": strings.TrimSpace(response)}, nil
}

// renderJSON formats a state value for prompt interpolation.
func renderJSON(v any) string {
	if v == nil {
		return "None"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
