package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/threadsmith/agentgraph/graph"
	"github.com/threadsmith/agentgraph/llm"
	"github.com/threadsmith/agentgraph/log"
	"github.com/threadsmith/agentgraph/memory"
)

const plannerPrompt = `You are a CRM support planner. Select the appropriate procedure for the user's query and decide which tool to run.

AVAILABLE PROCEDURES:
%s

PROCEDURE SELECTION RULES:
- standard_support: for new issues, general support, ticket creation/updates
- quick_resolution: for simple lookups, status checks
- escalated_support: for critical issues, escalations

AVAILABLE TOOLS:
- lookup_ticket: look up an existing ticket. Arguments: {"ticket_id": "<id>"}
- create_ticket: open a new ticket. Arguments: {"customer_name": "<name>", "issue": "<issue>", "device": "<device>", "priority": "Low|Medium|High|Critical"}
- update_ticket: add a note or change device/status. Arguments: {"ticket_id": "<id>", "note": "<note>", "device": "<device>", "status": "<status>"}
- none: no tool needed, answer directly.
Only choose a tool the selected procedure allows.

CONTEXT:
Semantic memories (facts):
%s
Episodic memories (past experiences):
%s
User preferences:
%s

User query: %s

Return ONLY JSON (no other text):
{"procedure": "standard_support" | "quick_resolution" | "escalated_support", "tool": "lookup_ticket" | "create_ticket" | "update_ticket" | "none", "arguments": {...}}`

const respondPrompt = `You are a CRM support agent with multi-memory access.

RULES:
- Use semantic memories for facts (ticket IDs, device models, speed plans)
- Use episodic memories to avoid repeating past suggestions
- Respect user preferences (tone, detail level)
- Tool output is authoritative and overrides memories
- Only use ticket IDs from tool results or semantic memory
- If no ticket exists, clearly state that
- When a ticket is created, explicitly state the ticket number
- Follow the active procedure's steps; do not invent new procedures

Active procedure: %s
Steps:
%s
Escalation: %s

Semantic memories:
%s
Episodic memories:
%s
User preferences:
%s
Tool result:
%s

User query: %s

Keep the response helpful and concise.`

const extractPrompt = `Extract structured memories from this conversation.

SEMANTIC (facts, structured data):
- Ticket IDs, device models, technical specs
- Format: "Customer has [device]. Ticket [ID]."

EPISODIC (experiences, what happened):
- What troubleshooting was tried, what was suggested, user corrections
- Format: "Customer tried [action]. Agent suggested [action]."

Return JSON:
{"semantic": ["fact1", "fact2"], "episodic": ["experience1", "experience2"]}

Conversation:
%s`

// minFactLen filters out fragments the extractor sometimes emits.
const minFactLen = 10

// recallTopK limits how many memories each read node injects.
const recallTopK = 3

// MemoryStores bundles the three long-term stores the agent reads and
// writes.
type MemoryStores struct {
	Semantic    memory.SemanticStore
	Episodic    memory.EpisodicStore
	Preferences memory.PreferenceStore
}

// MemoryAgentConfig configures the multi-memory agent.
type MemoryAgentConfig struct {
	LLM       llm.Completer
	Stores    MemoryStores
	Tickets   *TicketStore
	Namespace string
	// Threshold gates memory writes; nil means memory.DefaultThreshold.
	// Zero is a valid value and accepts every candidate write.
	Threshold *float64
	Logger    log.Logger
}

// MemoryAgent is the multi-memory workflow: parallel recall across the
// three stores, tool planning and execution against the ticket store,
// conflict resolution against tool output, response composition, and a
// salience-gated memory write.
type MemoryAgent struct {
	llm       llm.Completer
	stores    MemoryStores
	tickets   *TicketStore
	namespace string
	gate      *memory.Gate
	scorer    *memory.Scorer
	resolver  *memory.ConflictResolver
	logger    log.Logger
}

// NewMemoryAgent creates the agent from its configuration.
func NewMemoryAgent(cfg MemoryAgentConfig) *MemoryAgent {
	threshold := memory.DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &MemoryAgent{
		llm:       cfg.LLM,
		stores:    cfg.Stores,
		tickets:   cfg.Tickets,
		namespace: cfg.Namespace,
		gate:      memory.NewGate(threshold),
		scorer:    memory.NewScorer(cfg.LLM),
		resolver:  memory.NewConflictResolver(cfg.Stores.Semantic, cfg.Namespace),
		logger:    logger,
	}
}

// Graph builds the agent's workflow graph.
func (a *MemoryAgent) Graph() *graph.StateGraph {
	g := graph.NewStateGraph()

	g.AddParallelGroup("recall",
		graph.Node{
			Name:        "semantic_read",
			Description: "retrieve facts from semantic memory",
			Outputs:     []string{"semantic_memories"},
			Function:    a.readSemantic,
		},
		graph.Node{
			Name:        "episodic_read",
			Description: "retrieve past experiences",
			Outputs:     []string{"episodic_memories"},
			Function:    a.readEpisodic,
		},
		graph.Node{
			Name:        "preference_read",
			Description: "retrieve user preferences",
			Outputs:     []string{"preferences"},
			Function:    a.readPreferences,
		},
	)
	g.AddNode("planner", "select a procedure and tool for the query", []string{"plan", "procedure"}, a.plan)
	g.AddNode("tool", "execute the selected ticket tool", []string{"tool_result"}, a.runTool)
	g.AddNode("guard", "apply escalation rules to tool output", []string{"procedure", "escalation"}, a.guard)
	g.AddNode("conflict", "reconcile memories with tool output", []string{"conflict_note"}, a.resolveConflicts)
	g.AddNode("respond", "compose the reply", []string{"reply"}, a.respond)
	g.AddNode("memorize", "persist salient memories",
		[]string{"salience", "memory_written", "semantic_written", "episodic_written"}, a.memorize)

	g.SetEntryPoint("recall")
	g.AddEdge("recall", "planner")
	g.AddBranches("planner",
		graph.Branch{
			When: func(ctx context.Context, state graph.State) bool {
				plan, _ := state["plan"].(map[string]any)
				tool, _ := plan["tool"].(string)
				return tool != "" && tool != "none"
			},
			To: "tool",
		},
		graph.Branch{To: "respond"},
	)
	g.AddEdge("tool", "guard")
	g.AddEdge("guard", "conflict")
	g.AddEdge("conflict", "respond")
	g.AddEdge("respond", "memorize")
	g.AddEdge("memorize", graph.END)

	return g
}

func (a *MemoryAgent) readSemantic(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	records, err := a.stores.Semantic.Search(ctx, a.namespace, query, recallTopK)
	if err != nil {
		return nil, fmt.Errorf("semantic recall: %w", err)
	}
	return graph.State{"semantic_memories": records}, nil
}

func (a *MemoryAgent) readEpisodic(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	records, err := a.stores.Episodic.Search(ctx, a.namespace, query, recallTopK)
	if err != nil {
		return nil, fmt.Errorf("episodic recall: %w", err)
	}
	return graph.State{"episodic_memories": records}, nil
}

func (a *MemoryAgent) readPreferences(ctx context.Context, state graph.State) (graph.State, error) {
	prefs, err := a.stores.Preferences.All(ctx, a.namespace)
	if err != nil {
		return nil, fmt.Errorf("preference recall: %w", err)
	}
	return graph.State{"preferences": prefs}, nil
}

func (a *MemoryAgent) plan(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	prompt := fmt.Sprintf(plannerPrompt,
		renderProcedures(),
		renderRecords(state["semantic_memories"]),
		renderRecords(state["episodic_memories"]),
		renderPreferences(state["preferences"]),
		query,
	)

	response, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	plan := map[string]any{}
	if err := json.Unmarshal([]byte(memory.ExtractJSON(response)), &plan); err != nil {
		plan = map[string]any{"tool": "none"}
	}

	selected, _ := plan["procedure"].(string)
	procedure, _ := memory.ProcedureOrDefault(selected)
	return graph.State{"plan": plan, "procedure": procedure}, nil
}

func (a *MemoryAgent) runTool(ctx context.Context, state graph.State) (graph.State, error) {
	plan, _ := state["plan"].(map[string]any)
	tool, _ := plan["tool"].(string)
	args, _ := plan["arguments"].(map[string]any)

	procName, _ := state["procedure"].(string)
	procName, proc := memory.ProcedureOrDefault(procName)
	if !proc.AllowsTool(tool) {
		a.logger.Warn("tool %q blocked by procedure %s", tool, procName)
		return graph.State{"tool_result": map[string]any{
			"error": fmt.Sprintf("Tool %q not permitted by procedure %s", tool, procName),
		}}, nil
	}

	result := a.executeTool(tool, args)
	return graph.State{"tool_result": result}, nil
}

func (a *MemoryAgent) executeTool(tool string, args map[string]any) map[string]any {
	arg := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	switch tool {
	case "lookup_ticket":
		id := arg("ticket_id")
		ticket, ok := a.tickets.Get(id)
		if !ok {
			return map[string]any{"error": fmt.Sprintf("Ticket %s not found.", id)}
		}
		return map[string]any{"ticket_id": id, "ticket": ticketMap(ticket)}

	case "create_ticket":
		ticket := a.tickets.Create(arg("customer_name"), arg("issue"), arg("device"), arg("priority"))
		return map[string]any{
			"ticket_id": ticket.ID,
			"status":    "created",
			"message":   fmt.Sprintf("Ticket %s created successfully", ticket.ID),
			"ticket":    ticketMap(ticket),
		}

	case "update_ticket":
		ticket, err := a.tickets.Update(arg("ticket_id"), arg("note"), arg("device"), arg("status"))
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"ticket_id": ticket.ID, "status": "updated", "ticket": ticketMap(ticket)}

	default:
		return map[string]any{"error": fmt.Sprintf("Tool %q not found", tool)}
	}
}

// guard applies the escalation rules to the ticket in the tool output.
// When a rule fires the run switches to the escalated procedure so the
// responder follows the Level 2 flow.
func (a *MemoryAgent) guard(ctx context.Context, state graph.State) (graph.State, error) {
	toolResult, _ := state["tool_result"].(map[string]any)
	ticket, ok := toolResult["ticket"].(map[string]any)
	if !ok {
		return graph.State{}, nil
	}

	field := func(key string) string {
		v, _ := ticket[key].(string)
		return v
	}

	var createdAt time.Time
	if raw := field("created_at"); raw != "" {
		createdAt, _ = time.Parse("2006-01-02", raw)
	}

	escalation := memory.EscalationDecision(field("priority"), field("status"), createdAt, time.Now().UTC())
	if escalation == nil {
		return graph.State{}, nil
	}

	a.logger.Warn("escalation rule %s fired: %s", escalation.Rule, escalation.Message)
	return graph.State{
		"procedure":  memory.ProcedureEscalated,
		"escalation": escalation.Message,
	}, nil
}

func (a *MemoryAgent) resolveConflicts(ctx context.Context, state graph.State) (graph.State, error) {
	toolResult, _ := state["tool_result"].(map[string]any)
	ticket, ok := toolResult["ticket"].(map[string]any)
	if !ok {
		return graph.State{"conflict_note": ""}, nil
	}

	ticketID, _ := toolResult["ticket_id"].(string)
	facts := verifiedFacts(ticketID, ticket)
	memories, _ := state["semantic_memories"].([]memory.Record)

	report, err := a.resolver.Resolve(ctx, facts, memories)
	if err != nil {
		return nil, fmt.Errorf("conflict resolution: %w", err)
	}
	return graph.State{"conflict_note": report.Message()}, nil
}

// verifiedFacts turns authoritative ticket data into semantic facts
// keyed for in-place overwrite.
func verifiedFacts(ticketID string, ticket map[string]any) []memory.VerifiedFact {
	var facts []memory.VerifiedFact

	field := func(key string) string {
		v, _ := ticket[key].(string)
		return v
	}

	if ticketID != "" {
		facts = append(facts, memory.VerifiedFact{
			Key:     "ticket_" + ticketID,
			Content: fmt.Sprintf("Customer has active ticket %s", ticketID),
		})
		if status := field("status"); status != "" {
			facts = append(facts, memory.VerifiedFact{
				Key:     fmt.Sprintf("ticket_%s_status", ticketID),
				Content: fmt.Sprintf("Ticket %s status: %s", ticketID, status),
			})
		}
	}
	if device := field("device"); device != "" && device != "-" {
		fact := fmt.Sprintf("Customer device: %s", device)
		facts = append(facts, memory.VerifiedFact{Key: memory.SemanticKey(fact), Content: fact})
	}
	if name := field("customer_name"); name != "" {
		fact := fmt.Sprintf("Customer name: %s", name)
		facts = append(facts, memory.VerifiedFact{Key: memory.SemanticKey(fact), Content: fact})
	}
	return facts
}

func (a *MemoryAgent) respond(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	procName, _ := state["procedure"].(string)
	procName, proc := memory.ProcedureOrDefault(procName)
	escalation, _ := state["escalation"].(string)
	if escalation == "" {
		escalation = "None"
	}

	prompt := fmt.Sprintf(respondPrompt,
		procName,
		strings.Join(proc.Steps, "\n"),
		escalation,
		renderRecords(state["semantic_memories"]),
		renderRecords(state["episodic_memories"]),
		renderPreferences(state["preferences"]),
		renderJSON(state["tool_result"]),
		query,
	)

	response, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("response generation: %w", err)
	}
	return graph.State{"reply": strings.TrimSpace(response)}, nil
}

func (a *MemoryAgent) memorize(ctx context.Context, state graph.State) (graph.State, error) {
	query, _ := state["query"].(string)
	reply, _ := state["reply"].(string)
	toolResult, _ := state["tool_result"].(map[string]any)
	conversation := fmt.Sprintf("User: %s\nAgent: %s", query, reply)

	trigger := explicitTrigger(toolResult)
	scores, err := a.scorer.Score(ctx, conversation, toolResult)
	if err != nil {
		return nil, err
	}

	combined := a.gate.Combined(scores)
	accepted := a.gate.Accept(scores, trigger)
	a.logger.Info("salience %.2f trigger=%t write=%t", combined, trigger, accepted)

	if !accepted {
		return graph.State{
			"salience":         combined,
			"memory_written":   false,
			"semantic_written": 0,
			"episodic_written": 0,
		}, nil
	}

	response, err := a.llm.Complete(ctx, fmt.Sprintf(extractPrompt, conversation))
	if err != nil {
		return nil, fmt.Errorf("memory extraction: %w", err)
	}

	var extracted struct {
		Semantic []string `json:"semantic"`
		Episodic []string `json:"episodic"`
	}
	if err := json.Unmarshal([]byte(memory.ExtractJSON(response)), &extracted); err != nil {
		a.logger.Warn("memory extraction produced no parseable JSON, skipping write")
		return graph.State{
			"salience":         combined,
			"memory_written":   false,
			"semantic_written": 0,
			"episodic_written": 0,
		}, nil
	}

	semanticCount := 0
	for _, fact := range extracted.Semantic {
		fact = strings.TrimSpace(fact)
		if len(fact) <= minFactLen {
			continue
		}
		key := memory.SemanticKey(fact)
		rec := memory.Record{Kind: memory.KindSemantic, Key: key, Content: fact, Salience: scores.Importance}
		if err := a.stores.Semantic.Upsert(ctx, a.namespace, key, rec); err != nil {
			return nil, fmt.Errorf("semantic write: %w", err)
		}
		semanticCount++
	}

	episodicCount := 0
	for _, experience := range extracted.Episodic {
		experience = strings.TrimSpace(experience)
		if len(experience) <= minFactLen {
			continue
		}
		key := memory.OpaqueKey("episodic")
		rec := memory.Record{Kind: memory.KindEpisodic, Key: key, Content: experience, Salience: scores.Importance}
		if err := a.stores.Episodic.Put(ctx, a.namespace, key, rec); err != nil {
			return nil, fmt.Errorf("episodic write: %w", err)
		}
		episodicCount++
	}

	return graph.State{
		"salience":         combined,
		"memory_written":   true,
		"semantic_written": semanticCount,
		"episodic_written": episodicCount,
	}, nil
}

// explicitTrigger reports whether the tool result is a ticket lifecycle
// event that must be remembered regardless of salience.
func explicitTrigger(toolResult map[string]any) bool {
	if toolResult == nil {
		return false
	}
	if _, ok := toolResult["ticket_id"]; ok {
		if status, _ := toolResult["status"].(string); status == "created" || status == "updated" {
			return true
		}
	}
	if ticket, ok := toolResult["ticket"].(map[string]any); ok {
		if status, _ := ticket["status"].(string); status == "Escalated" || status == "Resolved" {
			return true
		}
	}
	return false
}

func renderProcedures() string {
	names := make([]string, 0, len(memory.Procedures))
	for name := range memory.Procedures {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		proc := memory.Procedures[name]
		lines = append(lines, fmt.Sprintf("- %s (%s): tools %s",
			name, proc.Name, strings.Join(proc.AllowedTools, ", ")))
	}
	return strings.Join(lines, "\n")
}

func renderRecords(v any) string {
	records, _ := v.([]memory.Record)
	if len(records) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, "- "+rec.Content)
	}
	return strings.Join(lines, "\n")
}

func renderPreferences(v any) string {
	prefs, _ := v.(map[string]string)
	if len(prefs) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(prefs))
	for key, value := range prefs {
		lines = append(lines, fmt.Sprintf("- %s: %s", key, value))
	}
	return strings.Join(lines, "\n")
}
