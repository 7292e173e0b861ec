package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadsmith/agentgraph/graph"
	"github.com/threadsmith/agentgraph/log"
	"github.com/threadsmith/agentgraph/memory"
	memstore "github.com/threadsmith/agentgraph/store/memory"
)

func newTestMemoryAgent(llm scriptedLLM, stores *memstore.Store, tickets *TicketStore) *MemoryAgent {
	return NewMemoryAgent(MemoryAgentConfig{
		LLM: llm,
		Stores: MemoryStores{
			Semantic:    stores.Semantic,
			Episodic:    stores.Episodic,
			Preferences: stores.Preferences,
		},
		Tickets:   tickets,
		Namespace: "user1",
		Logger:    &log.NoOpLogger{},
	})
}

func TestMemoryAgent_CreateTicketWritesMemories(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()

	agent := newTestMemoryAgent(scriptedLLM{
		{"CRM support planner", `{"tool": "create_ticket", "arguments": {"customer_name": "Alice", "issue": "Router keeps dropping connection", "device": "Netgear Nighthawk", "priority": "High"}}`},
		{"CRM support agent with multi-memory access", "I've created ticket 1 for your Netgear Nighthawk issue."},
		{"compute salience scores", `{"importance": 0.2, "novelty": 0.1, "contradiction": 0.0, "risk": 0.0}`},
		{"Extract structured memories", `{"semantic": ["Customer has a Netgear Nighthawk router. Ticket 1."], "episodic": ["Customer reported connection drops. Agent created a ticket."]}`},
	}, stores, tickets)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(),
		graph.State{"query": "My router keeps dropping the connection"})
	require.NoError(t, err)

	// Ticket actually exists in the store.
	ticket, ok := tickets.Get("1")
	require.True(t, ok)
	assert.Equal(t, "New", ticket.Status)
	assert.Equal(t, "Alice", ticket.CustomerName)

	// Scores are below threshold, but ticket creation is an explicit
	// trigger so the write happens anyway.
	assert.Equal(t, true, result["memory_written"])
	assert.Equal(t, 1, result["semantic_written"])
	assert.Equal(t, 1, result["episodic_written"])
	assert.Equal(t, "I've created ticket 1 for your Netgear Nighthawk issue.", result["reply"])

	ctx := context.Background()

	// Extracted fact landed under its deterministic key, overwriting the
	// conflict resolver's verified fact for the same ticket.
	rec, found, err := stores.Semantic.Get(ctx, "user1", "ticket_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Customer has a Netgear Nighthawk router. Ticket 1.", rec.Content)

	// Conflict resolution persisted the tool-verified status fact.
	rec, found, err = stores.Semantic.Get(ctx, "user1", "ticket_1_status")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, rec.Content, "status: New")

	episodes, err := stores.Episodic.Search(ctx, "user1", "connection drops", 5)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Contains(t, episodes[0].Content, "Agent created a ticket")
}

func TestMemoryAgent_LowSalienceWithoutTriggerSkipsWrite(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()

	agent := newTestMemoryAgent(scriptedLLM{
		{"CRM support planner", `{"tool": "none", "arguments": {}}`},
		{"CRM support agent with multi-memory access", "Hello! How is your connection today?"},
		{"compute salience scores", `{"importance": 0.3, "novelty": 0.2, "contradiction": 0.0, "risk": 0.0}`},
	}, stores, tickets)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(), graph.State{"query": "thanks!"})
	require.NoError(t, err)

	assert.Equal(t, false, result["memory_written"])
	assert.Equal(t, 0, result["semantic_written"])

	// No tool ran, so the tool branch fields never appear.
	_, hasToolResult := result["tool_result"]
	assert.False(t, hasToolResult)
	_, hasConflictNote := result["conflict_note"]
	assert.False(t, hasConflictNote)

	records, err := stores.Semantic.Search(context.Background(), "user1", "connection", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryAgent_ConflictingMemoryIsOverwritten(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()
	tickets.Create("Alice", "Slow wifi", "Netgear Nighthawk", "Medium")

	ctx := context.Background()
	// Stale memory naming a ticket that does not match the tool's answer.
	require.NoError(t, stores.Semantic.Upsert(ctx, "user1", "ticket_9", memory.Record{
		Kind:    memory.KindSemantic,
		Key:     "ticket_9",
		Content: "Customer has active ticket 9",
	}))

	agent := newTestMemoryAgent(scriptedLLM{
		{"CRM support planner", `{"tool": "lookup_ticket", "arguments": {"ticket_id": "1"}}`},
		{"CRM support agent with multi-memory access", "Your ticket 1 is currently marked New."},
		{"compute salience scores", `{"importance": 0.9, "novelty": 0.8, "contradiction": 0.7, "risk": 0.0}`},
		{"Extract structured memories", `{"semantic": [], "episodic": []}`},
	}, stores, tickets)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(), graph.State{"query": "What is the status of my ticket?"})
	require.NoError(t, err)

	note, _ := result["conflict_note"].(string)
	assert.Contains(t, note, "conflict(s) detected and resolved")

	// Tool-verified facts were upserted under deterministic keys.
	rec, found, err := stores.Semantic.Get(ctx, "user1", "ticket_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Customer has active ticket 1", rec.Content)
}

func TestMemoryAgent_LookupMissingTicket(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()

	agent := newTestMemoryAgent(scriptedLLM{
		{"CRM support planner", `{"tool": "lookup_ticket", "arguments": {"ticket_id": "42"}}`},
		{"CRM support agent with multi-memory access", "I couldn't find ticket 42."},
		{"compute salience scores", `{"importance": 0.1, "novelty": 0.1, "contradiction": 0.0, "risk": 0.0}`},
	}, stores, tickets)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(), graph.State{"query": "Check ticket 42"})
	require.NoError(t, err)

	toolResult, ok := result["tool_result"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, toolResult["error"], "not found")

	// An error result carries no ticket, so nothing triggers a write.
	assert.Equal(t, false, result["memory_written"])
	assert.Equal(t, "", result["conflict_note"])
}

func TestMemoryAgent_RecallFeedsPlanner(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()

	ctx := context.Background()
	require.NoError(t, stores.Semantic.Upsert(ctx, "user1", "device_nighthawk", memory.Record{
		Kind:    memory.KindSemantic,
		Key:     "device_nighthawk",
		Content: "Customer device: Netgear Nighthawk router",
	}))
	require.NoError(t, stores.Preferences.Set(ctx, "user1", "tone", "casual"))

	var sawPrompt string
	llm := promptRecorder{
		inner: scriptedLLM{
			{"CRM support planner", `{"tool": "none", "arguments": {}}`},
			{"CRM support agent with multi-memory access", "Your Nighthawk supports that, yes."},
			{"compute salience scores", `{"importance": 0.1, "novelty": 0.1, "contradiction": 0.0, "risk": 0.0}`},
		},
		marker: "CRM support planner",
		seen:   &sawPrompt,
	}

	agent := newTestMemoryAgent(nil, stores, tickets)
	agent.llm = llm
	agent.scorer = memory.NewScorer(llm)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	_, err = runnable.Invoke(context.Background(), graph.State{"query": "Does my router support WPA3?"})
	require.NoError(t, err)

	assert.Contains(t, sawPrompt, "Netgear Nighthawk")
	assert.Contains(t, sawPrompt, "tone: casual")
}

func TestMemoryAgent_ProcedureBlocksDisallowedTool(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()

	agent := newTestMemoryAgent(scriptedLLM{
		{"CRM support planner", `{"procedure": "quick_resolution", "tool": "create_ticket", "arguments": {"customer_name": "Alice", "issue": "Slow wifi", "device": "Netgear Nighthawk", "priority": "Low"}}`},
		{"CRM support agent with multi-memory access", "I can only look up tickets in this flow."},
		{"compute salience scores", `{"importance": 0.1, "novelty": 0.1, "contradiction": 0.0, "risk": 0.0}`},
	}, stores, tickets)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(), graph.State{"query": "Open a ticket for my slow wifi"})
	require.NoError(t, err)

	toolResult, ok := result["tool_result"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, toolResult["error"], "not permitted")
	assert.Contains(t, toolResult["error"], memory.ProcedureQuick)

	// The blocked tool never ran.
	_, found := tickets.Get("1")
	assert.False(t, found)
	assert.Equal(t, memory.ProcedureQuick, result["procedure"])
}

func TestMemoryAgent_CriticalTicketEscalates(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()

	var sawPrompt string
	llm := promptRecorder{
		inner: scriptedLLM{
			{"CRM support planner", `{"procedure": "standard_support", "tool": "create_ticket", "arguments": {"customer_name": "Alice", "issue": "Complete outage", "device": "Netgear Nighthawk", "priority": "Critical"}}`},
			{"CRM support agent with multi-memory access", "Ticket 1 created and escalated to Level 2."},
			{"compute salience scores", `{"importance": 0.9, "novelty": 0.8, "contradiction": 0.0, "risk": 0.0}`},
			{"Extract structured memories", `{"semantic": ["Customer has critical outage. Ticket 1."], "episodic": []}`},
		},
		marker: "CRM support agent with multi-memory access",
		seen:   &sawPrompt,
	}

	agent := newTestMemoryAgent(nil, stores, tickets)
	agent.llm = llm
	agent.scorer = memory.NewScorer(llm)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(), graph.State{"query": "Nothing works at all, please open a ticket!"})
	require.NoError(t, err)

	// The critical rule switched the run to the escalated flow.
	assert.Equal(t, memory.ProcedureEscalated, result["procedure"])
	escalation, _ := result["escalation"].(string)
	assert.Contains(t, escalation, "Level 2")

	// The responder was briefed with the escalated steps, not the
	// planner's original selection.
	assert.Contains(t, sawPrompt, memory.ProcedureEscalated)
	assert.Contains(t, sawPrompt, "Level 2 diagnostic procedures")
	assert.Contains(t, sawPrompt, "Issue escalated to Level 2 support")
}

func TestMemoryAgent_HighPriorityAgeEscalatesOnLookup(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	tickets := NewTicketStore()
	tickets.now = func() time.Time { return time.Now().AddDate(0, 0, -5) }
	tickets.Create("Alice", "Slow wifi", "Netgear Nighthawk", "High")
	tickets.now = time.Now

	agent := newTestMemoryAgent(scriptedLLM{
		{"CRM support planner", `{"procedure": "quick_resolution", "tool": "lookup_ticket", "arguments": {"ticket_id": "1"}}`},
		{"CRM support agent with multi-memory access", "Your ticket has been escalated to Level 2."},
		{"compute salience scores", `{"importance": 0.2, "novelty": 0.1, "contradiction": 0.0, "risk": 0.0}`},
	}, stores, tickets)

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	result, err := runnable.Invoke(context.Background(), graph.State{"query": "Any news on my ticket?"})
	require.NoError(t, err)

	assert.Equal(t, memory.ProcedureEscalated, result["procedure"])
	escalation, _ := result["escalation"].(string)
	assert.Contains(t, escalation, "3+ days")
}

func TestMemoryAgent_ZeroThresholdAcceptsEveryWrite(t *testing.T) {
	t.Parallel()

	stores := memstore.NewStore()
	zero := 0.0

	agent := NewMemoryAgent(MemoryAgentConfig{
		LLM: scriptedLLM{
			{"CRM support planner", `{"tool": "none", "arguments": {}}`},
			{"CRM support agent with multi-memory access", "You're welcome!"},
			{"compute salience scores", `{"importance": 0.0, "novelty": 0.0, "contradiction": 0.0, "risk": 0.0}`},
			{"Extract structured memories", `{"semantic": [], "episodic": ["Customer thanked the agent after a quiet session."]}`},
		},
		Stores: MemoryStores{
			Semantic:    stores.Semantic,
			Episodic:    stores.Episodic,
			Preferences: stores.Preferences,
		},
		Tickets:   NewTicketStore(),
		Namespace: "user1",
		Threshold: &zero,
		Logger:    &log.NoOpLogger{},
	})

	runnable, err := agent.Graph().Compile()
	require.NoError(t, err)

	// An explicit zero is an accept-everything gate, not the default.
	result, err := runnable.Invoke(context.Background(), graph.State{"query": "thanks!"})
	require.NoError(t, err)

	assert.Equal(t, true, result["memory_written"])
	assert.Equal(t, 1, result["episodic_written"])
}

// promptRecorder captures the prompt matching marker before delegating.
type promptRecorder struct {
	inner  scriptedLLM
	marker string
	seen   *string
}

func (r promptRecorder) Complete(ctx context.Context, prompt string) (string, error) {
	if *r.seen == "" && strings.Contains(prompt, r.marker) {
		*r.seen = prompt
	}
	return r.inner.Complete(ctx, prompt)
}
