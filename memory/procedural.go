package memory

import "time"

// Procedure is an entry of procedural memory: a named support flow with
// ordered steps and the tools it permits. Procedures are fixed rules of
// agent behavior, not learned content, so they ship as data rather than
// living in a store.
type Procedure struct {
	Name         string
	Steps        []string
	AllowedTools []string
}

// AllowsTool reports whether the procedure permits the tool.
func (p Procedure) AllowsTool(tool string) bool {
	for _, t := range p.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Procedure identifiers.
const (
	ProcedureStandard  = "standard_support"
	ProcedureQuick     = "quick_resolution"
	ProcedureEscalated = "escalated_support"
)

// Procedures is the procedural memory the planner selects from.
var Procedures = map[string]Procedure{
	ProcedureStandard: {
		Name: "Standard Support Flow",
		Steps: []string{
			"1. Check ticket status and priority",
			"2. Retrieve relevant memories (semantic + episodic)",
			"3. If device info missing, ask for device model",
			"4. If issue unclear, ask for specific symptoms",
			"5. Suggest troubleshooting steps based on issue type",
			"6. If unresolved after 2 attempts, escalate",
		},
		AllowedTools: []string{"create_ticket", "update_ticket", "lookup_ticket"},
	},
	ProcedureQuick: {
		Name: "Quick Resolution Flow",
		Steps: []string{
			"1. Check if issue matches known quick fixes",
			"2. Apply quick fix if available",
			"3. If not, escalate to standard flow",
		},
		AllowedTools: []string{"lookup_ticket"},
	},
	ProcedureEscalated: {
		Name: "Escalated Support Flow",
		Steps: []string{
			"1. Review escalation reason",
			"2. Gather all context (memories + ticket history)",
			"3. Apply Level 2 diagnostic procedures",
			"4. Document resolution path",
		},
		AllowedTools: []string{"lookup_ticket", "update_ticket"},
	},
}

// ProcedureOrDefault returns the named procedure, falling back to the
// standard flow for unknown names.
func ProcedureOrDefault(name string) (string, Procedure) {
	if proc, ok := Procedures[name]; ok {
		return name, proc
	}
	return ProcedureStandard, Procedures[ProcedureStandard]
}

// Escalation describes a triggered escalation rule.
type Escalation struct {
	Rule    string
	Action  string
	Message string
}

// highPriorityAgeDays is how long a High priority ticket may stay open
// before it escalates.
const highPriorityAgeDays = 3

// EscalationDecision applies the escalation rules to a ticket's
// priority, status and creation time. It returns nil when no rule fires.
func EscalationDecision(priority, status string, createdAt, now time.Time) *Escalation {
	if priority == "Critical" || status == "Escalated" {
		return &Escalation{
			Rule:    "critical",
			Action:  "escalate_to_level2",
			Message: "Issue escalated to Level 2 support due to critical priority.",
		}
	}

	if priority == "High" && !createdAt.IsZero() {
		ageDays := int(now.Sub(createdAt).Hours() / 24)
		if ageDays >= highPriorityAgeDays {
			return &Escalation{
				Rule:    "high_priority_3_days",
				Action:  "escalate_to_level2",
				Message: "High priority ticket open for 3+ days, escalating.",
			}
		}
	}

	return nil
}
