// Package memory models long-term agent memory: typed records, the
// salience gate deciding which candidate writes persist, conflict
// resolution against authoritative tool output, and the store interfaces
// backends implement.
package memory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a memory record.
type Kind string

const (
	// KindSemantic records are facts and structured data, keyed
	// deterministically so fresher writes overwrite in place.
	KindSemantic Kind = "semantic"
	// KindEpisodic records are experiences; they accumulate under opaque
	// keys and are retrieved with a recency bias.
	KindEpisodic Kind = "episodic"
	// KindPreference records are simple key-value user preferences.
	KindPreference Kind = "preference"
)

// Record is a single memory entry.
type Record struct {
	Kind      Kind              `json:"kind"`
	Key       string            `json:"key"`
	Content   string            `json:"content"`
	Salience  float64           `json:"salience,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

var (
	ticketPattern   = regexp.MustCompile(`ticket[:\s#]*(\d+)`)
	devicePattern   = regexp.MustCompile(`(netgear|archer|nighthawk|kindle|router[-\s]*[a-z0-9]+)`)
	customerPattern = regexp.MustCompile(`customer[:\s]+([a-z]+)`)
)

// DeterministicKey derives a reproducible key from a semantic fact so a
// fresher version of the same fact overwrites instead of duplicating.
// The second return reports whether a stable key was found.
func DeterministicKey(fact string) (string, bool) {
	lower := strings.ToLower(fact)

	if m := ticketPattern.FindStringSubmatch(lower); m != nil {
		return "ticket_" + m[1], true
	}
	if strings.Contains(lower, "router") || strings.Contains(lower, "device") {
		if m := devicePattern.FindStringSubmatch(lower); m != nil {
			return "device_" + strings.ReplaceAll(m[1], " ", "_"), true
		}
	}
	if strings.Contains(lower, "customer") {
		if m := customerPattern.FindStringSubmatch(lower); m != nil {
			return "customer_" + m[1], true
		}
	}
	return "", false
}

// OpaqueKey generates a fresh key with the given prefix, for episodic
// records and semantic facts with no stable identifier.
func OpaqueKey(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
}

// SemanticKey returns the deterministic key for a fact, or a fresh
// opaque one when none can be derived.
func SemanticKey(fact string) string {
	if key, ok := DeterministicKey(fact); ok {
		return key
	}
	return OpaqueKey("semantic")
}
