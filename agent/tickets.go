package agent

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// TicketNote is a timestamped note on a ticket.
type TicketNote struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
}

// Ticket is a support ticket managed by the memory agent's tools.
type Ticket struct {
	ID           string       `json:"ticket_id"`
	Status       string       `json:"status"`
	Issue        string       `json:"issue"`
	Device       string       `json:"device"`
	Priority     string       `json:"priority"`
	CustomerName string       `json:"customer_name"`
	CreatedAt    time.Time    `json:"created_at"`
	LastUpdated  time.Time    `json:"last_updated"`
	Notes        []TicketNote `json:"notes"`
}

// TicketStore is an in-memory ticket database with sequential IDs.
type TicketStore struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
	nextID  int
	now     func() time.Time
}

// NewTicketStore creates an empty ticket store.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		tickets: make(map[string]*Ticket),
		nextID:  1,
		now:     time.Now,
	}
}

// Create opens a new ticket and returns a copy of it.
func (s *TicketStore) Create(customerName, issue, device, priority string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device == "" {
		device = "-"
	}
	if priority == "" {
		priority = "Medium"
	}

	now := s.now().UTC()
	id := strconv.Itoa(s.nextID)
	s.nextID++

	ticket := &Ticket{
		ID:           id,
		Status:       "New",
		Issue:        issue,
		Device:       device,
		Priority:     priority,
		CustomerName: customerName,
		CreatedAt:    now,
		LastUpdated:  now,
		Notes: []TicketNote{
			{Timestamp: now, Author: "customer", Text: issue},
		},
	}
	s.tickets[id] = ticket
	return copyTicket(ticket)
}

// Update appends a note or changes device/status on an existing ticket.
// Empty arguments leave the corresponding field untouched.
func (s *TicketStore) Update(id, note, device, status string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return Ticket{}, fmt.Errorf("ticket %s not found", id)
	}

	now := s.now().UTC()
	if note != "" {
		ticket.Notes = append(ticket.Notes, TicketNote{Timestamp: now, Author: "customer", Text: note})
	}
	if device != "" && device != "-" {
		ticket.Device = device
	}
	if status != "" {
		ticket.Status = status
	}
	ticket.LastUpdated = now

	return copyTicket(ticket), nil
}

// Get returns a copy of the ticket; the bool reports whether it exists.
func (s *TicketStore) Get(id string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return copyTicket(ticket), true
}

func copyTicket(t *Ticket) Ticket {
	out := *t
	out.Notes = append([]TicketNote(nil), t.Notes...)
	return out
}

// ticketMap renders a ticket the way tool results carry it in state.
func ticketMap(t Ticket) map[string]any {
	notes := make([]any, 0, len(t.Notes))
	for _, n := range t.Notes {
		notes = append(notes, map[string]any{
			"timestamp": n.Timestamp.Format(time.RFC3339),
			"author":    n.Author,
			"text":      n.Text,
		})
	}
	return map[string]any{
		"status":        t.Status,
		"issue":         t.Issue,
		"device":        t.Device,
		"priority":      t.Priority,
		"customer_name": t.CustomerName,
		"created_at":    t.CreatedAt.Format("2006-01-02"),
		"last_updated":  t.LastUpdated.Format("2006-01-02"),
		"notes":         notes,
	}
}
