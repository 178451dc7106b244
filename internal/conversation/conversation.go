package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrTurnInFlight is returned by Begin when another turn is already being
// processed for the same conversation.
var ErrTurnInFlight = errors.New("conversation: turn already in flight")

// Turn is one message in a conversation. Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is an ordered, append-only log of turns owned by a single
// session. Turns are never reordered or mutated after append.
type Conversation struct {
	id    string
	mu    sync.Mutex
	turns []Turn
	busy  bool
	clock func() time.Time
}

func New(id string) *Conversation {
	return &Conversation{id: id, clock: time.Now}
}

func (c *Conversation) ID() string { return c.id }

// Begin reserves the conversation for a single in-flight turn. Callers must
// pair it with End. A second Begin while one turn is in flight fails with
// ErrTurnInFlight rather than queueing.
func (c *Conversation) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrTurnInFlight
	}
	c.busy = true
	return nil
}

func (c *Conversation) End() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Append adds a turn to the end of the log and returns it.
func (c *Conversation) Append(role Role, content string) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	turn := Turn{Role: role, Content: content, CreatedAt: c.clock().UTC()}
	c.turns = append(c.turns, turn)
	return turn
}

// Turns returns a copy of the full turn log, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Window returns up to max of the most recent turns, still oldest first. This
// bounds the context sent to chat completion.
func (c *Conversation) Window(max int) []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if max <= 0 || max >= len(c.turns) {
		out := make([]Turn, len(c.turns))
		copy(out, c.turns)
		return out
	}
	out := make([]Turn, max)
	copy(out, c.turns[len(c.turns)-max:])
	return out
}

// Manager tracks live conversations by ID. Each conversation is owned by one
// session; the manager only hands out pointers, it never mutates turn logs.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewManager() *Manager {
	return &Manager{conversations: make(map[string]*Conversation)}
}

// Create starts a fresh conversation with a generated ID.
func (m *Manager) Create() *Conversation {
	conv := New(uuid.NewString())
	m.mu.Lock()
	m.conversations[conv.id] = conv
	m.mu.Unlock()
	return conv
}

func (m *Manager) Get(id string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	return conv, ok
}

// Reset discards the turn log for id and starts an empty conversation under
// the same ID. This is the explicit new-session action.
func (m *Manager) Reset(id string) *Conversation {
	conv := New(id)
	m.mu.Lock()
	m.conversations[id] = conv
	m.mu.Unlock()
	return conv
}

// Remove drops a conversation from the manager.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.conversations, id)
	m.mu.Unlock()
}
