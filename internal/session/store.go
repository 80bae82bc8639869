package session

import (
	"fmt"
	"sync"
	"time"

	"triage-chatbot/internal/llm"
	"triage-chatbot/pkg"
)

// DefaultMaxHistory is the history capacity used when none is configured.
const DefaultMaxHistory = 20

// Key names one field of a session context.
type Key string

const (
	KeyLastDiagnosis    Key = "last_diagnosis"
	KeyImageDescription Key = "image_description"
	KeyImageDiseaseList Key = "image_disease_list"
	KeyBase64Image      Key = "base64_image"
	KeyChatHandle       Key = "chat_handle"
	KeyImageUploaded    Key = "image_uploaded"
)

// Context is the mutable per-session state consulted by the turn service.
// The zero value is the default for every key.
type Context struct {
	LastDiagnosis    pkg.Diagnosis
	ImageDescription string
	ImageDiseaseList []string
	Base64Image      string
	ChatHandle       llm.ChatSession
	ImageUploaded    bool
}

func (c Context) clone() Context {
	if c.ImageDiseaseList != nil {
		c.ImageDiseaseList = append([]string(nil), c.ImageDiseaseList...)
	}
	return c
}

type record struct {
	mu      sync.Mutex // guards history and ctx
	turn    sync.Mutex // held for the duration of one turn
	history []pkg.Message
	ctx     Context
}

// Store keeps conversation history and context for every live session in
// memory.  Distinct sessions never share a lock.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*record
	maxHistory int
	now        func() time.Time
}

// NewStore constructs an empty store.  maxHistory <= 0 selects
// DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string]*record),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// GetOrCreate returns the session record, creating a fully defaulted one on
// first access.  It reports whether the session was created by this call.
func (s *Store) GetOrCreate(id string) (created bool) {
	_, created = s.getOrCreate(id)
	return created
}

func (s *Store) getOrCreate(id string) (*record, bool) {
	s.mu.RLock()
	rec, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return rec, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[id]; ok {
		return rec, false
	}
	rec = &record{}
	s.sessions[id] = rec
	return rec, true
}

// Exists reports whether a session is currently held.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// AddMessage appends a message, evicting the oldest entries once the history
// exceeds its capacity.
func (s *Store) AddMessage(id string, role pkg.MessageRole, content string) {
	rec, _ := s.getOrCreate(id)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.history = append(rec.history, pkg.Message{Role: role, Content: content, CreatedAt: s.now()})
	if over := len(rec.history) - s.maxHistory; over > 0 {
		rec.history = append([]pkg.Message(nil), rec.history[over:]...)
	}
}

// Conversation returns a copy of the session history in arrival order.
func (s *Store) Conversation(id string) []pkg.Message {
	rec, _ := s.getOrCreate(id)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	out := make([]pkg.Message, len(rec.history))
	copy(out, rec.history)
	return out
}

// Context returns a snapshot of the session context.
func (s *Store) Context(id string) Context {
	rec, _ := s.getOrCreate(id)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.ctx.clone()
}

// Update applies fn to the session context under the session lock.
func (s *Store) Update(id string, fn func(*Context)) {
	rec, _ := s.getOrCreate(id)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	fn(&rec.ctx)
}

// Get reads a single context field by key.
func (s *Store) Get(id string, key Key) (any, error) {
	c := s.Context(id)
	switch key {
	case KeyLastDiagnosis:
		return c.LastDiagnosis, nil
	case KeyImageDescription:
		return c.ImageDescription, nil
	case KeyImageDiseaseList:
		return c.ImageDiseaseList, nil
	case KeyBase64Image:
		return c.Base64Image, nil
	case KeyChatHandle:
		return c.ChatHandle, nil
	case KeyImageUploaded:
		return c.ImageUploaded, nil
	}
	return nil, fmt.Errorf("session: unknown context key %q", key)
}

// Set writes a single context field by key.  The value must have the field's
// type; a nil value resets the field to its default.
func (s *Store) Set(id string, key Key, value any) error {
	var err error
	s.Update(id, func(c *Context) {
		err = setField(c, key, value)
	})
	return err
}

func setField(c *Context, key Key, value any) error {
	switch key {
	case KeyLastDiagnosis:
		if value == nil {
			c.LastDiagnosis = pkg.Diagnosis{}
			return nil
		}
		if v, ok := value.(pkg.Diagnosis); ok {
			c.LastDiagnosis = v
			return nil
		}
	case KeyImageDescription:
		if value == nil {
			c.ImageDescription = ""
			return nil
		}
		if v, ok := value.(string); ok {
			c.ImageDescription = v
			return nil
		}
	case KeyImageDiseaseList:
		if value == nil {
			c.ImageDiseaseList = nil
			return nil
		}
		if v, ok := value.([]string); ok {
			c.ImageDiseaseList = append([]string(nil), v...)
			return nil
		}
	case KeyBase64Image:
		if value == nil {
			c.Base64Image = ""
			return nil
		}
		if v, ok := value.(string); ok {
			c.Base64Image = v
			return nil
		}
	case KeyChatHandle:
		if value == nil {
			c.ChatHandle = nil
			return nil
		}
		if v, ok := value.(llm.ChatSession); ok {
			c.ChatHandle = v
			return nil
		}
	case KeyImageUploaded:
		if value == nil {
			c.ImageUploaded = false
			return nil
		}
		if v, ok := value.(bool); ok {
			c.ImageUploaded = v
			return nil
		}
	default:
		return fmt.Errorf("session: unknown context key %q", key)
	}
	return fmt.Errorf("session: invalid value of type %T for key %q", value, key)
}

// ResetChat drops the cached chat handle so the next turn opens a fresh one.
func (s *Store) ResetChat(id string) {
	s.Update(id, func(c *Context) { c.ChatHandle = nil })
}

// Lock serialises turns of one session.  The returned function releases it.
// A session cleared while the caller waited is locked afresh.
func (s *Store) Lock(id string) (unlock func()) {
	for {
		rec, _ := s.getOrCreate(id)
		rec.turn.Lock()
		s.mu.RLock()
		current := s.sessions[id]
		s.mu.RUnlock()
		if current == rec {
			return rec.turn.Unlock
		}
		rec.turn.Unlock()
	}
}

// Clear removes the session entirely.  Later reads see a brand-new session.
// A turn in progress on the session finishes first.  Clear must not be
// called while holding the session's turn lock.
func (s *Store) Clear(id string) {
	s.mu.RLock()
	rec, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	rec.turn.Lock()
	defer rec.turn.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[id] == rec {
		delete(s.sessions, id)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
