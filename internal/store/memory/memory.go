// Package memory provides an in-memory store implementation with the
// same conditional-update semantics as the SQL backends. It backs unit
// tests for the sweep loops; nothing here persists across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

const maxDeferred = 20

// core holds all state behind one mutex, which trivially satisfies
// the "single atomic conditional update" contract.
type core struct {
	mu sync.Mutex

	agents        map[uuid.UUID]*store.Agent
	contacts      map[uuid.UUID]*store.Contact
	conversations map[uuid.UUID]*store.ConversationState
	messages      map[uuid.UUID]*store.ScheduledMessage
	claimedAt     map[uuid.UUID]time.Time
	activity      []store.ActivityRecord
	conversation  []store.ConversationEntry
}

// Store exposes the in-memory backend as the engine's store container.
type Store struct {
	c *core
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{c: &core{
		agents:        make(map[uuid.UUID]*store.Agent),
		contacts:      make(map[uuid.UUID]*store.Contact),
		conversations: make(map[uuid.UUID]*store.ConversationState),
		messages:      make(map[uuid.UUID]*store.ScheduledMessage),
		claimedAt:     make(map[uuid.UUID]time.Time),
	}}
}

// Stores bundles the backend into the engine's container.
func (s *Store) Stores() *store.Stores {
	return &store.Stores{
		Agents:        &agentStore{s.c},
		Contacts:      &contactStore{s.c},
		Conversations: &conversationStore{s.c},
		Messages:      &messageStore{s.c},
		Activity:      &activityStore{s.c},
		Close:         func() error { return nil },
	}
}

// PutContact seeds a contact snapshot for ListActive joins.
func (s *Store) PutContact(c store.Contact) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cc := c
	s.c.contacts[c.ID] = &cc
}

// --- ContactStore ---

type contactStore struct{ c *core }

func (s *contactStore) Get(ctx context.Context, id uuid.UUID) (*store.Contact, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	c, ok := s.c.contacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *contactStore) Upsert(ctx context.Context, c *store.Contact) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = store.GenNewID()
	}
	cp := *c
	s.c.contacts[c.ID] = &cp
	return nil
}

// --- AgentStore ---

type agentStore struct{ c *core }

func (s *agentStore) Get(ctx context.Context, id uuid.UUID) (*store.Agent, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	a, ok := s.c.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *agentStore) Create(ctx context.Context, a *store.Agent) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = store.GenNewID()
	}
	cp := *a
	s.c.agents[a.ID] = &cp
	return nil
}

func (s *agentStore) ListActive(ctx context.Context) ([]store.AgentWithContact, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var out []store.AgentWithContact
	for _, a := range s.c.agents {
		if a.Status != store.AgentActive {
			continue
		}
		awc := store.AgentWithContact{Agent: *a}
		if c, ok := s.c.contacts[a.ContactID]; ok {
			awc.Contact = *c
		} else {
			awc.Contact = store.Contact{ID: a.ContactID}
		}
		out = append(out, awc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Agent.AssignedAt.Before(out[j].Agent.AssignedAt)
	})
	return out, nil
}

func (s *agentStore) RecordSend(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	a, ok := s.c.agents[id]
	if !ok {
		return store.ErrNotFound
	}
	a.MessagesSent++
	t := at
	a.LastEngagedAt = &t
	return nil
}

func (s *agentStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, a := range s.c.agents {
		if a.Status == store.AgentActive && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			a.Status = store.AgentExpired
			n++
		}
	}
	return n, nil
}

// --- ConversationStore ---

type conversationStore struct{ c *core }

func (s *conversationStore) GetOrCreate(ctx context.Context, contactID uuid.UUID) (*store.ConversationState, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	st := s.c.getOrCreateLocked(contactID)
	cp := *st
	cp.Deferred = append([]store.DeferredRequest(nil), st.Deferred...)
	return &cp, nil
}

func (c *core) getOrCreateLocked(contactID uuid.UUID) *store.ConversationState {
	if st, ok := c.conversations[contactID]; ok {
		return st
	}
	st := &store.ConversationState{ContactID: contactID, UpdatedAt: time.Now()}
	c.conversations[contactID] = st
	return st
}

func (s *conversationStore) Acquire(ctx context.Context, contactID, agentID uuid.UUID, priority int) (bool, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	st := s.c.getOrCreateLocked(contactID)
	if st.ActiveAgentID == nil || *st.ActiveAgentID == agentID || st.ActivePriority < priority {
		id := agentID
		st.ActiveAgentID = &id
		st.ActivePriority = priority
		st.UpdatedAt = time.Now()
		return true, nil
	}
	return false, nil
}

func (s *conversationStore) Defer(ctx context.Context, contactID uuid.UUID, req store.DeferredRequest) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	st := s.c.getOrCreateLocked(contactID)
	st.Deferred = append(st.Deferred, req)
	if len(st.Deferred) > maxDeferred {
		st.Deferred = st.Deferred[len(st.Deferred)-maxDeferred:]
	}
	st.UpdatedAt = time.Now()
	return nil
}

func (s *conversationStore) RecordSend(ctx context.Context, contactID uuid.UUID, at time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	st := s.c.getOrCreateLocked(contactID)
	st.SentToday++
	st.SentThisWeek++
	t := at
	st.LastMessageAt = &t
	st.UpdatedAt = time.Now()
	return nil
}

func (s *conversationStore) SetWaitingUntil(ctx context.Context, contactID uuid.UUID, until *time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	st := s.c.getOrCreateLocked(contactID)
	st.WaitingUntil = until
	st.UpdatedAt = time.Now()
	return nil
}

func (s *conversationStore) ResetDaily(ctx context.Context) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, st := range s.c.conversations {
		if st.SentToday != 0 {
			st.SentToday = 0
			n++
		}
	}
	return n, nil
}

func (s *conversationStore) ResetWeekly(ctx context.Context) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, st := range s.c.conversations {
		if st.SentThisWeek != 0 {
			st.SentThisWeek = 0
			n++
		}
	}
	return n, nil
}

// --- MessageStore ---

type messageStore struct{ c *core }

func (s *messageStore) Create(ctx context.Context, m *store.ScheduledMessage) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = store.GenNewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := *m
	s.c.messages[m.ID] = &cp
	return nil
}

func (s *messageStore) Get(ctx context.Context, id uuid.UUID) (*store.ScheduledMessage, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	m, ok := s.c.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *messageStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]store.ScheduledMessage, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var due []*store.ScheduledMessage
	for _, m := range s.c.messages {
		if m.Status == store.MessagePending && !m.ScheduledFor.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]store.ScheduledMessage, 0, len(due))
	for _, m := range due {
		m.Status = store.MessageClaimed
		s.c.claimedAt[m.ID] = now
		out = append(out, *m)
	}
	return out, nil
}

func (s *messageStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	m, ok := s.c.messages[id]
	if !ok || m.Status != store.MessageClaimed {
		return store.ErrInvalidTransition
	}
	m.Status = store.MessageSent
	t := at
	m.SentAt = &t
	delete(s.c.claimedAt, id)
	return nil
}

func (s *messageStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	m, ok := s.c.messages[id]
	if !ok || m.Status != store.MessageClaimed {
		return store.ErrInvalidTransition
	}
	m.Status = store.MessageFailed
	m.ErrorMessage = reason
	m.RetryCount++
	delete(s.c.claimedAt, id)
	return nil
}

func (s *messageStore) Release(ctx context.Context, id uuid.UUID) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	m, ok := s.c.messages[id]
	if !ok || m.Status != store.MessageClaimed {
		return store.ErrInvalidTransition
	}
	m.Status = store.MessagePending
	delete(s.c.claimedAt, id)
	return nil
}

func (s *messageStore) ReleaseStale(ctx context.Context, staleBefore time.Time) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for id, at := range s.c.claimedAt {
		if at.Before(staleBefore) {
			if m, ok := s.c.messages[id]; ok && m.Status == store.MessageClaimed {
				m.Status = store.MessagePending
				n++
			}
			delete(s.c.claimedAt, id)
		}
	}
	return n, nil
}

func (s *messageStore) CountRecentByKind(ctx context.Context, contactID uuid.UUID, kind string, since time.Time) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, m := range s.c.messages {
		if m.ContactID == contactID && m.Kind == kind && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- ActivityStore ---

type activityStore struct{ c *core }

func (s *activityStore) Append(ctx context.Context, rec *store.ActivityRecord) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = store.GenNewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.c.activity = append(s.c.activity, *rec)
	return nil
}

func (s *activityStore) ListByKinds(ctx context.Context, contactID uuid.UUID, kinds []string, limit int) ([]store.ActivityRecord, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []store.ActivityRecord
	for i := len(s.c.activity) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.c.activity[i]
		if rec.ContactID == contactID && want[rec.Kind] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *activityStore) AppendConversation(ctx context.Context, e *store.ConversationEntry) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = store.GenNewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.c.conversation = append(s.c.conversation, *e)
	return nil
}

func (s *activityStore) RecentConversation(ctx context.Context, contactID uuid.UUID, limit int) ([]store.ConversationEntry, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	var all []store.ConversationEntry
	for _, e := range s.c.conversation {
		if e.ContactID == contactID {
			all = append(all, e)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
