// Package convo holds per-actor conversation state: the verbatim rolling
// message history, the rolling short-term summary, and the long-term fact
// index. State is created lazily on first touch and never shared across
// actor ids.
package convo

import (
	"context"
	"sync"
	"time"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/llm"
	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
)

// state is one actor's memory. Mutated only through Store methods.
type state struct {
	history     []llm.Message
	summary     string
	facts       ltm.Index
	lastUpdated time.Time
}

// Store is the process-wide map of actor conversation state.
//
// Callers are expected to serialize SendMessage flows per actor; the mutex
// here exists because compaction side effects run on detached goroutines,
// not to make interleaved same-actor turns safe.
type Store struct {
	mu sync.RWMutex

	actors map[actor.ID]*state

	// maxHistory caps the rolling history after every append.
	// Zero or negative means unlimited.
	maxHistory int

	indexFactory ltm.Factory
}

// NewStore creates a Store. The factory builds each actor's fact index on
// first touch.
func NewStore(maxHistory int, factory ltm.Factory) *Store {
	return &Store{
		actors:       make(map[actor.ID]*state),
		maxHistory:   maxHistory,
		indexFactory: factory,
	}
}

// getOrCreate returns the actor's state, creating it lazily.
// Callers must hold s.mu.
func (s *Store) getOrCreate(id actor.ID) *state {
	st, ok := s.actors[id]
	if !ok {
		st = &state{
			facts:       s.indexFactory(string(id)),
			lastUpdated: time.Now(),
		}
		s.actors[id] = st
		log.Debug("Created conversation state", "actor_id", id)
	}
	return st
}

// History returns a copy of the actor's message history.
func (s *Store) History(id actor.ID) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	out := make([]llm.Message, len(st.history))
	copy(out, st.history)
	return out
}

// AddMessage appends a message and trims the history to the configured cap.
func (s *Store) AddMessage(id actor.ID, role llm.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	st.history = append(st.history, llm.NewMessage(role, content))
	st.lastUpdated = time.Now()
	if s.maxHistory > 0 {
		trimHistory(st, s.maxHistory)
	}
}

// TrimHistory removes oldest messages until at most maxCount remain.
// maxCount <= 0 means unlimited and is a no-op.
func (s *Store) TrimHistory(id actor.ID, maxCount int) {
	if maxCount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	trimHistory(s.getOrCreate(id), maxCount)
}

func trimHistory(st *state, maxCount int) {
	if len(st.history) > maxCount {
		removed := len(st.history) - maxCount
		st.history = append([]llm.Message(nil), st.history[removed:]...)
	}
}

// ClearHistory empties the short-term working history only; the rolling
// summary and long-term facts are untouched.
func (s *Store) ClearHistory(id actor.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	st.history = nil
	st.lastUpdated = time.Now()
	log.Debug("Cleared conversation history", "actor_id", id)
}

// MessageCount returns the number of messages in the actor's history.
func (s *Store) MessageCount(id actor.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.actors[id]; ok {
		return len(st.history)
	}
	return 0
}

// Summary returns the actor's rolling short-term summary.
func (s *Store) Summary(id actor.ID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.actors[id]; ok {
		return st.summary
	}
	return ""
}

// SetSummary replaces the rolling summary.
func (s *Store) SetSummary(id actor.ID, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	st.summary = summary
	st.lastUpdated = time.Now()
}

// AppendSummary concatenates onto the rolling summary with a blank-line
// separator, or sets it directly when none exists yet.
func (s *Store) AppendSummary(id actor.ID, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	if st.summary == "" {
		st.summary = summary
	} else {
		st.summary += "\n\n" + summary
	}
	st.lastUpdated = time.Now()
}

// ClearSummary empties the rolling summary.
func (s *Store) ClearSummary(id actor.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	st.summary = ""
	st.lastUpdated = time.Now()
}

// Index returns the actor's long-term fact index, creating it if needed.
func (s *Store) Index(id actor.ID) ltm.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id).facts
}

// AddFact stores a fact in the actor's long-term index.
func (s *Store) AddFact(ctx context.Context, id actor.ID, fact ltm.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id).facts.Add(ctx, fact)
}

// AddFacts stores facts in order.
func (s *Store) AddFacts(ctx context.Context, id actor.ID, facts []ltm.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id).facts.AddBatch(ctx, facts)
}

// RetrieveRelevantMemories performs similarity search over the actor's
// long-term facts. Pass ltm.UseDefaultThreshold for the configured one.
func (s *Store) RetrieveRelevantMemories(ctx context.Context, id actor.ID, query []float32, topK int, threshold float32) ([]ltm.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(id).facts.Retrieve(ctx, query, topK, threshold)
}

// FactCount returns the size of the actor's long-term index.
func (s *Store) FactCount(id actor.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.actors[id]; ok {
		return st.facts.Count()
	}
	return 0
}

// ClearAll wipes history, summary, and long-term facts for one actor.
// Distinct from ClearHistory, which keeps summary and facts.
func (s *Store) ClearAll(ctx context.Context, id actor.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(id)
	st.history = nil
	st.summary = ""
	st.lastUpdated = time.Now()
	if err := st.facts.Clear(ctx); err != nil {
		return err
	}
	log.Debug("Cleared all memory", "actor_id", id)
	return nil
}

// ClearAllActors drops every actor's state.
func (s *Store) ClearAllActors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors = make(map[actor.ID]*state)
	log.Debug("Cleared all actors")
}

// HasActor reports whether state exists for the actor id.
func (s *Store) HasActor(id actor.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.actors[id]
	return ok
}

// ActorCount returns the number of actors with state.
func (s *Store) ActorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

// LastUpdated returns when the actor's state last changed.
func (s *Store) LastUpdated(id actor.ID) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.actors[id]; ok {
		return st.lastUpdated, true
	}
	return time.Time{}, false
}

// MaxHistory returns the configured history cap (0 means unlimited).
func (s *Store) MaxHistory() int {
	return s.maxHistory
}
