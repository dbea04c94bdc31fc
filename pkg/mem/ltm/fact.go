package ltm

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// FactType categorizes a remembered fact.
type FactType string

// Fact types
const (
	// TypePromise is a promise or agreement made in conversation
	TypePromise FactType = "promise"

	// TypePreference is a like, dislike, or stated preference
	TypePreference FactType = "preference"

	// TypeRelationship is a change in the relationship between characters
	TypeRelationship FactType = "relationship"

	// TypeFact is an important factual statement or decision
	TypeFact FactType = "fact"

	// TypeDetail is a small detail a person would remember (names, traits)
	TypeDetail FactType = "detail"
)

// ParseFactType maps a string onto a known fact type.
// Unknown values report ok=false; callers fall back to TypeFact.
func ParseFactType(s string) (FactType, bool) {
	switch FactType(s) {
	case TypePromise, TypePreference, TypeRelationship, TypeFact, TypeDetail:
		return FactType(s), true
	}
	return TypeFact, false
}

// Fact is the basic unit of long-term memory: a third-person declarative
// statement with its embedding. The embedding is never mutated after
// construction; facts are replace-or-append only.
type Fact struct {
	// ID is a unique opaque identifier
	ID string

	// Content is the remembered statement
	Content string

	// Embedding is the vector representation of Content
	Embedding []float32

	// Type categorizes the fact
	Type FactType

	// Importance is in [0,1]; higher means more worth keeping
	Importance float32

	// CreatedAt is when the fact was extracted
	CreatedAt time.Time
}

// NewFact constructs a Fact with a fresh id and clamped importance.
func NewFact(content string, embedding []float32, factType FactType, importance float32) Fact {
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}
	return Fact{
		ID:         uuid.New().String(),
		Content:    content,
		Embedding:  embedding,
		Type:       factType,
		Importance: importance,
		CreatedAt:  time.Now(),
	}
}

func (f Fact) String() string {
	return fmt.Sprintf("[%s|%.2f] %s", f.Type, f.Importance, f.Content)
}

// CosineSimilarity computes the cosine similarity of two embeddings.
// Mismatched lengths and nil or empty vectors score 0 rather than erroring;
// absent embeddings simply have no relation to anything.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
