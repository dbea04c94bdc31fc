package ltm

import (
	"context"
	"fmt"
	"strings"
)

// Digest returns a short human-readable summary of an index's contents,
// grouped by fact type. Intended for debugging and CLI inspection.
func Digest(ctx context.Context, idx Index) string {
	facts, err := idx.All(ctx)
	if err != nil {
		return fmt.Sprintf("error reading facts: %v", err)
	}
	if len(facts) == 0 {
		return "no long-term memories"
	}

	counts := make(map[FactType]int)
	var order []FactType
	for _, fact := range facts {
		if counts[fact.Type] == 0 {
			order = append(order, fact.Type)
		}
		counts[fact.Type]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "total facts: %d\n", len(facts))
	for _, factType := range order {
		fmt.Fprintf(&b, "  - %s: %d\n", factType, counts[factType])
	}
	return b.String()
}
