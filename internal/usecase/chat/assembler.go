package chat

import (
	"strings"

	"github.com/kailas-cloud/schemachat/internal/domain"
)

// DefaultTokenBudget is the context ceiling in tokens.
const DefaultTokenBudget = 1500

const sectionSeparator = "\n---\n"

// Assembler packs ranked records into a token-bounded context block.
type Assembler struct {
	counter TokenCounter
	budget  int
}

// NewAssembler creates an assembler. A non-positive budget selects DefaultTokenBudget.
func NewAssembler(counter TokenCounter, budget int) *Assembler {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return &Assembler{counter: counter, budget: budget}
}

// Assembled is the outcome of one Assemble call.
type Assembled struct {
	Text     string
	Tokens   int // running count, including the record that hit the ceiling
	Included int
}

// Assemble walks records in rank order. Each record's tokens are added to the
// running count before the check; once the count reaches the budget the record
// is dropped and iteration stops.
func (a *Assembler) Assemble(records []domain.ContextRecord) Assembled {
	var (
		b    strings.Builder
		used int
		n    int
	)
	for _, r := range records {
		used += a.counter.Count(r.Content)
		if used >= a.budget {
			break
		}
		b.WriteString(strings.TrimSpace(r.Content))
		b.WriteString(sectionSeparator)
		n++
	}
	return Assembled{Text: b.String(), Tokens: used, Included: n}
}
