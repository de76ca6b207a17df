package recurrence

// Config tunes the defensive limits of a Recurrence. The engine is exact;
// these bounds only cap pathological inputs such as an exclusion rule that
// cancels every inclusion.
type Config struct {
	// IterationBudget bounds the candidate-then-exclude rounds of
	// GetNextDateTime and GetPreviousDateTime. When the budget is spent
	// without finding an admissible occurrence, the search reports none.
	IterationBudget int
}

// DefaultConfig is used by New.
var DefaultConfig = Config{
	IterationBudget: 1000,
}

// ExhaustiveConfig trades time for a deeper exclusion search. Useful when
// secondly rules meet large exclusion sets.
var ExhaustiveConfig = Config{
	IterationBudget: 100000,
}
