package queue

// Outcome tags the result of a queue mutation.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeOutOfRange    Outcome = "outOfRange"
	OutcomeEmpty         Outcome = "empty"
	OutcomePersistFailed Outcome = "persistFailed"
	OutcomeInvalid       Outcome = "invalid"
)

// Changed reports whether the outcome left the in-memory state modified.
// A failed snapshot write still counts: the mutation is not rolled back.
func (o Outcome) Changed() bool {
	return o == OutcomeApplied || o == OutcomePersistFailed
}
