package hashengine

import "fmt"

// CycleDetectedError is returned when a rule's dependency chain loops
// back on itself during evaluation.
type CycleDetectedError struct {
	Label string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("hashengine: cycle detected at %s", e.Label)
}

// MissingFineGrainedTargetError is returned when a dependency belongs
// to a repository configured for fine-grained hashing but the query
// did not return a target for it.
type MissingFineGrainedTargetError struct {
	Label string
}

func (e *MissingFineGrainedTargetError) Error() string {
	return fmt.Sprintf("hashengine: missing fine-grained target %s", e.Label)
}
