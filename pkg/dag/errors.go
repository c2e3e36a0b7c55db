package dag

import "fmt"

// DuplicateIDError is returned by AddJob when the id is already present.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate job id %q", e.ID)
}

// UnknownNodeError is returned by AddEdge when an endpoint does not resolve.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown job id %q", e.ID)
}

// CycleError is returned by AddEdge when the edge would close a cycle.
// Path lists the job ids on the offending cycle, starting and ending at To.
type CycleError struct {
	From string
	To   string
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("edge %s -> %s would create a cycle", e.From, e.To)
}
