// Package dag holds the pipeline intermediate representation shared by
// all provider parsers, the analyzer, the optimizer, and the simulator.
// A Pipeline is built once by a parser and consumed read-only downstream.
package dag

import "github.com/pipelinex/pipelinex/pkg/logger"

var log = logger.New("dag:graph")

// Pipeline is a directed acyclic graph of jobs plus pipeline-level metadata.
type Pipeline struct {
	// Name is the human-readable pipeline name.
	Name string
	// SourcePath is diagnostic only and never affects analysis.
	SourcePath string
	Provider   Provider

	// Triggers lists the events that start the pipeline, normalized to
	// provider event names ("push", "pull_request", ...).
	Triggers []string
	// HasPathFilters records whether any trigger carries a path filter.
	HasPathFilters bool
	// HasConcurrencyGroup records a pipeline-level cancel-in-progress group.
	HasConcurrencyGroup bool

	nodes   map[string]*Job
	ordered []string // insertion order, the tie-break for deterministic output

	// edges[from][to]; reverse[to][from]. The edge set is the
	// authoritative dependency source; Job.Needs only mirrors it.
	edges   map[string]map[string]bool
	reverse map[string]map[string]bool
}

// New creates an empty pipeline graph.
func New(name string, provider Provider) *Pipeline {
	return &Pipeline{
		Name:     name,
		Provider: provider,
		nodes:    make(map[string]*Job),
		edges:    make(map[string]map[string]bool),
		reverse:  make(map[string]map[string]bool),
	}
}

// AddJob inserts a node keyed by its unique id.
func (p *Pipeline) AddJob(job *Job) error {
	if _, exists := p.nodes[job.ID]; exists {
		return &DuplicateIDError{ID: job.ID}
	}
	p.nodes[job.ID] = job
	p.ordered = append(p.ordered, job.ID)
	p.edges[job.ID] = make(map[string]bool)
	p.reverse[job.ID] = make(map[string]bool)
	return nil
}

// AddEdge inserts a dependency edge from -> to (from runs before to).
// Both endpoints must already exist, and the edge may not close a cycle.
func (p *Pipeline) AddEdge(from, to string) error {
	if _, ok := p.nodes[from]; !ok {
		return &UnknownNodeError{ID: from}
	}
	if _, ok := p.nodes[to]; !ok {
		return &UnknownNodeError{ID: to}
	}
	if from == to {
		return &CycleError{From: from, To: to, Path: []string{from, to}}
	}
	if p.edges[from][to] {
		return nil
	}
	// Incremental cycle check: a path to -> ... -> from means the new
	// edge would close a cycle.
	if path := p.findPath(to, from); path != nil {
		log.Printf("rejecting edge %s -> %s: cycle via %v", from, to, path)
		return &CycleError{From: from, To: to, Path: append(path, to)}
	}
	p.edges[from][to] = true
	p.reverse[to][from] = true
	return nil
}

// findPath returns the node sequence of a path from src to dst via DFS,
// or nil when no path exists.
func (p *Pipeline) findPath(src, dst string) []string {
	visited := make(map[string]bool, len(p.nodes))
	var stack []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		if visited[id] {
			return false
		}
		visited[id] = true
		stack = append(stack, id)
		if id == dst {
			return true
		}
		for next := range p.edges[id] {
			if dfs(next) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		return false
	}
	if dfs(src) {
		return append([]string(nil), stack...)
	}
	return nil
}

// Job looks up a node by id.
func (p *Pipeline) Job(id string) (*Job, bool) {
	j, ok := p.nodes[id]
	return j, ok
}

// JobIDs returns all job ids in insertion order.
func (p *Pipeline) JobIDs() []string {
	return append([]string(nil), p.ordered...)
}

// JobCount returns the number of jobs.
func (p *Pipeline) JobCount() int {
	return len(p.nodes)
}

// StepCount returns the total number of steps across all jobs.
func (p *Pipeline) StepCount() int {
	var n int
	for _, id := range p.ordered {
		n += len(p.nodes[id].Steps)
	}
	return n
}

// HasEdge reports whether the edge from -> to is present.
func (p *Pipeline) HasEdge(from, to string) bool {
	return p.edges[from][to]
}

// Predecessors returns the direct upstream job ids of id, in insertion order.
func (p *Pipeline) Predecessors(id string) []string {
	return p.orderedSubset(p.reverse[id])
}

// Successors returns the direct downstream job ids of id, in insertion order.
func (p *Pipeline) Successors(id string) []string {
	return p.orderedSubset(p.edges[id])
}

func (p *Pipeline) orderedSubset(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, id := range p.ordered {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

// TopologicalOrder returns the job ids in a valid execution order using
// Kahn's algorithm, breaking ties by insertion order so output is
// deterministic across runs.
func (p *Pipeline) TopologicalOrder() []string {
	inDegree := make(map[string]int, len(p.nodes))
	for id := range p.nodes {
		inDegree[id] = len(p.reverse[id])
	}

	queue := make([]string, 0, len(p.nodes))
	for _, id := range p.ordered {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(p.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)

		// Release successors in insertion order to keep the result stable.
		for _, next := range p.ordered {
			if !p.edges[id][next] {
				continue
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	// Construction rejects cycles, so every node is always emitted.
	return sorted
}
