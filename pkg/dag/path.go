package dag

// LongestPath computes the duration-weighted longest path through the
// graph: the critical path. It returns the job ids along the path in
// execution order and the summed duration in seconds.
func (p *Pipeline) LongestPath() ([]string, float64) {
	if len(p.nodes) == 0 {
		return nil, 0
	}

	order := p.TopologicalOrder()
	// dist[id] is the heaviest total ending at id; prev[id] reconstructs it.
	dist := make(map[string]float64, len(order))
	prev := make(map[string]string, len(order))

	for _, id := range order {
		dist[id] = p.nodes[id].Duration()
		for _, pred := range p.Predecessors(id) {
			candidate := dist[pred] + p.nodes[id].Duration()
			if candidate > dist[id] {
				dist[id] = candidate
				prev[id] = pred
			}
		}
	}

	var endID string
	var best float64
	for _, id := range order {
		if dist[id] > best || endID == "" {
			best = dist[id]
			endID = id
		}
	}

	var path []string
	for id := endID; id != ""; {
		path = append(path, id)
		id = prev[id]
	}
	// Reverse into execution order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, best
}

// MaxParallelism returns the maximum antichain width, approximated by
// ALAP level scheduling over the topological order: each job is placed
// as late as its longest chain of successors allows and the widest
// level wins.
// The result is exact for layered graphs and a documented heuristic for
// disconnected rich graphs; callers needing an exact antichain width
// should compute it themselves.
func (p *Pipeline) MaxParallelism() int {
	if len(p.nodes) == 0 {
		return 0
	}

	// height[id] is the longest successor chain below id; the ALAP level
	// of a job is the deepest height minus its own.
	order := p.TopologicalOrder()
	height := make(map[string]int, len(p.nodes))
	width := make(map[int]int)
	deepest := 0
	for i := len(order) - 1; i >= 0; i-- {
		h := 0
		for _, succ := range p.Successors(order[i]) {
			if height[succ]+1 > h {
				h = height[succ] + 1
			}
		}
		height[order[i]] = h
		deepest = max(deepest, h)
	}
	for _, h := range height {
		width[deepest-h]++
	}

	max := 1
	for _, w := range width {
		if w > max {
			max = w
		}
	}
	return max
}
