package analyzer

import (
	"fmt"
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/providers"
)

// detectFalseDependencies flags edges u -> v that look removable: v never
// references anything u produced, and u is itself downstream of a shared
// ancestor that could satisfy v directly. Removing such an edge lets u
// and v run in parallel, saving the smaller of the two durations.
func detectFalseDependencies(p *dag.Pipeline, _ *Options) []Finding {
	var findings []Finding
	n := 0
	for _, from := range p.JobIDs() {
		for _, to := range p.Successors(from) {
			if !edgeLooksRemovable(p, from, to) {
				continue
			}
			u, _ := p.Job(from)
			v, _ := p.Job(to)
			savings := u.Duration()
			if v.Duration() < savings {
				savings = v.Duration()
			}
			n++
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-SERIAL-%03d", n),
				Severity:     SeverityHigh,
				Category:     CategoryFalseDependency,
				Title:        fmt.Sprintf("Jobs %q and %q serialize without a data dependency", from, to),
				Description:  fmt.Sprintf("Job %q waits for %q but never consumes anything it produces; both can start from their shared ancestor.", to, from),
				AffectedJobs: []string{from, to},
				Recommendation: fmt.Sprintf("Remove %q from the dependencies of %q so both run in parallel.", from, to),
				FixCommand:           fmt.Sprintf("pipelinex optimize --fix parallel --edge %s:%s", from, to),
				EstimatedSavingsSecs: savings,
				Confidence:           80,
				AutoFixable:          true,
			})
		}
	}
	return findings
}

// edgeLooksRemovable applies the two conditions: no textual artifact
// coupling between u and v, and u itself has an upstream ancestor the
// dependency could be rewired to.
func edgeLooksRemovable(p *dag.Pipeline, from, to string) bool {
	if len(p.Predecessors(from)) == 0 {
		return false
	}
	u, _ := p.Job(from)
	v, _ := p.Job(to)

	if uploadsArtifacts(u) && downloadsArtifacts(v) {
		return false
	}
	fromRefs := []string{from}
	if u.Name != "" && u.Name != from {
		fromRefs = append(fromRefs, u.Name)
	}
	for _, step := range v.Steps {
		text := strings.ToLower(step.Run + " " + step.Uses)
		for _, ref := range fromRefs {
			if ref != "" && strings.Contains(text, strings.ToLower(ref)) {
				return false
			}
		}
	}
	return true
}

func uploadsArtifacts(job *dag.Job) bool {
	for _, step := range job.Steps {
		if strings.Contains(step.Uses, "upload-artifact") ||
			strings.Contains(strings.ToLower(step.Run), "artifacts:") {
			return true
		}
	}
	return false
}

func downloadsArtifacts(job *dag.Job) bool {
	for _, step := range job.Steps {
		if strings.Contains(step.Uses, "download-artifact") {
			return true
		}
	}
	return false
}

// detectRedundantSetup flags two or more jobs that repeat an identical
// checkout+install prefix while sharing a common predecessor: the prefix
// belongs in the shared ancestor.
func detectRedundantSetup(p *dag.Pipeline, _ *Options) []Finding {
	type prefixGroup struct {
		jobs   []string
		shared bool
	}
	groups := make(map[string]*prefixGroup)

	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		prefix := setupPrefix(job)
		if prefix == "" {
			continue
		}
		g, ok := groups[prefix]
		if !ok {
			g = &prefixGroup{}
			groups[prefix] = g
		}
		g.jobs = append(g.jobs, id)
	}

	var findings []Finding
	n := 0
	for _, g := range groups {
		if len(g.jobs) < 2 || !shareCommonPredecessor(p, g.jobs) {
			continue
		}
		n++
		findings = append(findings, Finding{
			ID:           fmt.Sprintf("PLX-DUPSETUP-%03d", n),
			Severity:     SeverityMedium,
			Category:     CategoryRedundantSetup,
			Title:        fmt.Sprintf("%d jobs repeat an identical checkout and install prefix", len(g.jobs)),
			Description:  fmt.Sprintf("Jobs %s each begin with the same checkout+install sequence; the work could happen once in their shared predecessor.", strings.Join(g.jobs, ", ")),
			AffectedJobs: append([]string(nil), g.jobs...),
			Recommendation: "Hoist the shared setup into the common predecessor and pass its output down, or rely on a shared cache.",
			Confidence:   70,
		})
	}
	return findings
}

// setupPrefix fingerprints a leading checkout+install step sequence.
func setupPrefix(job *dag.Job) string {
	if len(job.Steps) < 2 {
		return ""
	}
	var parts []string
	for _, step := range job.Steps[:2] {
		switch providers.ClassifyStep(step) {
		case providers.ClassCheckout, providers.ClassInstall:
			parts = append(parts, strings.TrimSpace(step.Uses+"|"+step.Run))
		default:
			return ""
		}
	}
	return strings.Join(parts, "||")
}

func shareCommonPredecessor(p *dag.Pipeline, jobs []string) bool {
	counts := make(map[string]int)
	for _, id := range jobs {
		for _, pred := range p.Predecessors(id) {
			counts[pred]++
		}
	}
	for _, c := range counts {
		if c == len(jobs) {
			return true
		}
	}
	return false
}

// detectNoArtifactReuse flags a job that repeats a build command its
// predecessor already ran: the predecessor's output should be reused
// instead of rebuilt.
func detectNoArtifactReuse(p *dag.Pipeline, _ *Options) []Finding {
	var findings []Finding
	n := 0
	for _, id := range p.JobIDs() {
		job, _ := p.Job(id)
		for _, pred := range p.Predecessors(id) {
			predJob, _ := p.Job(pred)
			cmd := repeatedBuildCommand(predJob, job)
			if cmd == "" {
				continue
			}
			n++
			findings = append(findings, Finding{
				ID:           fmt.Sprintf("PLX-ARTIFACT-%03d", n),
				Severity:     SeverityMedium,
				Category:     CategoryNoArtifactReuse,
				Title:        fmt.Sprintf("Job %q rebuilds what %q already built", id, pred),
				Description:  fmt.Sprintf("Both jobs run %q; the downstream job should consume the upstream build output as an artifact instead.", cmd),
				AffectedJobs: []string{pred, id},
				Recommendation: fmt.Sprintf("Publish the build output of %q as an artifact and download it in %q.", pred, id),
				EstimatedSavingsSecs: buildDurationOf(job),
				Confidence:           75,
			})
			break
		}
	}
	return findings
}

func repeatedBuildCommand(upstream, downstream *dag.Job) string {
	built := make(map[string]bool)
	for _, step := range upstream.Steps {
		if providers.ClassifyStep(step) == providers.ClassBuild {
			built[normalizedRun(step)] = true
		}
	}
	if len(built) == 0 {
		return ""
	}
	for _, step := range downstream.Steps {
		if providers.ClassifyStep(step) == providers.ClassBuild && built[normalizedRun(step)] {
			return normalizedRun(step)
		}
	}
	return ""
}

func normalizedRun(step dag.Step) string {
	return strings.Join(strings.Fields(step.Run), " ")
}

func buildDurationOf(job *dag.Job) float64 {
	var sum float64
	for _, step := range job.Steps {
		if providers.ClassifyStep(step) == providers.ClassBuild {
			sum += step.EstimatedSeconds
		}
	}
	return sum
}
