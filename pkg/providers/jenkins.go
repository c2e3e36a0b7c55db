package providers

import (
	"context"
	"strings"
	"unicode"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

// Jenkins input is imperative Groovy rather than YAML. A small hand-rolled
// lexer tokenizes the declarative subset:
//
//	pipeline { agent { ... } stages { stage("x") { steps { sh '...' } } } }
//
// Scripted pipelines (no top-level pipeline block) are rejected with
// SchemaMismatch. Inside the declarative form, unknown blocks are skipped
// by brace matching.

type groovyTokenKind int

const (
	tokIdent groovyTokenKind = iota
	tokString
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokOther
)

type groovyToken struct {
	kind groovyTokenKind
	text string
	line int
}

// lexGroovy tokenizes Groovy source, preserving line numbers for
// diagnostics. Comments are dropped; string contents keep interpolation
// markers such as ${...} as written.
func lexGroovy(src string) []groovyToken {
	var tokens []groovyToken
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case unicode.IsSpace(rune(c)):
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			i += 2
		case c == '\'' || c == '"':
			quote := c
			triple := strings.HasPrefix(src[i:], strings.Repeat(string(quote), 3))
			var value strings.Builder
			if triple {
				i += 3
				for i+2 < len(src) && !strings.HasPrefix(src[i:], strings.Repeat(string(quote), 3)) {
					if src[i] == '\n' {
						line++
					}
					value.WriteByte(src[i])
					i++
				}
				i += 3
			} else {
				i++
				for i < len(src) && src[i] != quote {
					if src[i] == '\\' && i+1 < len(src) {
						value.WriteByte(src[i+1])
						i += 2
						continue
					}
					if src[i] == '\n' {
						line++
					}
					value.WriteByte(src[i])
					i++
				}
				i++
			}
			tokens = append(tokens, groovyToken{kind: tokString, text: value.String(), line: line})
		case c == '{':
			tokens = append(tokens, groovyToken{kind: tokLBrace, line: line})
			i++
		case c == '}':
			tokens = append(tokens, groovyToken{kind: tokRBrace, line: line})
			i++
		case c == '(':
			tokens = append(tokens, groovyToken{kind: tokLParen, line: line})
			i++
		case c == ')':
			tokens = append(tokens, groovyToken{kind: tokRParen, line: line})
			i++
		case unicode.IsLetter(rune(c)) || c == '_':
			start := i
			for i < len(src) && (unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i])) || src[i] == '_') {
				i++
			}
			tokens = append(tokens, groovyToken{kind: tokIdent, text: src[start:i], line: line})
		default:
			tokens = append(tokens, groovyToken{kind: tokOther, text: string(c), line: line})
			i++
		}
	}
	return tokens
}

type groovyParser struct {
	tokens []groovyToken
	pos    int
}

func (gp *groovyParser) peek() *groovyToken {
	if gp.pos >= len(gp.tokens) {
		return nil
	}
	return &gp.tokens[gp.pos]
}

func (gp *groovyParser) next() *groovyToken {
	t := gp.peek()
	if t != nil {
		gp.pos++
	}
	return t
}

// skipBlock consumes a balanced { ... } block, assuming the opening brace
// has already been consumed.
func (gp *groovyParser) skipBlock() {
	depth := 1
	for depth > 0 {
		t := gp.next()
		if t == nil {
			return
		}
		switch t.kind {
		case tokLBrace:
			depth++
		case tokRBrace:
			depth--
		}
	}
}

// expectBrace advances past tokens until the next {, returning false when
// none occurs before the end of input or a closing brace.
func (gp *groovyParser) expectBrace() bool {
	for {
		t := gp.peek()
		if t == nil || t.kind == tokRBrace {
			return false
		}
		gp.pos++
		if t.kind == tokLBrace {
			return true
		}
	}
}

type jenkinsStage struct {
	name     string
	steps    []dag.Step
	parallel []jenkinsStage
	agent    string
}

// parseJenkins tokenizes the Jenkinsfile and walks the stage tree.
// Sequential stages chain; a parallel block fans out between the
// surrounding stages.
func parseJenkins(ctx context.Context, path string, data []byte) (*dag.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gp := &groovyParser{tokens: lexGroovy(string(data))}

	// Find the top-level pipeline block.
	foundPipeline := false
	for {
		t := gp.next()
		if t == nil {
			break
		}
		if t.kind == tokIdent && t.text == "pipeline" {
			if gp.expectBrace() {
				foundPipeline = true
				break
			}
		}
	}
	if !foundPipeline {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "no declarative pipeline block found"}
	}

	var stages []jenkinsStage
	topAgent := ""
	depth := 1
	for depth > 0 {
		t := gp.next()
		if t == nil {
			break
		}
		switch {
		case t.kind == tokLBrace:
			depth++
		case t.kind == tokRBrace:
			depth--
		case t.kind == tokIdent && t.text == "agent" && depth == 1:
			topAgent = gp.parseAgent()
		case t.kind == tokIdent && t.text == "stages" && depth == 1:
			if gp.expectBrace() {
				stages = append(stages, gp.parseStages()...)
			}
		}
	}

	if len(stages) == 0 {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: "pipeline has no stages"}
	}

	p := dag.New("jenkins", dag.ProviderJenkins)
	p.SourcePath = path
	p.Triggers = []string{"scm"}

	// Wire stages serially; parallel groups fan out and rejoin.
	var prevIDs []string
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := addJenkinsStage(p, path, stage, topAgent, prevIDs)
		if err != nil {
			return nil, err
		}
		prevIDs = ids
	}
	return p, nil
}

func addJenkinsStage(p *dag.Pipeline, path string, stage jenkinsStage, topAgent string, prevIDs []string) ([]string, error) {
	if len(stage.parallel) > 0 {
		var ids []string
		for _, sub := range stage.parallel {
			subIDs, err := addJenkinsStage(p, path, sub, topAgent, prevIDs)
			if err != nil {
				return nil, err
			}
			ids = append(ids, subIDs...)
		}
		return ids, nil
	}

	agent := stage.agent
	if agent == "" {
		agent = topAgent
	}
	job := &dag.Job{
		ID:     stringutil.Slugify(stage.name),
		Name:   stage.name,
		Steps:  stage.steps,
		Needs:  prevIDs,
		RunsOn: agent,
	}
	annotateDurations(job)
	if err := p.AddJob(job); err != nil {
		return nil, &ParseError{Kind: ErrSchemaMismatch, Path: path, Message: err.Error(), JobIDs: []string{job.ID}}
	}
	for _, prev := range prevIDs {
		if err := p.AddEdge(prev, job.ID); err != nil {
			return nil, edgeError(path, prev, job.ID, err)
		}
	}
	return []string{job.ID}, nil
}

// parseStages consumes the body of a stages { ... } or parallel { ... }
// block, whose opening brace has already been consumed.
func (gp *groovyParser) parseStages() []jenkinsStage {
	var stages []jenkinsStage
	depth := 1
	for depth > 0 {
		t := gp.next()
		if t == nil {
			break
		}
		switch {
		case t.kind == tokLBrace:
			depth++
		case t.kind == tokRBrace:
			depth--
		case t.kind == tokIdent && t.text == "stage" && depth == 1:
			if stage, ok := gp.parseStage(); ok {
				stages = append(stages, stage)
			}
		}
	}
	return stages
}

// parseStage consumes stage("name") { ... }.
func (gp *groovyParser) parseStage() (jenkinsStage, bool) {
	stage := jenkinsStage{}

	if t := gp.peek(); t != nil && t.kind == tokLParen {
		gp.next()
		for {
			t := gp.next()
			if t == nil || t.kind == tokRParen {
				break
			}
			if t.kind == tokString && stage.name == "" {
				stage.name = t.text
			}
		}
	}
	if stage.name == "" {
		stage.name = "stage"
	}
	if !gp.expectBrace() {
		return stage, false
	}

	depth := 1
	for depth > 0 {
		t := gp.next()
		if t == nil {
			break
		}
		switch {
		case t.kind == tokLBrace:
			depth++
		case t.kind == tokRBrace:
			depth--
		case t.kind == tokIdent && depth == 1:
			switch t.text {
			case "steps":
				if gp.expectBrace() {
					stage.steps = gp.parseSteps()
				}
			case "parallel":
				if gp.expectBrace() {
					stage.parallel = gp.parseStages()
				}
			case "agent":
				stage.agent = gp.parseAgent()
			case "when", "post", "options", "environment":
				if gp.expectBrace() {
					gp.skipBlock()
				}
			}
		}
	}
	return stage, true
}

// parseSteps consumes a steps { ... } body, collecting sh/bat/powershell
// commands and named step invocations.
func (gp *groovyParser) parseSteps() []dag.Step {
	var steps []dag.Step
	depth := 1
	for depth > 0 {
		t := gp.next()
		if t == nil {
			break
		}
		switch {
		case t.kind == tokLBrace:
			depth++
		case t.kind == tokRBrace:
			depth--
		case t.kind == tokIdent && depth == 1:
			switch t.text {
			case "sh", "bat", "powershell":
				if cmd := gp.parseCommandArg(); cmd != "" {
					steps = append(steps, dag.Step{Run: cmd})
				}
			case "checkout":
				steps = append(steps, dag.Step{Name: "checkout", Run: "git checkout"})
				// checkout scm passes a bare ident argument.
				if t := gp.peek(); t != nil && t.kind == tokIdent && t.text == "scm" {
					gp.next()
				}
				gp.skipCallArgs()
			case "echo", "error":
				gp.skipCallArgs()
			default:
				// Named plugin step: record it so duration heuristics and
				// detectors can still see e.g. docker invocations.
				steps = append(steps, dag.Step{Name: t.text})
				gp.skipCallArgs()
			}
		}
	}
	return steps
}

// parseCommandArg extracts the string argument of sh '...' or
// sh(script: '...') forms.
func (gp *groovyParser) parseCommandArg() string {
	t := gp.peek()
	if t == nil {
		return ""
	}
	if t.kind == tokString {
		gp.next()
		return t.text
	}
	if t.kind == tokLParen {
		gp.next()
		var first string
		for {
			t := gp.next()
			if t == nil || t.kind == tokRParen {
				break
			}
			if t.kind == tokString && first == "" {
				first = t.text
			}
		}
		return first
	}
	return ""
}

// skipCallArgs consumes an optional (...) argument list and an optional
// trailing { ... } closure.
func (gp *groovyParser) skipCallArgs() {
	if t := gp.peek(); t != nil && t.kind == tokLParen {
		gp.next()
		depth := 1
		for depth > 0 {
			t := gp.next()
			if t == nil {
				return
			}
			switch t.kind {
			case tokLParen:
				depth++
			case tokRParen:
				depth--
			}
		}
	}
	if t := gp.peek(); t != nil && t.kind == tokLBrace {
		gp.next()
		gp.skipBlock()
	}
	// Loose string arguments without parens, e.g. echo 'hi'.
	for {
		t := gp.peek()
		if t == nil || t.kind != tokString {
			return
		}
		gp.next()
	}
}

// parseAgent consumes agent any | agent none | agent { label '...' }.
func (gp *groovyParser) parseAgent() string {
	t := gp.peek()
	if t == nil {
		return ""
	}
	if t.kind == tokIdent {
		gp.next()
		return t.text
	}
	if t.kind == tokLBrace {
		gp.next()
		label := ""
		depth := 1
		for depth > 0 {
			t := gp.next()
			if t == nil {
				break
			}
			switch {
			case t.kind == tokLBrace:
				depth++
			case t.kind == tokRBrace:
				depth--
			case t.kind == tokString && label == "":
				label = t.text
			}
		}
		return label
	}
	return ""
}
