package providers

import (
	"strings"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/stringutil"
)

// Step signature classes and their default duration estimates. Values
// stay inside the 30-180 second band; real timings come from history
// ingestion when available.
const (
	durationInstall     = 90
	durationBuild       = 120
	durationTest        = 180
	durationLint        = 45
	durationDeploy      = 120
	durationDockerBuild = 180
	durationCheckout    = 30
	durationDefault     = 30
)

// installSignatures identify dependency installation commands, paired
// with the cache tool that would serve them.
var installSignatures = []struct {
	pattern string
	tool    dag.CacheTool
}{
	{"npm ci", dag.CacheNPM},
	{"npm install", dag.CacheNPM},
	{"yarn install", dag.CacheYarn},
	{"yarn", dag.CacheYarn},
	{"pnpm install", dag.CacheNPM},
	{"pip install", dag.CachePip},
	{"pip3 install", dag.CachePip},
	{"cargo build", dag.CacheCargo},
	{"cargo test", dag.CacheCargo},
	{"gradle", dag.CacheGradle},
	{"./gradlew", dag.CacheGradle},
	{"mvn ", dag.CacheMaven},
	{"go mod download", dag.CacheGeneric},
	{"apt-get install", dag.CacheGeneric},
	{"bundle install", dag.CacheGeneric},
	{"composer install", dag.CacheGeneric},
}

var testSignatures = []string{
	"npm test", "npm run test", "yarn test", "pnpm test",
	"go test", "pytest", "py.test", "cargo test", "jest",
	"vitest", "mocha", "rspec", "mvn test", "gradle test",
	"./gradlew test", "phpunit", "ctest", "dotnet test", "tox",
}

var buildSignatures = []string{
	"npm run build", "yarn build", "go build", "cargo build",
	"make", "mvn package", "mvn install", "gradle build",
	"./gradlew build", "webpack", "tsc", "dotnet build", "bazel build",
}

var lintSignatures = []string{
	"lint", "eslint", "golangci-lint", "flake8", "ruff", "rubocop",
	"clippy", "gofmt", "prettier --check", "black --check", "vet",
}

var deploySignatures = []string{
	"deploy", "kubectl apply", "terraform apply", "helm upgrade",
	"aws s3 sync", "gcloud app deploy", "firebase deploy", "cdk deploy",
}

// StepClass is the inferred signature class of a step command.
type StepClass string

const (
	ClassInstall     StepClass = "install"
	ClassBuild       StepClass = "build"
	ClassTest        StepClass = "test"
	ClassLint        StepClass = "lint"
	ClassDeploy      StepClass = "deploy"
	ClassDockerBuild StepClass = "docker-build"
	ClassCheckout    StepClass = "checkout"
	ClassOther       StepClass = "other"
)

// ClassifyStep infers the signature class for a step. The uses reference
// wins over the command for marketplace actions with known roles.
func ClassifyStep(step dag.Step) StepClass {
	uses := strings.ToLower(step.Uses)
	switch {
	case strings.HasPrefix(uses, "actions/checkout"):
		return ClassCheckout
	case strings.HasPrefix(uses, "docker/build-push-action"):
		return ClassDockerBuild
	case strings.HasPrefix(uses, "actions/setup-"):
		return ClassInstall
	}

	cmd := strings.ToLower(stringutil.NormalizeCommand(step.Run))
	if cmd == "" {
		return ClassOther
	}
	switch {
	case strings.Contains(cmd, "docker build") || strings.Contains(cmd, "docker buildx build"):
		return ClassDockerBuild
	case matchAny(cmd, testSignatures):
		return ClassTest
	case installTool(cmd) != "":
		return ClassInstall
	case matchAny(cmd, lintSignatures):
		return ClassLint
	case matchAny(cmd, buildSignatures):
		return ClassBuild
	case matchAny(cmd, deploySignatures):
		return ClassDeploy
	}
	return ClassOther
}

// InstallTool returns the cache tool serving a step's install command,
// or "" when the step is not an installer.
func InstallTool(step dag.Step) dag.CacheTool {
	if strings.HasPrefix(strings.ToLower(step.Uses), "actions/setup-node") {
		return dag.CacheNPM
	}
	return installTool(strings.ToLower(stringutil.NormalizeCommand(step.Run)))
}

func installTool(cmd string) dag.CacheTool {
	for _, sig := range installSignatures {
		if strings.Contains(cmd, sig.pattern) {
			return sig.tool
		}
	}
	return ""
}

func matchAny(cmd string, signatures []string) bool {
	for _, sig := range signatures {
		if strings.Contains(cmd, sig) {
			return true
		}
	}
	return false
}

// estimateStep assigns the heuristic duration for a step when the source
// does not annotate one.
func estimateStep(step dag.Step) float64 {
	switch ClassifyStep(step) {
	case ClassInstall:
		return durationInstall
	case ClassBuild:
		return durationBuild
	case ClassTest:
		return durationTest
	case ClassLint:
		return durationLint
	case ClassDeploy:
		return durationDeploy
	case ClassDockerBuild:
		return durationDockerBuild
	case ClassCheckout:
		return durationCheckout
	}
	return durationDefault
}

// annotateDurations fills in estimates for every step lacking one and
// records the job-level timeout ceiling without using it as the estimate.
func annotateDurations(job *dag.Job) {
	for i := range job.Steps {
		if job.Steps[i].EstimatedSeconds == 0 {
			job.Steps[i].EstimatedSeconds = estimateStep(job.Steps[i])
		}
	}
	if job.EstimatedSeconds == 0 {
		job.EstimatedSeconds = job.StepDurationSum()
	}
}

// classifyPin derives the pinning kind from an action reference's ref part.
func classifyPin(uses string) dag.PinKind {
	at := strings.LastIndexByte(uses, '@')
	if at < 0 || at == len(uses)-1 {
		return dag.PinNone
	}
	ref := uses[at+1:]
	switch {
	case stringutil.IsHexSHA(ref):
		return dag.PinSHA
	case strings.HasPrefix(ref, "v") || strings.ContainsAny(ref, "0123456789") && !strings.Contains(ref, "/"):
		return dag.PinTag
	}
	return dag.PinBranch
}
