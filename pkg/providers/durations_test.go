package providers

import (
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStep(t *testing.T) {
	tests := []struct {
		name string
		step dag.Step
		want StepClass
	}{
		{"npm ci", dag.Step{Run: "npm ci"}, ClassInstall},
		{"pip", dag.Step{Run: "pip install -r requirements.txt"}, ClassInstall},
		{"go test", dag.Step{Run: "go test ./..."}, ClassTest},
		{"pytest", dag.Step{Run: "pytest -x tests/"}, ClassTest},
		{"docker build", dag.Step{Run: "docker build -t app ."}, ClassDockerBuild},
		{"buildx", dag.Step{Run: "docker buildx build --push ."}, ClassDockerBuild},
		{"eslint", dag.Step{Run: "npx eslint src/"}, ClassLint},
		{"make build", dag.Step{Run: "make"}, ClassBuild},
		{"deploy", dag.Step{Run: "kubectl apply -f k8s/"}, ClassDeploy},
		{"checkout action", dag.Step{Uses: "actions/checkout@v4"}, ClassCheckout},
		{"setup-node action", dag.Step{Uses: "actions/setup-node@v4"}, ClassInstall},
		{"unknown", dag.Step{Run: "echo hello"}, ClassOther},
		{"multiline continuation", dag.Step{Run: "npm \\\n  ci"}, ClassInstall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStep(tt.step))
		})
	}
}

func TestEstimatesStayInBand(t *testing.T) {
	steps := []dag.Step{
		{Run: "npm ci"},
		{Run: "go test ./..."},
		{Run: "docker build ."},
		{Run: "echo hi"},
		{Uses: "actions/checkout@v4"},
	}
	for _, s := range steps {
		est := estimateStep(s)
		assert.GreaterOrEqual(t, est, 30.0)
		assert.LessOrEqual(t, est, 180.0)
	}
}

func TestInstallTool(t *testing.T) {
	assert.Equal(t, dag.CacheNPM, InstallTool(dag.Step{Run: "npm ci"}))
	assert.Equal(t, dag.CacheCargo, InstallTool(dag.Step{Run: "cargo build --release"}))
	assert.Equal(t, dag.CacheTool(""), InstallTool(dag.Step{Run: "echo nothing"}))
}

func TestClassifyPin(t *testing.T) {
	tests := []struct {
		uses string
		want dag.PinKind
	}{
		{"actions/checkout@11bd71901bbe5b1630ceea73d27597364c9af683", dag.PinSHA},
		{"actions/checkout@v4", dag.PinTag},
		{"actions/checkout@main", dag.PinBranch},
		{"actions/checkout", dag.PinNone},
		{"", dag.PinNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyPin(tt.uses), tt.uses)
	}
}
