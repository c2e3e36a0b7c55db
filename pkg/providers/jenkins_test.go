package providers

import (
	"context"
	"testing"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const declarativeJenkinsfile = `
pipeline {
    agent { label 'linux-large' }
    options { timestamps() }
    stages {
        stage("Checkout") {
            steps {
                checkout scm
            }
        }
        stage("Build") {
            steps {
                sh 'make build'
            }
        }
        stage("Verify") {
            parallel {
                stage("Unit") {
                    steps {
                        sh 'make test'
                    }
                }
                stage("Lint") {
                    steps {
                        sh 'make lint'
                    }
                }
            }
        }
        stage("Deploy") {
            when { branch 'main' }
            steps {
                sh '''
                  make package
                  make deploy
                '''
            }
        }
    }
}
`

func parseJenkinsFixture(t *testing.T, content string) *dag.Pipeline {
	t.Helper()
	p, err := Parse(context.Background(), dag.ProviderJenkins, "Jenkinsfile", []byte(content))
	require.NoError(t, err)
	return p
}

func TestParseJenkinsDeclarativeStages(t *testing.T) {
	p := parseJenkinsFixture(t, declarativeJenkinsfile)

	assert.Equal(t, dag.ProviderJenkins, p.Provider)
	assert.Equal(t, 5, p.JobCount())

	assert.True(t, p.HasEdge("checkout", "build"))
	assert.True(t, p.HasEdge("build", "unit"))
	assert.True(t, p.HasEdge("build", "lint"))
	assert.True(t, p.HasEdge("unit", "deploy"))
	assert.True(t, p.HasEdge("lint", "deploy"))
	assert.False(t, p.HasEdge("unit", "lint"))
}

func TestParseJenkinsAgentLabelPropagates(t *testing.T) {
	p := parseJenkinsFixture(t, declarativeJenkinsfile)
	job, ok := p.Job("build")
	require.True(t, ok)
	assert.Equal(t, "linux-large", job.RunsOn)
}

func TestParseJenkinsTripleQuotedScript(t *testing.T) {
	p := parseJenkinsFixture(t, declarativeJenkinsfile)
	job, ok := p.Job("deploy")
	require.True(t, ok)
	require.Len(t, job.Steps, 1)
	assert.Contains(t, job.Steps[0].Run, "make package")
	assert.Contains(t, job.Steps[0].Run, "make deploy")
}

func TestParseJenkinsParallelWidth(t *testing.T) {
	p := parseJenkinsFixture(t, declarativeJenkinsfile)
	assert.Equal(t, 2, p.MaxParallelism())
}

func TestParseJenkinsScriptedPipelineRejected(t *testing.T) {
	_, err := Parse(context.Background(), dag.ProviderJenkins, "Jenkinsfile", []byte(`
node {
    stage('Build') {
        sh 'make'
    }
}
`))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, ErrSchemaMismatch, parseErr.Kind)
}

func TestParseJenkinsShWithNamedArg(t *testing.T) {
	p := parseJenkinsFixture(t, `
pipeline {
    agent any
    stages {
        stage("Test") {
            steps {
                sh(script: 'npm test', returnStdout: true)
            }
        }
    }
}
`)
	job, ok := p.Job("test")
	require.True(t, ok)
	require.Len(t, job.Steps, 1)
	assert.Equal(t, "npm test", job.Steps[0].Run)
}
