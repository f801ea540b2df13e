package loader_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbyt/workflow-engine/internal/domain/workflow"
	"github.com/orbyt/workflow-engine/internal/loader"
)

const doc = `
version: "1"
kind: Workflow
metadata:
  name: demo
  owner: team-a
workflow:
  steps:
    - id: a
      uses: core.noop
      timeout: 5s
    - id: b
      uses: core.noop
      needs: [a]
`

func TestParseProducesRawAndTypedDecodes(t *testing.T) {
	raw, parsed, err := loader.Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "1", raw["version"])
	assert.Equal(t, "demo", parsed.Metadata.Name)
	assert.Len(t, parsed.Workflow.Steps, 2)
}

func TestParseReturnsParseErrorOnMalformedYAML(t *testing.T) {
	_, _, err := loader.Parse([]byte("workflow: [unterminated"))
	require.Error(t, err)

	var classified *workflow.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, workflow.KindSchemaParseError, classified.Kind)
}

func TestLoadFileReturnsClassifiedErrorOnMissingPath(t *testing.T) {
	_, _, err := loader.LoadFile("/nonexistent/does-not-exist.yaml")
	require.Error(t, err)

	var classified *workflow.Error
	require.ErrorAs(t, err, &classified)
}

func TestToDefinitionConvertsStepTimeouts(t *testing.T) {
	_, parsed, err := loader.Parse([]byte(doc))
	require.NoError(t, err)

	def := loader.ToDefinition(parsed)
	require.Len(t, def.Steps, 2)
	assert.Equal(t, "a", def.Steps[0].ID)
	assert.Equal(t, 5*time.Second, def.Steps[0].Timeout)
	assert.Equal(t, []string{"a"}, def.Steps[1].Needs)
}
