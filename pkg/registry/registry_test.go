package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryIsValid(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{
		"wikimind-resolve-topic",
		"wikimind-answer-question",
		"wikimind-suggest-topics",
		"wikimind-synthesize-speech",
	} {
		activity, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, activity.InputSchema["required"], taskType)
	}

	_, ok := reg.Find("crm.user.create")
	assert.False(t, ok)
}

func TestTimeoutDuration(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	activity, _ := reg.Find("wikimind-answer-question")
	d, err := activity.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, d)
}

func TestValidateRejectsDuplicates(t *testing.T) {
	schema := map[string]interface{}{"type": "object"}
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "a", TaskType: "t", InputSchema: schema},
		{ID: "b", TaskType: "t", InputSchema: schema},
	}}
	assert.ErrorContains(t, reg.Validate(), "duplicate task type")

	reg.Activities[1].TaskType = "u"
	reg.Activities[1].Timeout = "soon"
	assert.ErrorContains(t, reg.Validate(), "invalid timeout")
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, defaultRegistry, 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 4)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}
