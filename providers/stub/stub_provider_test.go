package stub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/meysamhadeli/codelve/providers/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	p := NewStubProvider(&StubConfig{})
	assert.False(t, p.IsInitialized())
	require.NoError(t, p.Initialize(context.Background()))
	assert.True(t, p.IsInitialized())
	assert.Equal(t, "stub/simulated", p.ModelInfo())

	require.NoError(t, p.Unload(context.Background()))
	assert.False(t, p.IsInitialized())
}

func TestInitialize_ConfiguredFailure(t *testing.T) {
	boom := errors.New("model file not found")
	p := NewStubProvider(&StubConfig{InitializeError: boom})

	assert.ErrorIs(t, p.Initialize(context.Background()), boom)
	assert.False(t, p.IsInitialized())

	_, err := p.RunInference(context.Background(), "hi", models.DefaultInferenceParams())
	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func TestRunInference_EchoesPrompt(t *testing.T) {
	p := NewStubProvider(&StubConfig{})
	require.NoError(t, p.Initialize(context.Background()))

	prompt := strings.Repeat("a", 60)
	answer, err := p.RunInference(context.Background(), prompt, models.DefaultInferenceParams())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer, "This is a simulated response from the LLM interface.\n"))
	assert.Contains(t, answer, "The prompt was: "+strings.Repeat("a", 50)+"...\n")
	assert.NotContains(t, answer, strings.Repeat("a", 51))
}

func TestRunInferenceStreaming(t *testing.T) {
	p := NewStubProvider(&StubConfig{})
	require.NoError(t, p.Initialize(context.Background()))

	var sb strings.Builder
	var pieces, done int
	for resp := range p.RunInferenceStreaming(context.Background(), "short prompt", models.DefaultInferenceParams()) {
		require.NoError(t, resp.Err)
		assert.Zero(t, done, "nothing follows the final response")
		if resp.Done {
			done++
			continue
		}
		pieces++
		sb.WriteString(resp.Content)
	}

	assert.Equal(t, 1, done)
	assert.Greater(t, pieces, 1)
	assert.Equal(t, SimulatedResponse("short prompt"), sb.String())
}

func TestRunInferenceStreaming_NotInitialized(t *testing.T) {
	p := NewStubProvider(&StubConfig{})

	var got []models.StreamResponse
	for resp := range p.RunInferenceStreaming(context.Background(), "hi", models.DefaultInferenceParams()) {
		got = append(got, resp)
	}
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, models.ErrNotInitialized)
}

func TestSplitTokens(t *testing.T) {
	assert.Equal(t, []string{"a ", "b\n", "c"}, splitTokens("a b\nc"))
	assert.Empty(t, splitTokens(""))
}
