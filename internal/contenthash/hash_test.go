package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeterministic(t *testing.T) {
	item := map[string]any{"title": "Intro", "description": "<p>Hello</p>"}

	a, err := Sum(item, []string{"title", "description"})
	require.NoError(t, err)
	b, err := Sum(item, []string{"description", "title"})
	require.NoError(t, err)

	assert.Equal(t, a, b, "field order must not change the digest")
	assert.Len(t, a, 64)
}

func TestSumStripsNulls(t *testing.T) {
	withNil := map[string]any{"title": "Intro", "description": nil}
	without := map[string]any{"title": "Intro"}

	a, err := Sum(withNil, []string{"title", "description"})
	require.NoError(t, err)
	b, err := Sum(without, []string{"title", "description"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSumNestedNormalization(t *testing.T) {
	a, err := Sum(map[string]any{
		"meta": map[string]any{"x": "1", "y": nil},
	}, []string{"meta"})
	require.NoError(t, err)

	b, err := Sum(map[string]any{
		"meta": map[string]any{"x": "1"},
	}, []string{"meta"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSumDistinguishesContent(t *testing.T) {
	a, err := Sum(map[string]any{"title": "Intro"}, []string{"title"})
	require.NoError(t, err)
	b, err := Sum(map[string]any{"title": "Outro"}, []string{"title"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
