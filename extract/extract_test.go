package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestJSON_StrictObject(t *testing.T) {
	var out payload
	ok := JSON(`{"name":"a","n":3}`, &out)
	require.True(t, ok, "expected strict parse to succeed")
	require.Equal(t, "a", out.Name)
	require.Equal(t, 3, out.N)
}

func TestJSON_FencedBlock(t *testing.T) {
	var out payload
	raw := "Here is the plan:\n```json\n{\"name\":\"b\",\"n\":7}\n```\nHope that helps."
	ok := JSON(raw, &out)
	require.True(t, ok, "expected fenced parse to succeed")
	require.Equal(t, "b", out.Name)
	require.Equal(t, 7, out.N)
}

func TestJSON_ProseWrappedObject(t *testing.T) {
	var out payload
	raw := `Sure, the result is {"name":"c","n":9} as requested.`
	ok := JSON(raw, &out)
	require.True(t, ok, "expected prose-wrapped parse to succeed")
	require.Equal(t, "c", out.Name)
	require.Equal(t, 9, out.N)
}

func TestJSON_Unparseable(t *testing.T) {
	var out payload
	ok := JSON("this is not json at all", &out)
	require.False(t, ok, "expected unparseable input to fail")
}

func TestJSON_Empty(t *testing.T) {
	var out payload
	require.False(t, JSON("", &out), "expected empty input to fail")
	require.False(t, JSON("   ", &out), "expected whitespace-only input to fail")
}

func TestFirstJSONObject_NestedBraces(t *testing.T) {
	raw := `prefix {"a": {"b": 1}, "c": "}weird}"} suffix`
	obj := firstJSONObject(raw)
	require.NotEmpty(t, obj, "expected a balanced object to be found")

	var out map[string]any
	ok := JSON(obj, &out)
	require.True(t, ok, "expected extracted object to parse, got %q", obj)
}
