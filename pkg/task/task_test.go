package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []Message{
		NewGNMINotification("realnet", "r1", "interfaces", map[string]any{"a": 1.0}, nil),
		NewRunFuzzer("ci", 123.5, ""),
		NewFuzzerResult("sec", 100.0, 123.0, ""),
		NewTopologyBuildRequest("realnet", "ci"),
		NewOverview("ci", map[string]any{"r1": "up"}),
	}

	for _, original := range cases {
		data, err := Marshal(original)
		require.NoError(t, err)

		decoded, err := Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, original.Kind(), decoded.Kind())
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"bogus"}`))
	require.Error(t, err)
}

func TestUnmarshalInvalidJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`not json`))
	require.Error(t, err)
}

func TestSanitizeReplacesUnserializable(t *testing.T) {
	ch := make(chan int)
	in := map[string]any{
		"ok":  "fine",
		"bad": ch,
		"nested": map[string]any{
			"also_bad": func() {},
			"fine":     42.0,
		},
	}

	out := Sanitize(in).(map[string]any)
	assert.Equal(t, "fine", out["ok"])
	assert.Equal(t, notSerializable, out["bad"])

	nested := out["nested"].(map[string]any)
	assert.Equal(t, notSerializable, nested["also_bad"])
	assert.Equal(t, 42.0, nested["fine"])
}
