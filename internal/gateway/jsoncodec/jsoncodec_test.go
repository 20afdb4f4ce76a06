package jsoncodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsMapKeys(t *testing.T) {
	out, err := Marshal(map[string]int{"z": 1, "a": 2, "m": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(out))
}

func TestRoundTrip(t *testing.T) {
	type payload struct {
		Kind  string `json:"kind"`
		Count int    `json:"count"`
	}

	out, err := Marshal(payload{Kind: "OnHeartbeat", Count: 3})
	require.NoError(t, err)

	var got payload
	require.NoError(t, Unmarshal(out, &got))
	assert.Equal(t, "OnHeartbeat", got.Kind)
	assert.Equal(t, 3, got.Count)
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]string{"k": "v"}))

	var got map[string]string
	require.NoError(t, Decode(&buf, &got))
	assert.Equal(t, "v", got["k"])
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`{"a":1}`)))
	assert.True(t, Valid([]byte(`null`)))
	assert.False(t, Valid([]byte(`{"a":`)))
	assert.False(t, Valid([]byte(``)))
}

func TestMarshalIndent(t *testing.T) {
	out, err := MarshalIndent(map[string]int{"a": 1}, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n")
}
