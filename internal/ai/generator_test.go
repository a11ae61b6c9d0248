package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponsePassesBareJSON(t *testing.T) {
	obj, err := CleanJSONResponse(`{"results": []}`)
	require.NoError(t, err)
	assert.Equal(t, `{"results": []}`, obj)

	arr, err := CleanJSONResponse(`[{"index": 0}]`)
	require.NoError(t, err)
	assert.Equal(t, `[{"index": 0}]`, arr)
}

func TestCleanJSONResponseStripsFences(t *testing.T) {
	cleaned, err := CleanJSONResponse("```json\n[{\"index\": 0}]\n```")
	require.NoError(t, err)
	assert.Equal(t, `[{"index": 0}]`, cleaned)

	cleaned, err = CleanJSONResponse("```\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, cleaned)
}

func TestCleanJSONResponseTrimsWhitespace(t *testing.T) {
	cleaned, err := CleanJSONResponse("  \n\t[1, 2]\n  ")
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", cleaned)
}

func TestCleanJSONResponseRejectsProse(t *testing.T) {
	_, err := CleanJSONResponse("Sure! Here is the JSON you asked for.")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = CleanJSONResponse("")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = CleanJSONResponse("```json\nstill not json\n```")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
