package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/retrieval"
)

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var in searchByFiltersInput
	err := decode(`{"bogus": 1}`, &in)
	require.Error(t, err)
	assert.Equal(t, retrieval.KindValidation, retrieval.Classify(err))
}

func TestDecodeEmptyInputYieldsDefaults(t *testing.T) {
	var in searchByFiltersInput
	require.NoError(t, decode("", &in))
	assert.Zero(t, in.Limit)
	assert.Empty(t, in.Category)
}

func TestDecodeMalformedJSON(t *testing.T) {
	var in searchSemanticInput
	err := decode(`{"query": `, &in)
	require.Error(t, err)
	assert.Equal(t, retrieval.KindValidation, retrieval.Classify(err))
}

func TestClampK(t *testing.T) {
	assert.Equal(t, defaultK, clampK(0))
	assert.Equal(t, defaultK, clampK(-3))
	assert.Equal(t, 1, clampK(1))
	assert.Equal(t, 37, clampK(37))
	assert.Equal(t, maxK, clampK(maxK))
	assert.Equal(t, maxK, clampK(maxK+1))
	assert.Equal(t, maxK, clampK(100000))
}

func TestParseDateGranularities(t *testing.T) {
	start, err := parseDate("2024", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)

	// End dates extend to the end of the named period.
	end, err := parseDate("2024", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), end)

	end, err = parseDate("2024-02", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), end)

	end, err = parseDate("2024-06-15", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 23, 59, 59, 0, time.UTC), end)

	day, err := parseDate("2024-06-15", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), day)
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, s := range []string{"yesterday", "15-06-2024", "2024/06/15", ""} {
		_, err := parseDate(s, false)
		require.Error(t, err, s)
		assert.Equal(t, retrieval.KindValidation, retrieval.Classify(err))
	}
}
