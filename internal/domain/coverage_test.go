package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthsMarshalJSON(t *testing.T) {
	out, err := json.Marshal(Months(2.17))
	require.NoError(t, err)
	assert.Equal(t, "2.17", string(out))

	out, err = json.Marshal(Months(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, `"inf"`, string(out))

	_, err = json.Marshal(Months(math.NaN()))
	assert.Error(t, err)
}

func TestMonthsUnmarshalJSON(t *testing.T) {
	var m Months
	require.NoError(t, json.Unmarshal([]byte("6.5"), &m))
	assert.EqualValues(t, 6.5, m)

	require.NoError(t, json.Unmarshal([]byte(`"inf"`), &m))
	assert.True(t, m.Inf())

	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &m))
}

func TestMonthsRoundTripInsideAssessment(t *testing.T) {
	in := StockAssessment{ActiveRate: 0, MonthsOfCoverage: Months(math.Inf(1)), Status: StatusNoRotation}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out StockAssessment
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}
