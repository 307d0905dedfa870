package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDateUnmarshalJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-10"`), &d))
	require.Equal(t, "2024-01-10", d.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	require.True(t, d.IsZero())

	for _, raw := range []string{`""`, `"   "`, `"null"`, `"10/01/2024"`, `20240110`} {
		require.Errorf(t, json.Unmarshal([]byte(raw), &d), "input %s", raw)
	}
}

func TestDateDaysInclusive(t *testing.T) {
	from := NewDate(2024, 1, 1)
	require.Equal(t, 10, from.DaysInclusive(NewDate(2024, 1, 10)))
	require.Equal(t, 1, from.DaysInclusive(from))
}
