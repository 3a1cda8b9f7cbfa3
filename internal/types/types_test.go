package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2000, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, `"2000-01-02"`, string(b))

	b, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"1999-12-31"`), &d))
	assert.Equal(t, NewDate(1999, time.December, 31), d)

	assert.Error(t, json.Unmarshal([]byte(`"31/12/1999"`), &d))
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	d := DateOf(time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, NewDate(2026, time.March, 1), d)
	assert.Equal(t, "2026-03-01", d.String())
}

func TestStudentJSONKeys(t *testing.T) {
	b, err := json.Marshal(Student{ID: "1", BirthDate: NewDate(2000, time.January, 1)})
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(b, &keys))
	for _, k := range []string{"id", "name", "email", "birthDate", "program", "createdAt", "updatedAt"} {
		assert.Contains(t, keys, k)
	}
}
