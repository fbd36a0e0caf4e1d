package database

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixture(t *testing.T) {
	f, err := os.Open("../../config/seed.yaml")
	require.NoError(t, err)
	defer f.Close()

	fx, err := ParseFixture(f)
	require.NoError(t, err)

	assert.Len(t, fx.Users, 5)
	assert.Equal(t, []string{"admin"}, fx.Users[0].Roles)
	assert.Equal(t, "Str0ng!Pwd#42", fx.Users[0].Password)
	assert.Equal(t, time.Date(2024, 9, 2, 18, 0, 0, 0, time.UTC), fx.Classes[0].StartTime.UTC())
	assert.Equal(t, 20, fx.Classes[0].MaxStudents)
	assert.Equal(t, 0.3, fx.Categories[0].Weight)
	assert.Equal(t, map[int]float64{40: 6, 41: 9}, fx.Registrations[0].Scores)
	assert.Equal(t, 400000.0, fx.Registrations[1].Paid)
	assert.Equal(t, "Unit 1", fx.Sessions[0].Content)
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown key", data: "students: []\n"},
		{name: "bad type", data: "levels:\n  - {id: x}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFixtureClass_Capacity(t *testing.T) {
	assert.Equal(t, DefaultClassCapacity, FixtureClass{}.Capacity())
	assert.Equal(t, 2, FixtureClass{MaxStudents: 2}.Capacity())
}
