package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	perDay, net := Compute(30000, 22, 20, 500)
	assert.Equal(t, 1363.64, perDay)
	assert.Equal(t, 26772.8, net)

	_, net = Compute(1000, 20, 1, 5000)
	assert.Zero(t, net)

	perDay, net = Compute(1000, 0, 10, 0)
	assert.Zero(t, perDay)
	assert.Zero(t, net)
}

func TestWorkingDaysIn(t *testing.T) {
	feb, err := ParseMonth("2026-02")
	require.NoError(t, err)
	assert.Equal(t, 20, WorkingDaysIn(feb))
	assert.Equal(t, 23, WorkingDaysIn(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)))

	_, err = ParseMonth("02/2026")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestPresentDays(t *testing.T) {
	records := []*Attendance{
		{Status: AttendancePresent},
		{Status: AttendanceHalfDay},
		{Status: AttendanceLeave},
		nil,
		{Status: AttendanceAbsent},
	}
	assert.Equal(t, 1.5, PresentDays(records))
}
