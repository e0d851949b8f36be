package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/payroll/domain"
	"github.com/smallbiznis/crm/internal/payroll/repository"
	"github.com/smallbiznis/crm/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (c *captured) Notify(_ context.Context, ev dispatch.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newService(t *testing.T) (domain.Service, *captured) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Payroll{}, &domain.Attendance{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	events := &captured{}
	return NewService(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Notifier: events,
		Observer: dispatch.NewObserver("", zap.NewNop()),
	}), events
}

func day(d int) time.Time {
	return time.Date(2026, time.February, d, 9, 30, 0, 0, time.UTC)
}

func TestGenerateFromAttendance(t *testing.T) {
	svc, events := newService(t)
	ctx := context.Background()

	for d, status := range map[int]domain.AttendanceStatus{
		2: domain.AttendancePresent,
		3: domain.AttendancePresent,
		4: domain.AttendanceAbsent,
		5: domain.AttendanceHalfDay,
	} {
		_, err := svc.MarkAttendance(ctx, domain.MarkAttendanceRequest{EmployeeID: "emp-1", Date: day(d), Status: status})
		require.NoError(t, err)
	}
	// re-marking a day replaces it
	_, err := svc.MarkAttendance(ctx, domain.MarkAttendanceRequest{EmployeeID: "emp-1", Date: day(4), Status: domain.AttendancePresent})
	require.NoError(t, err)
	// outside the month
	_, err = svc.MarkAttendance(ctx, domain.MarkAttendanceRequest{EmployeeID: "emp-1", Date: day(0), Status: domain.AttendancePresent})
	require.NoError(t, err)

	p, err := svc.Generate(ctx, domain.GeneratePayrollRequest{
		EmployeeID:    "emp-1",
		EmployeeEmail: "emp1@example.com",
		Month:         "2026-02",
		BaseSalary:    20000,
		Deductions:    500,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, p.WorkingDays)
	assert.Equal(t, 3.5, p.PresentDays)
	assert.Equal(t, 1000.0, p.PerDayRate)
	assert.Equal(t, 3000.0, p.NetSalary)

	require.Len(t, events.events, 1)
	assert.Equal(t, dispatch.KindPayrollGenerated, events.events[0].Kind)
	assert.Equal(t, "emp1@example.com", events.events[0].To)

	_, err = svc.Generate(ctx, domain.GeneratePayrollRequest{EmployeeID: "emp-1", Month: "2026-02", BaseSalary: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGenerateWithExplicitDays(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	working := 25
	present := 25.0
	p, err := svc.Generate(ctx, domain.GeneratePayrollRequest{
		EmployeeID:  "emp-2",
		Month:       "2026-03",
		BaseSalary:  5000,
		WorkingDays: &working,
		PresentDays: &present,
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, p.PerDayRate)
	assert.Equal(t, 5000.0, p.NetSalary)

	tooMany := 26.0
	_, err = svc.Generate(ctx, domain.GeneratePayrollRequest{
		EmployeeID:  "emp-3",
		Month:       "2026-03",
		BaseSalary:  5000,
		WorkingDays: &working,
		PresentDays: &tooMany,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAttendance)
}

func TestGenerateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, domain.GeneratePayrollRequest{Month: "2026-02", BaseSalary: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidEmployee)
	_, err = svc.Generate(ctx, domain.GeneratePayrollRequest{EmployeeID: "e", Month: "Feb", BaseSalary: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
	_, err = svc.Generate(ctx, domain.GeneratePayrollRequest{EmployeeID: "e", Month: "2026-02"})
	assert.ErrorIs(t, err, domain.ErrInvalidSalary)

	_, err = svc.MarkAttendance(ctx, domain.MarkAttendanceRequest{EmployeeID: "e", Date: day(2), Status: "Remote"})
	assert.ErrorIs(t, err, domain.ErrInvalidAttendance)
}
