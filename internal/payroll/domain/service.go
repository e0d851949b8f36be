package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayroll(ctx context.Context, db *gorm.DB, p *Payroll) error
	FindPayroll(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payroll, error)
	ListPayrolls(ctx context.Context, db *gorm.DB, filter PayrollFilter) ([]*Payroll, error)
	DeletePayroll(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	UpsertAttendance(ctx context.Context, db *gorm.DB, a *Attendance) error
	ListAttendance(ctx context.Context, db *gorm.DB, filter AttendanceFilter) ([]*Attendance, error)
}

type PayrollFilter struct {
	EmployeeID string
	Month      string
}

// AttendanceFilter selects records in [From, To).
type AttendanceFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time
}

// GeneratePayrollRequest leaves WorkingDays and PresentDays optional: they
// default to the weekdays of the month and the recorded attendance.
type GeneratePayrollRequest struct {
	EmployeeID    string
	EmployeeName  string
	EmployeeEmail string
	Month         string
	BaseSalary    float64
	WorkingDays   *int
	PresentDays   *float64
	Deductions    float64
}

type MarkAttendanceRequest struct {
	EmployeeID string
	Date       time.Time
	Status     AttendanceStatus
}

type Service interface {
	Generate(ctx context.Context, req GeneratePayrollRequest) (Payroll, error)
	List(ctx context.Context, filter PayrollFilter) ([]Payroll, error)
	GetByID(ctx context.Context, id string) (Payroll, error)
	Delete(ctx context.Context, id string) error

	MarkAttendance(ctx context.Context, req MarkAttendanceRequest) (Attendance, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error)
}
