// Package domain holds the payroll and attendance records of the HR service.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

const MonthLayout = "2006-01"

// Payroll is one generated salary slip. (EmployeeID, Month) is unique.
type Payroll struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	EmployeeID    string       `gorm:"type:text;not null;uniqueIndex:ux_payroll_employee_month" json:"employeeId"`
	EmployeeName  string       `gorm:"type:text" json:"employeeName,omitempty"`
	EmployeeEmail string       `gorm:"type:text" json:"employeeEmail,omitempty"`
	Month         string       `gorm:"type:text;not null;uniqueIndex:ux_payroll_employee_month" json:"month"`
	BaseSalary    float64      `gorm:"not null" json:"baseSalary"`
	WorkingDays   int          `gorm:"not null" json:"workingDays"`
	PresentDays   float64      `gorm:"not null" json:"presentDays"`
	PerDayRate    float64      `gorm:"not null" json:"perDayRate"`
	Deductions    float64      `gorm:"not null;default:0" json:"deductions"`
	NetSalary     float64      `gorm:"not null" json:"netSalary"`
	CreatedAt     time.Time    `gorm:"not null" json:"createdAt"`
}

func (Payroll) TableName() string { return "payrolls" }

// Compute derives the per-day rate and net salary. Net never goes below zero.
func Compute(base float64, workingDays int, present, deductions float64) (perDay, net float64) {
	if workingDays <= 0 {
		return 0, 0
	}
	perDay = round2(base / float64(workingDays))
	net = round2(perDay*present - deductions)
	if net < 0 {
		net = 0
	}
	return perDay, net
}

// WorkingDaysIn counts Monday to Friday in the month.
func WorkingDaysIn(month time.Time) int {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	days := 0
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

func ParseMonth(raw string) (time.Time, error) {
	month, err := time.Parse(MonthLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, raw)
	}
	return month, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidEmployee    = errors.New("invalid_employee")
	ErrInvalidMonth       = errors.New("invalid_month")
	ErrInvalidSalary      = errors.New("invalid_salary")
	ErrInvalidWorkingDays = errors.New("invalid_working_days")
	ErrInvalidAttendance  = errors.New("invalid_attendance")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
)
