package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
	AttendanceHalfDay AttendanceStatus = "Half Day"
	AttendanceLeave   AttendanceStatus = "Leave"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceHalfDay, AttendanceLeave:
		return true
	}
	return false
}

// Credit is how much of a working day the status counts for.
func (s AttendanceStatus) Credit() float64 {
	switch s {
	case AttendancePresent:
		return 1
	case AttendanceHalfDay:
		return 0.5
	default:
		return 0
	}
}

// Attendance is one employee-day. Marking the same day again replaces it.
type Attendance struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	EmployeeID string           `gorm:"type:text;not null;uniqueIndex:ux_attendance_employee_date" json:"employeeId"`
	Date       time.Time        `gorm:"type:date;not null;uniqueIndex:ux_attendance_employee_date" json:"date"`
	Status     AttendanceStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt  time.Time        `gorm:"not null" json:"createdAt"`
}

func (Attendance) TableName() string { return "attendances" }

// PresentDays sums the day credits of the given records.
func PresentDays(records []*Attendance) float64 {
	var days float64
	for _, r := range records {
		if r != nil {
			days += r.Status.Credit()
		}
	}
	return days
}
