package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/payroll/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayroll(ctx context.Context, db *gorm.DB, p *domain.Payroll) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repo) FindPayroll(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payroll, error) {
	var p domain.Payroll
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListPayrolls(ctx context.Context, db *gorm.DB, filter domain.PayrollFilter) ([]*domain.Payroll, error) {
	var out []*domain.Payroll
	stmt := db.WithContext(ctx).Model(&domain.Payroll{})
	if filter.EmployeeID != "" {
		stmt = stmt.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.Month != "" {
		stmt = stmt.Where("month = ?", filter.Month)
	}
	if err := stmt.Order("month desc, id desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) DeletePayroll(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Payroll{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpsertAttendance replaces the status of an already marked employee-day.
func (r *repo) UpsertAttendance(ctx context.Context, db *gorm.DB, a *domain.Attendance) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"status"}),
		}).
		Create(a).Error
}

func (r *repo) ListAttendance(ctx context.Context, db *gorm.DB, filter domain.AttendanceFilter) ([]*domain.Attendance, error) {
	var out []*domain.Attendance
	stmt := db.WithContext(ctx).Model(&domain.Attendance{})
	if filter.EmployeeID != "" {
		stmt = stmt.Where("employee_id = ?", filter.EmployeeID)
	}
	if !filter.From.IsZero() {
		stmt = stmt.Where("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		stmt = stmt.Where("date < ?", filter.To)
	}
	if err := stmt.Order("date asc, employee_id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
