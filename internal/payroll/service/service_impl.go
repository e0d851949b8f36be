package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/dispatch"
	"github.com/smallbiznis/crm/internal/payroll/domain"
	"github.com/smallbiznis/crm/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository

	Notifier dispatch.Notifier  `optional:"true"`
	Observer *dispatch.Observer `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	notifier dispatch.Notifier
	observer *dispatch.Observer
}

func NewService(p Params) domain.Service {
	notifier := p.Notifier
	if notifier == nil {
		notifier = dispatch.NopNotifier{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payroll.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		notifier: notifier,
		observer: p.Observer,
	}
}

// Generate computes and stores the payslip of one employee for one month.
// Working days default to the weekdays of the month and present days to the
// attendance recorded for it.
func (s *Service) Generate(ctx context.Context, req domain.GeneratePayrollRequest) (domain.Payroll, error) {
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		return domain.Payroll{}, domain.ErrInvalidEmployee
	}
	month, err := domain.ParseMonth(strings.TrimSpace(req.Month))
	if err != nil {
		return domain.Payroll{}, err
	}
	if req.BaseSalary <= 0 || req.Deductions < 0 {
		return domain.Payroll{}, domain.ErrInvalidSalary
	}

	workingDays := domain.WorkingDaysIn(month)
	if req.WorkingDays != nil {
		workingDays = *req.WorkingDays
	}
	if workingDays <= 0 || workingDays > 31 {
		return domain.Payroll{}, domain.ErrInvalidWorkingDays
	}

	var present float64
	if req.PresentDays != nil {
		present = *req.PresentDays
	} else {
		records, err := s.repo.ListAttendance(ctx, s.db, domain.AttendanceFilter{
			EmployeeID: employeeID,
			From:       month,
			To:         month.AddDate(0, 1, 0),
		})
		if err != nil {
			return domain.Payroll{}, err
		}
		present = domain.PresentDays(records)
	}
	if present < 0 || present > float64(workingDays) {
		return domain.Payroll{}, domain.ErrInvalidAttendance
	}

	monthKey := month.Format(domain.MonthLayout)
	existing, err := s.repo.ListPayrolls(ctx, s.db, domain.PayrollFilter{EmployeeID: employeeID, Month: monthKey})
	if err != nil {
		return domain.Payroll{}, err
	}
	if len(existing) > 0 {
		return domain.Payroll{}, domain.ErrConflict
	}

	perDay, net := domain.Compute(req.BaseSalary, workingDays, present, req.Deductions)
	payroll := domain.Payroll{
		ID:            s.genID.Generate(),
		EmployeeID:    employeeID,
		EmployeeName:  strings.TrimSpace(req.EmployeeName),
		EmployeeEmail: strings.TrimSpace(req.EmployeeEmail),
		Month:         monthKey,
		BaseSalary:    req.BaseSalary,
		WorkingDays:   workingDays,
		PresentDays:   present,
		PerDayRate:    perDay,
		Deductions:    req.Deductions,
		NetSalary:     net,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.InsertPayroll(ctx, s.db, &payroll); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Payroll{}, domain.ErrConflict
		}
		return domain.Payroll{}, err
	}

	if s.observer != nil {
		if ev := s.observer.PayrollGenerated(&payroll); ev != nil {
			s.notifier.Notify(ctx, *ev)
		}
	}
	return payroll, nil
}

func (s *Service) List(ctx context.Context, filter domain.PayrollFilter) ([]domain.Payroll, error) {
	filter.EmployeeID = strings.TrimSpace(filter.EmployeeID)
	filter.Month = strings.TrimSpace(filter.Month)
	if filter.Month != "" {
		if _, err := domain.ParseMonth(filter.Month); err != nil {
			return nil, err
		}
	}
	items, err := s.repo.ListPayrolls(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payroll, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payroll, error) {
	payrollID, err := parseID(id)
	if err != nil {
		return domain.Payroll{}, err
	}
	p, err := s.repo.FindPayroll(ctx, s.db, payrollID)
	if err != nil {
		return domain.Payroll{}, err
	}
	if p == nil {
		return domain.Payroll{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	payrollID, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeletePayroll(ctx, s.db, payrollID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) MarkAttendance(ctx context.Context, req domain.MarkAttendanceRequest) (domain.Attendance, error) {
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		return domain.Attendance{}, domain.ErrInvalidEmployee
	}
	if req.Date.IsZero() || !req.Status.Valid() {
		return domain.Attendance{}, domain.ErrInvalidAttendance
	}

	day := req.Date.UTC()
	record := domain.Attendance{
		ID:         s.genID.Generate(),
		EmployeeID: employeeID,
		Date:       time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		Status:     req.Status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.UpsertAttendance(ctx, s.db, &record); err != nil {
		return domain.Attendance{}, err
	}
	return record, nil
}

func (s *Service) ListAttendance(ctx context.Context, filter domain.AttendanceFilter) ([]domain.Attendance, error) {
	filter.EmployeeID = strings.TrimSpace(filter.EmployeeID)
	items, err := s.repo.ListAttendance(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attendance, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}
