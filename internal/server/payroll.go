package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	payrolldomain "github.com/smallbiznis/crm/internal/payroll/domain"
)

type generatePayrollRequest struct {
	EmployeeID    string   `json:"employeeId"`
	EmployeeName  string   `json:"employeeName"`
	EmployeeEmail string   `json:"employeeEmail"`
	Month         string   `json:"month"`
	BaseSalary    float64  `json:"baseSalary"`
	WorkingDays   *int     `json:"workingDays"`
	PresentDays   *float64 `json:"presentDays"`
	Deductions    float64  `json:"deductions"`
}

type markAttendanceRequest struct {
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"`
	Status     string `json:"status"`
}

func (s *Server) ListPayrolls(c *gin.Context) {
	items, err := s.payrollSvc.List(c.Request.Context(), payrolldomain.PayrollFilter{
		EmployeeID: strings.TrimSpace(c.Query("employeeId")),
		Month:      strings.TrimSpace(c.Query("month")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, items)
}

func (s *Server) GetPayrollByID(c *gin.Context) {
	item, err := s.payrollSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

// GeneratePayroll computes and stores one employee's payroll for a month.
// Present days come from attendance when the request leaves them out.
func (s *Server) GeneratePayroll(c *gin.Context) {
	var req generatePayrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.payrollSvc.Generate(c.Request.Context(), payrolldomain.GeneratePayrollRequest{
		EmployeeID:    req.EmployeeID,
		EmployeeName:  req.EmployeeName,
		EmployeeEmail: req.EmployeeEmail,
		Month:         req.Month,
		BaseSalary:    req.BaseSalary,
		WorkingDays:   req.WorkingDays,
		PresentDays:   req.PresentDays,
		Deductions:    req.Deductions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, item)
}

func (s *Server) DeletePayroll(c *gin.Context) {
	if err := s.payrollSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondMessage(c, "Payroll deleted")
}

// ListAttendance filters by employee and either a month or a from/to range.
func (s *Server) ListAttendance(c *gin.Context) {
	filter := payrolldomain.AttendanceFilter{EmployeeID: c.Query("employeeId")}

	if month := strings.TrimSpace(c.Query("month")); month != "" {
		start, err := payrolldomain.ParseMonth(month)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		filter.From = start
		filter.To = start.AddDate(0, 1, 0)
	} else {
		from, err := parseOptionalTime(c.Query("from"), false)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		to, err := parseOptionalTime(c.Query("to"), true)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if from != nil {
			filter.From = *from
		}
		if to != nil {
			filter.To = *to
		}
	}

	items, err := s.payrollSvc.ListAttendance(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, items)
}

func (s *Server) MarkAttendance(c *gin.Context) {
	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	date, err := parseOptionalTime(req.Date, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if date == nil {
		AbortWithError(c, payrolldomain.ErrInvalidAttendance)
		return
	}

	item, err := s.payrollSvc.MarkAttendance(c.Request.Context(), payrolldomain.MarkAttendanceRequest{
		EmployeeID: req.EmployeeID,
		Date:       *date,
		Status:     payrolldomain.AttendanceStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, item)
}
