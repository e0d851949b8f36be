package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	"github.com/smallbiznis/crm/pkg/money"
)

type createPaymentRequest struct {
	InvoiceID string       `json:"invoiceId"`
	Amount    money.Amount `json:"amount"`
	Method    string       `json:"method"`
	Reference string       `json:"reference"`
	Date      string       `json:"date"`
	Notes     string       `json:"notes"`
}

func (s *Server) ListPayments(c *gin.Context) {
	items, err := s.paymentSvc.List(c.Request.Context(), c.Query("invoiceId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, items)
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	item, err := s.paymentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

// CreatePayment records a ledger entry and reports the invoice status the
// reconciliation produced.
func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	date, err := parseOptionalTime(req.Date, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.Create(c.Request.Context(), paymentdomain.CreatePaymentRequest{
		InvoiceID: req.InvoiceID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Date:      date,
		Notes:     req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.paymentSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondMessage(c, "Payment deleted")
}

func (s *Server) DownloadPaymentReceipt(c *gin.Context) {
	id := c.Param("id")
	out, err := s.paymentSvc.RenderReceipt(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "receipt-"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", out)
}
