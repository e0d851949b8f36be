package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
)

type createInvoiceRequest struct {
	ContactID     string                   `json:"contactId"`
	CustomerName  string                   `json:"customerName"`
	CustomerEmail string                   `json:"customerEmail"`
	Items         []invoicedomain.LineItem `json:"items"`
	Status        string                   `json:"status"`
	DueDate       string                   `json:"dueDate"`
	Notes         string                   `json:"notes"`
}

type updateInvoiceRequest struct {
	ContactID     *string                  `json:"contactId"`
	CustomerName  *string                  `json:"customerName"`
	CustomerEmail *string                  `json:"customerEmail"`
	Items         []invoicedomain.LineItem `json:"items"`
	Status        *string                  `json:"status"`
	DueDate       *string                  `json:"dueDate"`
	Notes         *string                  `json:"notes"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	items, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Status:    c.Query("status"),
		ContactID: c.Query("contactId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, items)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	item, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	dueDate, err := parseOptionalTime(req.DueDate, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		ContactID:     req.ContactID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         req.Items,
		Status:        invoicedomain.Status(strings.TrimSpace(req.Status)),
		DueDate:       dueDate,
		Notes:         req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, item)
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update := invoicedomain.UpdateInvoiceRequest{
		ContactID:     req.ContactID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         req.Items,
		Notes:         req.Notes,
	}
	if req.Status != nil {
		status := invoicedomain.Status(strings.TrimSpace(*req.Status))
		update.Status = &status
	}
	if req.DueDate != nil {
		dueDate, err := parseOptionalTime(*req.DueDate, false)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.DueDate = dueDate
	}

	item, err := s.invoiceSvc.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondMessage(c, "Invoice deleted")
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	out, invoice, err := s.invoiceSvc.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Number+".pdf"))
	c.Data(http.StatusOK, "application/pdf", out)
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	ctx := c.Request.Context()
	invoice, err := s.invoiceSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	entries, err := s.paymentSvc.List(ctx, invoice.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, entries)
}

// ReconcileInvoice re-derives the status from the ledger on demand.
func (s *Server) ReconcileInvoice(c *gin.Context) {
	item, err := s.invoiceSvc.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}
