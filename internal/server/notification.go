package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/crm/internal/notification/domain"
)

type sendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SendEmail answers {success:false} with 502 when the mail server refused the
// message; the dispatcher on the other side treats both the same way.
func (s *Server) SendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	delivery, err := s.notificationSvc.SendEmail(c.Request.Context(), notificationdomain.SendEmailRequest{
		To:      req.To,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		if errors.Is(err, notificationdomain.ErrDeliveryFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Email delivery failed", "data": delivery})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email sent", "data": delivery})
}

func (s *Server) ListDeliveries(c *gin.Context) {
	size, err := parseOptionalInt(c.Query("pageSize"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), notificationdomain.ListRequest{
		Recipient: c.Query("to"),
		PageToken: c.Query("pageToken"),
		PageSize:  size,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"data":     resp.Deliveries,
		"pageInfo": resp.PageInfo,
	})
}
