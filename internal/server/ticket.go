package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	ticketdomain "github.com/smallbiznis/crm/internal/ticket/domain"
)

type createTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	ContactID   string `json:"contactId"`
	GuestName   string `json:"guestName"`
	GuestEmail  string `json:"guestEmail"`
	AssigneeID  string `json:"assigneeId"`
}

type updateTicketRequest struct {
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	ContactID   *string `json:"contactId"`
	GuestName   *string `json:"guestName"`
	GuestEmail  *string `json:"guestEmail"`
	AssigneeID  *string `json:"assigneeId"`
}

func (s *Server) ListTickets(c *gin.Context) {
	items, err := s.ticketSvc.List(c.Request.Context(), ticketdomain.ListFilter{
		Status:    ticketdomain.Status(strings.TrimSpace(c.Query("status"))),
		Priority:  ticketdomain.Priority(strings.TrimSpace(c.Query("priority"))),
		ContactID: strings.TrimSpace(c.Query("contactId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, items)
}

func (s *Server) GetTicketByID(c *gin.Context) {
	item, err := s.ticketSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

func (s *Server) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.ticketSvc.Create(c.Request.Context(), ticketdomain.CreateTicketRequest{
		Subject:     req.Subject,
		Description: req.Description,
		Status:      ticketdomain.Status(strings.TrimSpace(req.Status)),
		Priority:    ticketdomain.Priority(strings.TrimSpace(req.Priority)),
		ContactID:   req.ContactID,
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, item)
}

// UpdateTicket applies the change; a move into Resolved notifies the requester
// after the write has committed.
func (s *Server) UpdateTicket(c *gin.Context) {
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update := ticketdomain.UpdateTicketRequest{
		Subject:     req.Subject,
		Description: req.Description,
		ContactID:   req.ContactID,
		GuestName:   req.GuestName,
		GuestEmail:  req.GuestEmail,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != nil {
		status := ticketdomain.Status(strings.TrimSpace(*req.Status))
		update.Status = &status
	}
	if req.Priority != nil {
		priority := ticketdomain.Priority(strings.TrimSpace(*req.Priority))
		update.Priority = &priority
	}

	item, err := s.ticketSvc.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

func (s *Server) DeleteTicket(c *gin.Context) {
	if err := s.ticketSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondMessage(c, "Ticket deleted")
}
