package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	taskdomain "github.com/smallbiznis/crm/internal/task/domain"
)

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AssigneeID  string `json:"assigneeId"`
	ContactID   string `json:"contactId"`
	DueDate     string `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	AssigneeID  *string `json:"assigneeId"`
	ContactID   *string `json:"contactId"`
	DueDate     *string `json:"dueDate"`
}

func (s *Server) ListTasks(c *gin.Context) {
	items, err := s.taskSvc.List(c.Request.Context(), taskdomain.ListFilter{
		Status:     taskdomain.Status(strings.TrimSpace(c.Query("status"))),
		AssigneeID: strings.TrimSpace(c.Query("assigneeId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, items)
}

func (s *Server) GetTaskByID(c *gin.Context) {
	item, err := s.taskSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

func (s *Server) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.taskSvc.Create(c.Request.Context(), taskdomain.CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Status:      taskdomain.Status(strings.TrimSpace(req.Status)),
		AssigneeID:  req.AssigneeID,
		ContactID:   req.ContactID,
		DueDate:     dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, item)
}

func (s *Server) UpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update := taskdomain.UpdateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		ContactID:   req.ContactID,
	}
	if req.Status != nil {
		status := taskdomain.Status(strings.TrimSpace(*req.Status))
		update.Status = &status
	}
	if req.DueDate != nil {
		dueDate, err := parseOptionalTime(*req.DueDate, true)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.DueDate = dueDate
	}

	item, err := s.taskSvc.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, item)
}

func (s *Server) DeleteTask(c *gin.Context) {
	if err := s.taskSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondMessage(c, "Task deleted")
}
