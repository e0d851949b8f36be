package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboard answers 200 even when every upstream failed; the sources map
// in the breakdown tells the caller which sections are empty by failure.
func (s *Server) GetDashboard(c *gin.Context) {
	dashboard, err := s.analyticsSvc.Dashboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Dashboard analytics",
		"data":    dashboard,
	})
}
