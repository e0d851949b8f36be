package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) Search(c *gin.Context) {
	resp, err := s.searchSvc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   resp.Query,
		"results": resp.Results,
	})
}
