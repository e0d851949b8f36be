package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	recordsdomain "github.com/smallbiznis/crm/internal/records/domain"
)

// recordHandlers serves one document collection; the same handlers back
// contacts, opportunities, products, documents and users.
type recordHandlers struct {
	svc        recordsdomain.Service
	collection string
}

func (h recordHandlers) List(c *gin.Context) {
	size, err := parseOptionalInt(c.Query("pageSize"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := h.svc.List(c.Request.Context(), recordsdomain.ListRequest{
		Collection: h.collection,
		PageToken:  c.Query("pageToken"),
		PageSize:   size,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{"success": true, "data": resp.Documents}
	if resp.PageInfo != nil {
		body["pageInfo"] = resp.PageInfo
	}
	c.JSON(http.StatusOK, body)
}

func (h recordHandlers) Get(c *gin.Context) {
	record, err := h.svc.GetByID(c.Request.Context(), h.collection, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, record.Document())
}

func (h recordHandlers) Create(c *gin.Context) {
	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := h.svc.Create(c.Request.Context(), h.collection, doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, record.Document())
}

func (h recordHandlers) Update(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := h.svc.Update(c.Request.Context(), h.collection, c.Param("id"), patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, record.Document())
}

func (h recordHandlers) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), h.collection, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	respondMessage(c, "Deleted")
}
