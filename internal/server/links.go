package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
)

const (
	defaultLinkPageSize = 20
	maxLinkPageSize     = 100
)

func (s *Server) CreateLink(c *gin.Context) {
	kol, ok := kolFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req linkdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.KolID = kol.ID
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		AbortWithError(c, newValidationError("productId", "required", "productId is required"))
		return
	}

	resp, err := s.linkSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListLinks(c *gin.Context) {
	kol, ok := kolFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	size, err := parseLimit(c.Query("pageSize"), defaultLinkPageSize, maxLinkPageSize)
	if err != nil {
		AbortWithError(c, newValidationError("pageSize", "invalid_page_size", "pageSize must be a positive integer"))
		return
	}

	resp, err := s.linkSvc.List(c.Request.Context(), linkdomain.ListRequest{
		KolID:     kol.ID,
		PageToken: strings.TrimSpace(c.Query("pageToken")),
		PageSize:  size,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
