package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
)

func (s *Server) GetDashboard(c *gin.Context) {
	kol, ok := kolFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	resp, err := s.dashboardSvc.Get(c.Request.Context(), dashboarddomain.Request{
		KolID:     kol.ID,
		StartDate: strings.TrimSpace(c.Query("startDate")),
		EndDate:   strings.TrimSpace(c.Query("endDate")),
		Period:    strings.TrimSpace(c.Query("period")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
