package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kolaffiliate/internal/scheduler"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
)

const (
	defaultEligibleLimit = 100
	maxEligibleLimit     = 1000
)

// RecalculateAllTiers runs the full recalculation job now and reports its
// outcome. Without a scheduler the pass runs directly.
func (s *Server) RecalculateAllTiers(c *gin.Context) {
	ctx := c.Request.Context()

	if s.scheduler == nil {
		result, err := s.tierSvc.RecalculateAll(ctx, tierdomain.BatchOptions{
			Size:        s.cfg.Scheduler.BatchSize,
			Delay:       s.cfg.Scheduler.BatchDelay,
			Concurrency: s.cfg.Scheduler.BatchConcurrency,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
		return
	}

	if err := s.scheduler.Trigger(ctx, scheduler.JobTierFullRecalculation); err != nil {
		AbortWithError(c, err)
		return
	}
	for _, st := range s.scheduler.Status() {
		if st.Name == scheduler.JobTierFullRecalculation {
			c.JSON(http.StatusOK, gin.H{"data": st.LastResult, "job": st})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": nil})
}

func (s *Server) RecalculateKolTier(c *gin.Context) {
	kolID, ok := parsePositiveID(c.Param("kolId"))
	if !ok {
		AbortWithError(c, tierdomain.ErrInvalidKolID)
		return
	}

	change, err := s.tierSvc.RecalculateKol(c.Request.Context(), kolID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": change})
}

func (s *Server) GetTierStatistics(c *gin.Context) {
	stats, err := s.tierSvc.Statistics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  stats,
		"tiers": s.tierSvc.Table(),
	})
}

func (s *Server) ListEligibleKols(c *gin.Context) {
	n, err := parseLimit(c.Query("limit"), defaultEligibleLimit, maxEligibleLimit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
		return
	}

	candidates, err := s.tierSvc.EligibleForUpgrade(c.Request.Context(), n)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": candidates, "count": len(candidates)})
}

func (s *Server) GetSchedulerStatus(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.scheduler.Status()})
}
