package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	"go.uber.org/zap"
)

const contextAttributionKey = "attribution"

// CaptureAttribution stores a fresh attribution for any request that
// carries ?aff=&kol= (optionally product= and click=). Bad values are
// ignored and never fail the request.
func (s *Server) CaptureAttribution() gin.HandlerFunc {
	return func(c *gin.Context) {
		seed, ok := attributionSeedFromQuery(c)
		if ok {
			ctx := c.Request.Context()
			stored, err := s.attribution.Store(ctx, c, seed)
			if err != nil {
				logger.FromContext(ctx).Warn("attribution capture failed",
					zap.Int64("kol_id", seed.KolID),
					zap.Int64("link_id", seed.AffiliateID),
					zap.Error(err),
				)
			} else {
				c.Set(contextAttributionKey, stored)
			}
		}
		c.Next()
	}
}

// currentAttribution prefers an attribution stored earlier in this request,
// whose cookie the client has not sent back yet.
func (s *Server) currentAttribution(c *gin.Context) *attributiondomain.ClientAttribution {
	if value, ok := c.Get(contextAttributionKey); ok {
		if a, ok := value.(*attributiondomain.ClientAttribution); ok && a != nil {
			return a
		}
	}
	return s.attribution.Get(c.Request.Context(), c)
}

func attributionSeedFromQuery(c *gin.Context) (attributiondomain.Seed, bool) {
	affRaw := c.Query("aff")
	kolRaw := c.Query("kol")
	if affRaw == "" || kolRaw == "" {
		return attributiondomain.Seed{}, false
	}

	linkID, ok := parsePositiveID(affRaw)
	if !ok {
		return attributiondomain.Seed{}, false
	}
	kolID, ok := parsePositiveID(kolRaw)
	if !ok {
		return attributiondomain.Seed{}, false
	}
	// an unusable product degrades to a general attribution
	var productID *int64
	if id, ok := parsePositiveID(c.Query("product")); ok {
		productID = &id
	}

	clickID, _ := parsePositiveID(c.Query("click"))

	return attributiondomain.Seed{
		KolID:       kolID,
		AffiliateID: linkID,
		ProductID:   productID,
		ClickID:     clickID,
	}, true
}

func (s *Server) GetAttribution(c *gin.Context) {
	current := s.currentAttribution(c)
	c.JSON(http.StatusOK, gin.H{"attribution": current})
}

func (s *Server) ClearAttribution(c *gin.Context) {
	s.attribution.Clear(c.Request.Context(), c)
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
