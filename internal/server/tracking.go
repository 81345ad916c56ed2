package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	"go.uber.org/zap"
)

type trackClickRequest struct {
	ShortCode string `json:"shortCode"`
}

type trackClickResponse struct {
	DestinationURL string                               `json:"destinationUrl"`
	ClickID        string                               `json:"clickId"`
	Attribution    *attributiondomain.ClientAttribution `json:"attribution"`
}

// Redirect records the click behind a short link and sends the visitor on
// to the product page.
func (s *Server) Redirect(c *gin.Context) {
	result, _, err := s.recordClick(c, c.Param("shortCode"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, result.DestinationURL)
}

// TrackClick is the JSON form of Redirect for clients that navigate
// themselves.
func (s *Server) TrackClick(c *gin.Context) {
	var req trackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.ShortCode) == "" {
		AbortWithError(c, newValidationError("shortCode", "required", "shortCode is required"))
		return
	}

	result, attribution, err := s.recordClick(c, req.ShortCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, trackClickResponse{
		DestinationURL: result.DestinationURL,
		ClickID:        strconv.FormatInt(result.ClickID, 10),
		Attribution:    attribution,
	})
}

func (s *Server) recordClick(c *gin.Context, shortCode string) (*clickdomain.RecordResult, *attributiondomain.ClientAttribution, error) {
	ctx := c.Request.Context()
	result, err := s.clickSvc.RecordClick(ctx, strings.TrimSpace(shortCode), requestMeta(c))
	if err != nil {
		return nil, nil, err
	}

	productID := result.ProductID
	attribution, err := s.attribution.Store(ctx, c, attributiondomain.Seed{
		KolID:       result.KolID,
		AffiliateID: result.LinkID,
		ProductID:   &productID,
		ClickID:     result.ClickID,
		ShortCode:   result.ShortCode,
	})
	if err != nil {
		// the click is already recorded; the destination URL still carries
		// the attribution parameters
		logger.FromContext(ctx).Warn("attribution store failed after click",
			zap.Int64("click_id", result.ClickID),
			zap.Error(err),
		)
		return result, nil, nil
	}
	c.Set(contextAttributionKey, attribution)
	return result, attribution, nil
}

func requestMeta(c *gin.Context) clickdomain.RequestMeta {
	return clickdomain.RequestMeta{
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Referrer:    c.Request.Referer(),
		GeoLocation: geoFromHeaders(c),
	}
}

// geoFromHeaders reads the coarse location an edge proxy may attach.
func geoFromHeaders(c *gin.Context) map[string]any {
	headers := map[string]string{
		"country": "CF-IPCountry",
		"region":  "X-Geo-Region",
		"city":    "X-Geo-City",
	}
	geo := make(map[string]any, len(headers))
	for key, header := range headers {
		if value := strings.TrimSpace(c.GetHeader(header)); value != "" {
			geo[key] = value
		}
	}
	if len(geo) == 0 {
		return nil
	}
	return geo
}
