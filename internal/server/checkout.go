package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kolaffiliate/internal/authorization"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	reconciliationdomain "github.com/smallbiznis/kolaffiliate/internal/reconciliation/domain"
	"go.uber.org/zap"
)

type checkoutResponse struct {
	*reconciliationdomain.OrderAttributionResult
	AttributionError string `json:"attributionError,omitempty"`
}

// Checkout is called by the order flow once an order is placed. It only
// fails on a malformed order or a replay; attribution problems are logged
// and the order is reported with nothing attributed. The stored attribution
// is used unless the body carries one tied to a click.
func (s *Server) Checkout(c *gin.Context) {
	var req reconciliationdomain.OrderAttributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// the endpoint is public, so a posted attribution counts only when it
	// names a recorded click whose time can be read back
	if !req.Attribution.HasClick() {
		req.Attribution = s.currentAttribution(c)
	}

	ctx := c.Request.Context()
	result, err := s.reconciliation.ProcessOrderAttribution(ctx, req)
	if err != nil {
		if asValidationErrors(err) != nil || errors.Is(err, reconciliationdomain.ErrOrderAlreadyReconciled) {
			AbortWithError(c, err)
			return
		}
		logger.FromContext(ctx).Error("order attribution failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, checkoutResponse{
			OrderAttributionResult: &reconciliationdomain.OrderAttributionResult{
				OrderID:      strings.TrimSpace(req.OrderID),
				TotalItems:   len(req.Items),
				KolsInvolved: []reconciliationdomain.ID{},
				ItemResults:  []reconciliationdomain.ItemResult{},
			},
			AttributionError: "attribution_unavailable",
		})
		return
	}

	if req.Attribution != nil {
		s.attribution.Clear(ctx, c)
	}

	c.JSON(http.StatusOK, checkoutResponse{OrderAttributionResult: result})
}

func (s *Server) GetOrderAttribution(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID := strings.TrimSpace(c.Param("orderId"))
	if orderID == "" {
		AbortWithError(c, newValidationError("orderId", "required", "orderId is required"))
		return
	}

	admin, err := s.canPerform(c, authorization.ObjectOrder, authorization.ActionOrderViewAny)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !admin {
		// non-admins must be approved KOLs to read their own rows
		if _, err := s.kolSvc.RequireApproved(c.Request.Context(), actor.UserID); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	summary, err := s.reconciliation.GetOrderAttributionSummary(c.Request.Context(), orderID, reconciliationdomain.Viewer{
		UserID: actor.UserID,
		Admin:  admin,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) CompleteOrder(c *gin.Context) {
	s.transitionOrder(c, string(ledgerdomain.StatusCompleted))
}

func (s *Server) CancelOrder(c *gin.Context) {
	s.transitionOrder(c, string(ledgerdomain.StatusCancelled))
}

func (s *Server) transitionOrder(c *gin.Context, status string) {
	orderID := strings.TrimSpace(c.Param("orderId"))
	if orderID == "" {
		AbortWithError(c, newValidationError("orderId", "required", "orderId is required"))
		return
	}

	result, err := s.reconciliation.TransitionOrder(c.Request.Context(), orderID, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
