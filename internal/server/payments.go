package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
)

func (s *Server) GetPayment(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	detail, err := s.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type approvePaymentRequest struct {
	AmountOverride *int64 `json:"amount_override"`
	Comment        string `json:"comment"`
}

type rejectPaymentRequest struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

// ApprovePayment applies a manual approval. Operators can correct the
// amount when the provider settled a different figure than requested.
func (s *Server) ApprovePayment(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req approvePaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.ledgerSvc.ApplyDecision(c.Request.Context(), ledgerdomain.ApplyDecisionInput{
		PaymentID:      id,
		Target:         paymentdomain.PaymentStatusApproved,
		Actor:          s.actor(c),
		AmountOverride: req.AmountOverride,
		Comment:        req.Comment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) RejectPayment(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req rejectPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.ledgerSvc.ApplyDecision(c.Request.Context(), ledgerdomain.ApplyDecisionInput{
		PaymentID:      id,
		Target:         paymentdomain.PaymentStatusRejected,
		Actor:          s.actor(c),
		Comment:        req.Comment,
		RejectionCause: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) actor(c *gin.Context) string {
	actor := strings.TrimSpace(c.GetHeader("X-Actor"))
	if actor == "" {
		return "admin"
	}
	return actor
}
