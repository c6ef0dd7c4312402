package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
)

type createDepositRequest struct {
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	MethodCode   string `json:"method_code"`
	BankCode     string `json:"bank_code"`
	CustomerName string `json:"customer_name"`
	Notes        string `json:"notes"`
}

type createWithdrawalRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	BankAccountID string `json:"bank_account_id"`
	BankCode      string `json:"bank_code"`
	AccountNo     string `json:"account_no"`
	HolderName    string `json:"holder_name"`
	Notes         string `json:"notes"`
}

func (s *Server) CreateDeposit(c *gin.Context) {
	merchantID, ok := parseID(c, c.Param("merchantId"))
	if !ok {
		return
	}

	var req createDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.withIdempotency(c, "deposit:"+merchantID.String(), func() (int, any, error) {
		result, err := s.paymentSvc.CreateDeposit(c.Request.Context(), paymentdomain.CreateDepositInput{
			MerchantID:   merchantID,
			Amount:       req.Amount,
			Currency:     req.Currency,
			MethodCode:   req.MethodCode,
			BankCode:     req.BankCode,
			CustomerName: req.CustomerName,
			Notes:        req.Notes,
		})
		if err != nil {
			return 0, nil, err
		}
		s.poller.Schedule(result.Payment.ID)
		return http.StatusCreated, result, nil
	})
}

func (s *Server) CreateWithdrawal(c *gin.Context) {
	merchantID, ok := parseID(c, c.Param("merchantId"))
	if !ok {
		return
	}

	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var bankAccountID snowflake.ID
	if strings.TrimSpace(req.BankAccountID) != "" {
		parsed, err := snowflake.ParseString(req.BankAccountID)
		if err != nil {
			AbortWithError(c, newValidationError("bank_account_id", "invalid_id", "invalid bank account id"))
			return
		}
		bankAccountID = parsed
	}

	s.withIdempotency(c, "withdrawal:"+merchantID.String(), func() (int, any, error) {
		result, err := s.paymentSvc.CreateWithdrawal(c.Request.Context(), paymentdomain.CreateWithdrawalInput{
			MerchantID:    merchantID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			BankAccountID: bankAccountID,
			BankCode:      req.BankCode,
			AccountNo:     req.AccountNo,
			HolderName:    req.HolderName,
			Notes:         req.Notes,
		})
		if err != nil {
			return 0, nil, err
		}
		s.poller.Schedule(result.Payment.ID)
		return http.StatusCreated, result, nil
	})
}

func (s *Server) GetMerchantBalance(c *gin.Context) {
	merchantID, ok := parseID(c, c.Param("merchantId"))
	if !ok {
		return
	}

	balance, err := s.ledgerSvc.MerchantBalance(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ledgerSum, err := s.ledgerSvc.LedgerSum(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"merchant_id": merchantID.String(),
		"balance":     balance,
		"ledger_sum":  ledgerSum,
	})
}

// withIdempotency replays the stored response when the caller reuses an
// Idempotency-Key. Requests without the header execute normally.
func (s *Server) withIdempotency(c *gin.Context, scope string, fn func() (int, any, error)) {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		status, body, err := fn()
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(status, body)
		return
	}

	ctx := c.Request.Context()
	if record, err := s.idemStore.Get(ctx, scope, key); err != nil {
		AbortWithError(c, err)
		return
	} else if record != nil {
		c.Data(record.StatusCode, "application/json", record.Response)
		return
	}

	status, body, err := fn()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	record, _, err := s.idemStore.Remember(ctx, scope, key, status, encoded)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(record.StatusCode, "application/json", record.Response)
}

func parseID(c *gin.Context, raw string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid identifier"))
		return 0, false
	}
	return id, true
}
