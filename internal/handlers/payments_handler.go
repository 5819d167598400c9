package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openfloat/go-payment-switch/internal/connector"
	"github.com/openfloat/go-payment-switch/internal/idempotency"
	"github.com/openfloat/go-payment-switch/internal/mandates"
	"github.com/openfloat/go-payment-switch/internal/payments"
	"github.com/openfloat/go-payment-switch/internal/validation"
)

// HandlerConfig groups dependencies for the payment routes.
type HandlerConfig struct {
	Engine           *payments.Engine
	Mandates         *mandates.Manager
	IdempotencyStore *idempotency.Store
	Log              zerolog.Logger
}

// RegisterPaymentRoutes registers the payment and mandate API.
func RegisterPaymentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/payments", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreatePaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
			return
		}

		tx, err := cfg.Engine.CreateIntent(ctx, payments.CreateIntentParams{
			IdempotencyKey: idempKey,
			ConnectorName:  req.Connector,
			CustomerID:     req.CustomerID,
			Amount:         req.Amount,
			Currency:       req.Currency,
			CaptureMode:    req.CaptureMode,
			MandateIntent:  req.MandateIntent,
			MandateID:      req.MandateID,
		})
		if err != nil {
			// The transact write fails when the idempotency key already
			// exists; replay the stored outcome for that key if so.
			rec, getErr := cfg.IdempotencyStore.Get(ctx, idempKey)
			if getErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": getErr.Error()})
				return
			}
			if rec == nil {
				writeEngineError(c, err)
				return
			}
			switch rec.Status {
			case idempotency.StatusDone:
				if rec.ResponseBody != "" {
					c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
					return
				}
				c.JSON(http.StatusOK, gin.H{"payment_id": rec.TransactionID})
				return
			case idempotency.StatusInProgress:
				c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "payment_id": rec.TransactionID})
				return
			case idempotency.StatusFailed:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "payment_id": rec.TransactionID})
				return
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
				return
			}
		}

		body := paymentResponse(tx)
		responseBody, _ := json.Marshal(body)
		if err := cfg.IdempotencyStore.MarkDone(ctx, idempKey, string(responseBody), http.StatusCreated); err != nil {
			cfg.Log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("failed to persist idempotency response")
			// Without a stored response the record must not stay
			// IN_PROGRESS forever; FAILED tells replays to re-inspect the
			// payment by id instead of waiting.
			if err := cfg.IdempotencyStore.MarkFailed(ctx, idempKey, "response persistence failed"); err != nil {
				cfg.Log.Warn().Err(err).Str("transaction_id", tx.TransactionID).Msg("failed to mark idempotency record failed")
			}
		}

		c.Header("Location", fmt.Sprintf("/payments/%s", tx.TransactionID))
		c.JSON(http.StatusCreated, body)
	})

	r.POST("/payments/:id/confirm", func(c *gin.Context) {
		var req validation.ConfirmPaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		tx, err := cfg.Engine.Confirm(c.Request.Context(), c.Param("id"), payments.ConfirmParams{
			Instrument: connector.Instrument(req.Instrument),
			ReturnURL:  req.ReturnURL,
			MandateConstraints: mandates.Constraints{
				MaxAmount: req.MaxAmount,
				Frequency: req.Frequency,
			},
		})
		if err != nil {
			writeEngineErrorWithPayment(c, err, tx)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(tx))
	})

	r.GET("/payments/:id", func(c *gin.Context) {
		tx, err := cfg.Engine.Retrieve(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(tx))
	})

	r.POST("/payments/:id/capture", func(c *gin.Context) {
		var req validation.CapturePaymentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		tx, err := cfg.Engine.Capture(c.Request.Context(), c.Param("id"), req.Amount)
		if err != nil {
			writeEngineErrorWithPayment(c, err, tx)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(tx))
	})

	r.POST("/payments/:id/cancel", func(c *gin.Context) {
		tx, err := cfg.Engine.Cancel(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(tx))
	})

	r.POST("/payments/:id/redirect", func(c *gin.Context) {
		target, err := cfg.Engine.BeginRedirect(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"redirect_url": target})
	})

	r.POST("/payments/:id/redirect/complete", func(c *gin.Context) {
		var req validation.CompleteRedirectRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		tx, err := cfg.Engine.CompleteRedirect(c.Request.Context(), c.Param("id"), payments.CallbackPayload{
			Reference: req.Reference,
		})
		if err != nil {
			writeEngineErrorWithPayment(c, err, tx)
			return
		}
		c.JSON(http.StatusOK, paymentResponse(tx))
	})

	r.GET("/mandates/:id", func(c *gin.Context) {
		mandate, err := cfg.Mandates.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, mandateResponse(mandate))
	})

	r.POST("/mandates/:id/revoke", func(c *gin.Context) {
		if err := cfg.Mandates.Revoke(c.Request.Context(), c.Param("id")); err != nil {
			writeEngineError(c, err)
			return
		}
		mandate, err := cfg.Mandates.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, mandateResponse(mandate))
	})
}

func paymentResponse(tx *payments.Transaction) gin.H {
	body := gin.H{
		"payment_id":      tx.TransactionID,
		"connector":       tx.ConnectorName,
		"status":          tx.Status,
		"amount":          tx.Amount,
		"currency":        tx.Currency,
		"capture_mode":    tx.CaptureMode,
		"captured_amount": tx.CapturedAmount,
		"mandate_intent":  tx.MandateIntent,
	}
	if tx.MandateID != "" {
		body["mandate_id"] = tx.MandateID
	}
	if tx.ReasonCode != "" {
		body["reason_code"] = tx.ReasonCode
	}
	if tx.RedirectURL != "" && tx.Status == payments.StatusRequiresAction {
		body["redirect_url"] = tx.RedirectURL
	}
	return body
}

func mandateResponse(m *mandates.Mandate) gin.H {
	return gin.H{
		"mandate_id":            m.MandateID,
		"customer_id":           m.CustomerID,
		"status":                m.Status,
		"origin_transaction_id": m.OriginTransactionID,
		"constraints":           m.Constraints,
	}
}

// writeEngineError maps engine error kinds to HTTP responses.
func writeEngineError(c *gin.Context, err error) {
	writeEngineErrorWithPayment(c, err, nil)
}

// writeEngineErrorWithPayment additionally attaches the transaction when the
// engine returned one alongside the error (connector declines do).
func writeEngineErrorWithPayment(c *gin.Context, err error, tx *payments.Transaction) {
	var rejected *payments.ConnectorRejectedError
	if errors.As(err, &rejected) {
		body := gin.H{"error": "connector_rejected", "reason_code": rejected.ReasonCode}
		if tx != nil {
			body["payment"] = paymentResponse(tx)
		}
		c.JSON(http.StatusPaymentRequired, body)
		return
	}

	switch {
	case errors.Is(err, payments.ErrNotFound), errors.Is(err, mandates.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, payments.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "detail": err.Error()})
	case errors.Is(err, payments.ErrUnsupportedCurrency):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_currency", "detail": err.Error()})
	case errors.Is(err, payments.ErrAmountExceedsAuthorization):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_exceeds_authorization", "detail": err.Error()})
	case errors.Is(err, payments.ErrInvalidState), errors.Is(err, mandates.ErrNotPending), errors.Is(err, mandates.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "detail": err.Error()})
	case errors.Is(err, mandates.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "mandate_not_active", "detail": err.Error()})
	case errors.Is(err, payments.ErrConcurrentModification), errors.Is(err, mandates.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent_modification"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "detail": err.Error()})
	}
}
