package payments

import (
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"

	"shopilent/internal/models"
)

// TranslateError maps a Stripe failure onto a models.PaymentError with a
// domain code. Non-Stripe errors are treated as the provider being unavailable.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &models.PaymentError{Code: CodeProviderUnavailable, Message: "payment provider unavailable", Err: err}
	}

	code := classify(stripeErr)
	message := stripeErr.Msg
	if message == "" {
		message = strings.ReplaceAll(code, "_", " ")
	}
	return &models.PaymentError{Code: code, Message: message, Err: err}
}

func classify(e *stripe.Error) string {
	switch e.HTTPStatusCode {
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusUnauthorized:
		return CodeAuthenticationFailed
	}

	switch string(e.Type) {
	case "card_error":
		return cardCode(e)
	case "invalid_request_error":
		if string(e.Code) == "rate_limit" {
			return CodeRateLimited
		}
		return CodeInvalidRequest
	case "idempotency_error":
		return CodeInvalidRequest
	}
	return CodeProviderUnavailable
}

func cardCode(e *stripe.Error) string {
	switch string(e.Code) {
	case "expired_card":
		return CodeExpiredCard
	case "incorrect_cvc", "invalid_cvc":
		return CodeIncorrectCVC
	case "processing_error":
		return CodeProcessingError
	}
	if string(e.DeclineCode) == "insufficient_funds" {
		return CodeInsufficientFunds
	}
	return CodeCardDeclined
}
