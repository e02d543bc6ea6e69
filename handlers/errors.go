package handlers

import (
	"errors"
	"net/http"

	"daypass/services/backend"
	"daypass/services/booking"
	"daypass/services/checkout"
	"daypass/services/followup"
	"daypass/services/payment"
	"daypass/services/wizard"
	"daypass/utils"

	followupRepo "daypass/database/repository/followup"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	KindValidation  = "validation"
	KindTransport   = "transport"
	KindRejection   = "rejection"
	KindAmbiguous   = "ambiguous"
	KindConflict    = "conflict"
	KindNotFound    = "not_found"
	KindPayment     = "payment"
	KindPaymentInit = "payment_init"
	KindInternal    = "internal"
)

type apiError struct {
	status  int
	kind    string
	title   string
	message string
}

// classify maps the service error taxonomy onto status, kind and
// user-facing text. Order matters: wrapped kinds are checked before the
// sentinels they wrap.
func classify(err error) apiError {
	var (
		verr  *wizard.ValidationError
		wrong *wizard.WrongStepError
		amb   *booking.AmbiguousOutcomeError
		rej   *backend.RejectionError
		perr  *payment.InitError
		conf  *payment.ConfirmationError
		ver   *payment.VerificationError
		trans *backend.TransportError
	)
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound), errors.Is(err, followupRepo.ErrNotFound):
		return apiError{http.StatusNotFound, KindNotFound, "Not found", "This checkout has expired or does not exist."}
	case errors.As(err, &verr):
		return apiError{http.StatusUnprocessableEntity, KindValidation, "Validation failed", verr.Message}
	case errors.Is(err, followup.ErrUnknownState):
		return apiError{http.StatusBadRequest, KindValidation, "Validation failed", err.Error()}
	case errors.As(err, &amb):
		return apiError{http.StatusBadGateway, KindAmbiguous, "Booking not confirmed", amb.UserMessage()}
	case errors.As(err, &perr):
		return apiError{http.StatusBadGateway, KindPaymentInit, "Payment setup failed", perr.UserMessage()}
	case errors.As(err, &rej):
		return apiError{http.StatusUnprocessableEntity, KindRejection, "Request declined", rej.UserMessage()}
	case errors.As(err, &conf):
		return apiError{http.StatusPaymentRequired, KindPayment, "Payment not completed", conf.UserMessage()}
	case errors.As(err, &ver):
		return apiError{http.StatusServiceUnavailable, KindTransport, "Payment check unavailable", ver.UserMessage()}
	case errors.As(err, &trans):
		return apiError{http.StatusServiceUnavailable, KindTransport, "Booking system unavailable", trans.UserMessage()}
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		return apiError{http.StatusConflict, KindConflict, "Submission in progress", "Your booking is being submitted. Please wait."}
	case errors.Is(err, checkout.ErrSessionBusy):
		return apiError{http.StatusConflict, KindConflict, "Checkout busy", "Another request for this checkout is in progress. Please retry."}
	case errors.As(err, &wrong),
		errors.Is(err, wizard.ErrFirstStep),
		errors.Is(err, wizard.ErrLastStep),
		errors.Is(err, wizard.ErrAttractionsOff),
		errors.Is(err, wizard.ErrAlreadyBooked),
		errors.Is(err, payment.ErrNotReady):
		return apiError{http.StatusConflict, KindConflict, "Not allowed now", err.Error()}
	default:
		return apiError{http.StatusInternalServerError, KindInternal, "Internal Server Error", "An unexpected error occurred. Please try again later."}
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	e := classify(err)
	if e.kind == KindInternal {
		logger.Error("Unexpected error", zap.Error(err))
	}
	utils.JSONError(c, logger, e.status, e.kind, e.title, e.message)
}
