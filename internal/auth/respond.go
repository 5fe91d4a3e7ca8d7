package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/placelist/pkg/otp"
)

// jsonResponse is the envelope every JSON endpoint uses.
type jsonResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body jsonResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, jsonResponse{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, jsonResponse{Error: &errorDetail{Code: code, Message: message}})
}

// writeReason maps a detailed internal reason onto the deliberately coarser
// external contract. The merging happens here and only here: not_allowed
// answers exactly like invalid_email so response shape alone cannot confirm
// whether an email is registered.
func writeReason(w http.ResponseWriter, reason otp.Reason, retryAfter time.Duration) {
	switch reason {
	case otp.ReasonInvalidEmail, otp.ReasonNotAllowed:
		writeError(w, http.StatusUnprocessableEntity, "invalid_email", "enter a valid email address")
	case otp.ReasonRateLimited:
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later")
	case otp.ReasonInvalidCode:
		writeError(w, http.StatusUnprocessableEntity, "invalid_code", "that code is not correct")
	case otp.ReasonInvalidOrExpired:
		writeError(w, http.StatusUnprocessableEntity, "invalid_or_expired", "code is invalid or expired, request a new one")
	case otp.ReasonDeliveryUnavailable:
		writeError(w, http.StatusServiceUnavailable, "delivery_unavailable", "email delivery is not configured")
	case otp.ReasonDeliveryFailed:
		writeError(w, http.StatusServiceUnavailable, "delivery_failed", "could not send the email, try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

func writeServiceUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "service_unavailable", "try again later")
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
