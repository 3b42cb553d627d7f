package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bookstore/internal/app"
	"bookstore/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorCode(w, status, errorCodeForStatus(status), msg)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{app.ErrInvalidCredentials, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
	{app.ErrInvalidSignature, http.StatusUnauthorized, "PAYMENT_INVALID_SIGNATURE"},
	{app.ErrForbidden, http.StatusForbidden, "BOOK_FORBIDDEN"},

	{app.ErrBookNotFound, http.StatusNotFound, "BOOK_NOT_FOUND"},
	{app.ErrImageNotFound, http.StatusNotFound, "IMAGE_NOT_FOUND"},
	{app.ErrBuyerNotFound, http.StatusNotFound, "BUYER_NOT_FOUND"},
	{app.ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},

	{app.ErrInvalidUsername, http.StatusBadRequest, "AUTH_INVALID_USERNAME"},
	{app.ErrPasswordRequired, http.StatusBadRequest, "AUTH_PASSWORD_REQUIRED"},
	{app.ErrUsernameTaken, http.StatusBadRequest, "AUTH_USERNAME_TAKEN"},
	{app.ErrNameRequired, http.StatusBadRequest, "BOOK_NAME_REQUIRED"},
	{app.ErrNegativePrice, http.StatusBadRequest, "BOOK_INVALID_PRICE"},
	{app.ErrTooManyImages, http.StatusBadRequest, "BOOK_TOO_MANY_IMAGES"},
	{app.ErrImageTooLarge, http.StatusBadRequest, "BOOK_IMAGE_TOO_LARGE"},
	{app.ErrUploadTooLarge, http.StatusBadRequest, "BOOK_UPLOAD_TOO_LARGE"},
	{app.ErrUnsupportedImageType, http.StatusBadRequest, "BOOK_UNSUPPORTED_IMAGE_TYPE"},
	{app.ErrImageUpload, http.StatusBadRequest, "BOOK_IMAGE_UPLOAD_FAILED"},
	{app.ErrInvalidEmail, http.StatusBadRequest, "PAYMENT_INVALID_EMAIL"},
	{app.ErrBookIDRequired, http.StatusBadRequest, "PAYMENT_BOOK_REQUIRED"},
	{app.ErrReferenceRequired, http.StatusBadRequest, "PAYMENT_REFERENCE_REQUIRED"},
	{app.ErrPaymentInitFailed, http.StatusBadRequest, "PAYMENT_INIT_FAILED"},
	{app.ErrPaymentVerifyFailed, http.StatusBadRequest, "PAYMENT_VERIFY_FAILED"},
	{app.ErrInvalidWebhook, http.StatusBadRequest, "PAYMENT_INVALID_WEBHOOK"},
}

// fail maps an app error onto the HTTP taxonomy. Unknown errors are logged
// and reported as a bare 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			writeErrorCode(w, m.status, m.code, err.Error())
			return
		}
	}
	util.LoggerFromContext(r.Context()).Error("request_failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "BOOK_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "AUTH_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
