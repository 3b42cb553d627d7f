package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"bookstore/internal/app"
	"bookstore/internal/security"
	"bookstore/pkg/domain"
	"bookstore/pkg/paystack"
)

const maxWebhookBytes = 1 << 20

type initializeRequest struct {
	BookID  uint   `json:"bookId"`
	Email   string `json:"email"`
	BuyerID uint   `json:"buyerId"`
}

func (s *Server) handleInitializePayment(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p, ok := s.optionalPrincipal(r); ok {
		req.BuyerID = p.UserID
	}
	out, err := s.app.InitiatePayment(r.Context(), app.PaymentRequest{
		BookID:  req.BookID,
		Email:   req.Email,
		BuyerID: req.BuyerID,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := s.app.VerifyPayment(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		fail(w, r, err)
		return
	}
	target := s.failure
	if payment.Status == domain.PaymentSuccess {
		target = s.success
	}
	http.Redirect(w, r, withRef(target, payment.Reference), http.StatusFound)
}

func withRef(base *url.URL, ref string) string {
	u := *base
	q := u.Query()
	q.Set("ref", ref)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.app.HandleWebhook(r.Context(), body, r.Header.Get(paystack.SignatureHeader)); err != nil {
		if errors.Is(err, app.ErrInvalidSignature) {
			s.observe(r, security.EventWebhook, security.OutcomeFail)
		}
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
