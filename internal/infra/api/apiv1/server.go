package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/infra/sched"
	"telegram-payment-links/internal/usecase"
)

// Reconciler runs one synchronous reconciliation pass.
type Reconciler interface {
	RunOnce(ctx context.Context) (sched.PassResult, error)
}

// Server implements the admin API.
type Server struct {
	links      usecase.PaymentLinkUseCase
	reconciler Reconciler
}

func NewServer(links usecase.PaymentLinkUseCase, reconciler Reconciler) *Server {
	return &Server{links: links, reconciler: reconciler}
}

// RegisterAPIV1 mounts the admin routes on r. Authentication is the caller's concern.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users/{user_id}/links", s.listUserLinks)
		r.Post("/reconcile", s.reconcile)
	})
}

type Link struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	PaymentLinkID string    `json:"payment_link_id"`
	ReferenceID   string    `json:"reference_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentURL    string    `json:"payment_url"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Server) listUserLinks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	links, err := s.links.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list links"})
		return
	}
	items := make([]Link, 0, len(links))
	for _, l := range links {
		items = append(items, Link{
			ID:            l.ID,
			UserID:        l.UserID,
			ProductID:     l.ProductID,
			PaymentLinkID: l.ProviderLinkID,
			ReferenceID:   l.ReferenceID,
			Amount:        l.Amount,
			Currency:      l.Currency,
			PaymentURL:    l.PaymentURL,
			Status:        string(l.Status),
			CreatedAt:     l.CreatedAt,
			UpdatedAt:     l.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reconciler not running"})
		return
	}
	res, err := s.reconciler.RunOnce(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, domain.ErrStore) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"error": "reconcile pass failed", "result": res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
