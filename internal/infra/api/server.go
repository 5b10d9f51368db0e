package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-payment-links/internal/domain"
	"telegram-payment-links/internal/domain/model"
	"telegram-payment-links/internal/infra/api/apiv1"
	"telegram-payment-links/internal/infra/logging"
	"telegram-payment-links/internal/usecase"
)

// Deps are the collaborators of the HTTP surface. BotWebhook may be nil in polling mode.
type Deps struct {
	Links          usecase.PaymentLinkUseCase
	Reconciler     apiv1.Reconciler
	Auth           *AuthManager
	BotWebhook     http.Handler
	WebhookPath    string
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
}

// NewRouter builds the chi router: public link API, health, metrics, bot webhook and admin API.
func NewRouter(d Deps) chi.Router {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	l := d.Logger.With().Str("component", "HTTP").Logger()
	h := &handlers{links: d.Links, log: &l}

	r := chi.NewRouter()
	r.Use(TraceID(), Recover(&l), RequestLog(&l), CORS())

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(d.RequestTimeout))
		r.Post("/create-payment-link", h.createLink)
		r.Get("/status/{payment_link_id}", h.status)
	})

	if d.BotWebhook != nil {
		path := d.WebhookPath
		if path == "" {
			path = "/webhook"
		}
		r.Method(http.MethodPost, path, d.BotWebhook)
	}

	if d.Auth != nil {
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireAdmin())
			apiv1.RegisterAPIV1(r, apiv1.NewServer(d.Links, d.Reconciler))
		})
	}
	return r
}

type handlers struct {
	links usecase.PaymentLinkUseCase
	log   *zerolog.Logger
}

// userRef accepts either a JSON string or a JSON number, since Telegram ids are numeric.
type userRef string

func (u *userRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = userRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user_id must be a string or number")
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("user_id must be an integer")
	}
	*u = userRef(n.String())
	return nil
}

type createLinkRequest struct {
	UserID    userRef `json:"user_id"`
	ProductID string  `json:"product_id"`
	SKUID     string  `json:"sku_id"`
}

type linkResponse struct {
	PaymentURL    string `json:"payment_url"`
	PaymentLinkID string `json:"payment_link_id"`
	Status        string `json:"status"`
}

func toLinkResponse(l *model.PaymentLink) linkResponse {
	return linkResponse{PaymentURL: l.PaymentURL, PaymentLinkID: l.ProviderLinkID, Status: string(l.Status)}
}

func (h *handlers) createLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		productID = strings.TrimSpace(req.SKUID)
	}
	if req.UserID == "" || productID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "user_id and product_id are required"})
		return
	}

	link, err := h.links.CreateLink(r.Context(), string(req.UserID), productID)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLinkResponse(link))
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "payment_link_id")
	link, err := h.links.CheckStatus(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLinkResponse(link))
}

func (h *handlers) fail(ctx context.Context, w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code >= 500 {
		logging.With(ctx, h.log).Error().Err(err).Int("status", code).Msg("request failed")
	}
	writeJSON(w, code, errorBody{Error: publicMessage(code)})
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not found"
	case http.StatusUnprocessableEntity:
		return "invalid argument"
	case http.StatusTooManyRequests:
		return "too many requests"
	case http.StatusServiceUnavailable:
		return "payment provider unavailable"
	case http.StatusGatewayTimeout:
		return "timeout"
	}
	return "internal error"
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server owns the listening http.Server.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(port int, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

// Start blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
