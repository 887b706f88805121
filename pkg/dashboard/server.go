package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/uhyunpark/bookwatch/pkg/client"
	"github.com/uhyunpark/bookwatch/pkg/journal"
	"github.com/uhyunpark/bookwatch/pkg/market"
	"github.com/uhyunpark/bookwatch/pkg/order"
	"github.com/uhyunpark/bookwatch/pkg/store"
)

const defaultJournalLimit = 50

// DefaultAllowedOrigins applies when no usable origin is configured. A
// wildcard is never honoured because credentials are allowed.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

// Server exposes the synchronized view and the order form to a browser
// front end over REST and WebSocket.
type Server struct {
	store   *store.Store
	form    *order.Controller
	journal journal.Journal
	metrics prometheus.Gatherer

	router *mux.Router
	hub    *Hub
	logger *zap.SugaredLogger

	allowedOrigins []string
}

// NewServer registers a store observer that pushes every applied snapshot to
// subscribers of the "view" channel. gatherer may be nil to disable /metrics.
func NewServer(st *store.Store, form *order.Controller, j journal.Journal, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Server {
	if j == nil {
		j = journal.NewNopJournal()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		store:   st,
		form:    form,
		journal: j,
		metrics: gatherer,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		logger:  logger,
	}
	s.setupRoutes()

	st.OnApply(func(snap store.Snapshot) {
		s.hub.BroadcastToChannel(ChannelView, viewMessage(snap))
	})
	return s
}

// SetAllowedOrigins configures CORS for Handler. Empty means DefaultAllowedOrigins.
func (s *Server) SetAllowedOrigins(origins []string) { s.allowedOrigins = origins }

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/view", s.handleGetView).Methods("GET")

	s.router.HandleFunc("/form", s.handleGetForm).Methods("GET")
	s.router.HandleFunc("/form", s.handleEditForm).Methods("POST")
	s.router.HandleFunc("/form/submit", s.handleSubmit).Methods("POST")
	s.router.HandleFunc("/orders/{orderId}/cancel", s.handleCancel).Methods("POST")

	s.router.HandleFunc("/journal", s.handleGetJournal).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})).Methods("GET")
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler is the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	origins := lo.Compact(lo.Map(s.allowedOrigins, func(o string, _ int) string { return strings.TrimSpace(o) }))
	if len(origins) == 0 || lo.Contains(origins, "*") {
		origins = DefaultAllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves on addr until ctx is done, then shuts the listener down and
// closes all WebSocket clients.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Infow("dashboard_listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.store.Snapshot())
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.form.View())
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	var req FormEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.Side != nil {
		side, err := market.ParseSide(*req.Side)
		if err == nil {
			err = s.form.SetSide(side)
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid side", err.Error())
			return
		}
	}
	if req.Price != nil {
		s.form.SetPrice(*req.Price)
	}
	if req.Quantity != nil {
		s.form.SetQuantity(*req.Quantity)
	}

	s.respondForm(w, http.StatusOK, "")
}

// Submit and cancel are detached from the request context so a client
// disconnect cannot abort an order that is already on the wire.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	_, err := s.form.Submit(context.WithoutCancel(r.Context()))
	if err == nil {
		s.respondForm(w, http.StatusOK, "")
		return
	}

	var invalid *client.ValidationError
	switch {
	case errors.Is(err, order.ErrSubmitInFlight):
		s.respondForm(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalid):
		s.respondForm(w, http.StatusBadRequest, err.Error())
	default:
		s.respondForm(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	if _, err := s.form.Cancel(context.WithoutCancel(r.Context()), orderID); err != nil {
		s.respondForm(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondForm(w, http.StatusOK, "")
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, JournalResponse{Entries: entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":    "ok",
		"seq":       s.store.LastSeq(),
		"wsClients": s.hub.ClientCount(),
	})
}

// respondForm writes the controller state and pushes it to "form" subscribers.
func (s *Server) respondForm(w http.ResponseWriter, status int, errMsg string) {
	view := s.form.View()
	s.hub.BroadcastToChannel(ChannelForm, formMessage(view))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(SubmitResponse{Form: view, Error: errMsg})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
