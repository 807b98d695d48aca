package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"wechat/internal/errors"
	"wechat/internal/media"
	"wechat/internal/middleware"
	"wechat/internal/models"
	"wechat/internal/privacy"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// statusSource is the read side of the chat session.
type statusSource interface {
	UserID() string
	Conversations() []string
	Messages(contactID string) []models.Message
	ModerationCounts() map[string]int
	MediaState() media.State
	UploadProgress() media.UploadProgress
	Disconnected() <-chan struct{}
}

// flagLog is the read side of the moderation audit log.
type flagLog interface {
	RecentFlags(ctx context.Context, limit int) ([]models.FlagEvent, error)
	FlagsForContact(ctx context.Context, contactID string, limit int) ([]models.FlagEvent, error)
	TermTotals(ctx context.Context) (map[string]int, error)
}

type moderationInfo struct {
	Enabled   bool     `json:"enabled"`
	Threshold int      `json:"threshold,omitempty"`
	Terms     []string `json:"terms,omitempty"`
}

// Server is the local read-only status server.
type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	source     statusSource
	flags      flagLog
	moderation moderationInfo
	started    time.Time
	server     *http.Server
}

// NewServer builds the status router. flags may be nil when the audit log is
// disabled.
func NewServer(source statusSource, flags flagLog, moderation moderationInfo, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		source:     source,
		flags:      flags,
		moderation: moderation,
		started:    time.Now(),
	}
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.LocalOnly(s.logger))
	s.router.Use(middleware.ObservabilityMiddleware(s.logger, routeTemplate))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/conversations", s.handleConversations()).Methods(http.MethodGet)
	s.router.HandleFunc("/conversations/{contactID}", s.handleConversation()).Methods(http.MethodGet)
	s.router.HandleFunc("/moderation", s.handleModeration()).Methods(http.MethodGet)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("Starting status server")
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) connected() bool {
	select {
	case <-s.source.Disconnected():
		return false
	default:
		return true
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	User      string `json:"user"`
	Connected bool   `json:"connected"`
	Media     string `json:"media"`
	Upload    *int   `json:"upload_percent,omitempty"`
	UptimeSec int64  `json:"uptime_sec"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "ok",
			User:      privacy.MaskID(s.source.UserID()),
			Connected: s.connected(),
			Media:     s.source.MediaState().String(),
			UptimeSec: int64(time.Since(s.started).Seconds()),
		}
		if !resp.Connected {
			resp.Status = "disconnected"
		}
		if p := s.source.UploadProgress(); p.Uploading {
			pct := p.Percent()
			resp.Upload = &pct
		}
		s.writeJSON(w, r, http.StatusOK, resp)
	}
}

type conversationSummary struct {
	ContactID   string          `json:"contactId"`
	Messages    int             `json:"messages"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
}

func (s *Server) handleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := s.source.Conversations()
		out := make([]conversationSummary, 0, len(ids))
		for _, id := range ids {
			msgs := s.source.Messages(id)
			summary := conversationSummary{ContactID: id, Messages: len(msgs)}
			if len(msgs) > 0 {
				last := msgs[len(msgs)-1]
				summary.LastMessage = &last
			}
			out = append(out, summary)
		}
		s.writeJSON(w, r, http.StatusOK, out)
	}
}

func (s *Server) handleConversation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contactID := mux.Vars(r)["contactID"]
		msgs := s.source.Messages(contactID)
		if len(msgs) == 0 {
			s.writeError(w, r, errors.NewNotFoundError("conversation", contactID))
			return
		}
		s.writeJSON(w, r, http.StatusOK, msgs)
	}
}

type moderationResponse struct {
	moderationInfo
	Counts      map[string]int     `json:"counts"`
	Warning     bool               `json:"warning"`
	AuditTotals map[string]int     `json:"auditTotals,omitempty"`
	RecentFlags []models.FlagEvent `json:"recentFlags,omitempty"`
}

func (s *Server) handleModeration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := moderationResponse{
			moderationInfo: s.moderation,
			Counts:         s.source.ModerationCounts(),
		}
		if resp.Counts == nil {
			resp.Counts = map[string]int{}
		}
		for _, n := range resp.Counts {
			if s.moderation.Enabled && n >= s.moderation.Threshold {
				resp.Warning = true
			}
		}

		if s.flags != nil {
			limit := 20
			if v := r.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n <= 0 {
					s.writeError(w, r, errors.NewValidationError("limit", v, "must be a positive integer"))
					return
				}
				limit = n
			}

			totals, err := s.flags.TermTotals(r.Context())
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			var recent []models.FlagEvent
			if contact := r.URL.Query().Get("contact"); contact != "" {
				recent, err = s.flags.FlagsForContact(r.Context(), contact, limit)
			} else {
				recent, err = s.flags.RecentFlags(r.Context(), limit)
			}
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			resp.AuditTotals = totals
			resp.RecentFlags = recent
		}
		s.writeJSON(w, r, http.StatusOK, resp)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode status response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errors.Log(s.logger, err, "Status request failed")
	s.writeJSON(w, r, errors.HTTPStatusCode(err), map[string]string{
		"error": errors.GetUserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}
