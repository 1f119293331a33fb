package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sendqueue/internal/events"
	"sendqueue/internal/models"
	"sendqueue/internal/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	apperrors "sendqueue/internal/errors"
)

type Server struct {
	router      *mux.Router
	logger      *logrus.Logger
	queue       *service.QueueManager
	coordinator *service.SyncCoordinator
	bus         *events.Bus
	online      service.OnlineChecker
	server      *http.Server
	cfg         models.ServerConfig
}

func NewServer(cfg models.ServerConfig, queue *service.QueueManager, coordinator *service.SyncCoordinator, bus *events.Bus, online service.OnlineChecker, logger *logrus.Logger) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		logger:      logger,
		queue:       queue,
		coordinator: coordinator,
		bus:         bus,
		online:      online,
		cfg:         cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/messages", s.handleEnqueue()).Methods(http.MethodPost)
	api.HandleFunc("/queue", s.handleListQueue()).Methods(http.MethodGet)
	api.HandleFunc("/queue", s.handleClearQueue()).Methods(http.MethodDelete)
	api.HandleFunc("/queue/failed", s.handleListFailed()).Methods(http.MethodGet)
	api.HandleFunc("/queue/count", s.handleCount()).Methods(http.MethodGet)
	api.HandleFunc("/queue/{id:[0-9]+}", s.handleRemove()).Methods(http.MethodDelete)
	api.HandleFunc("/sync", s.handleSync()).Methods(http.MethodPost)
	api.HandleFunc("/events", s.handleEvents()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type enqueueRequest struct {
	ChatID  string          `json:"chatId"`
	Payload json.RawMessage `json:"payload"`
}

type enqueueResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"online": s.online.Online(),
		})
	}
}

func (s *Server) handleEnqueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		id, err := s.queue.Enqueue(r.Context(), req.ChatID, req.Payload)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, enqueueResponse{ID: id, Status: string(models.MessageStatusPending)})
	}
}

func (s *Server) handleListQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.queue.List(r.Context(), r.URL.Query().Get("chatId"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) handleListFailed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.queue.ListFailed(r.Context(), r.URL.Query().Get("chatId"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := s.queue.Count(r.Context(), r.URL.Query().Get("chatId"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}

func (s *Server) handleRemove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid queue id"))
			return
		}

		if err := s.queue.Remove(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleClearQueue removes all entries for one chat when chatId is given,
// otherwise wipes the entire queue.
func (s *Server) handleClearQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := r.URL.Query().Get("chatId")

		var cleared int64
		var err error
		if chatID != "" {
			cleared, err = s.queue.ClearChat(r.Context(), chatID)
		} else {
			cleared, err = s.queue.ClearAll(r.Context())
		}
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
	}
}

func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.coordinator.SyncQueue(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}

		status := http.StatusOK
		if !result.Success {
			// The sync was declined rather than attempted.
			status = http.StatusConflict
		}
		s.writeJSON(w, status, result)
	}
}

// handleEvents streams queue lifecycle events to a websocket client. The
// subscription lives for the duration of the connection.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to accept websocket connection")
			return
		}
		defer conn.Close(websocket.StatusInternalError, "connection closed")

		ctx := r.Context()
		eventCh := make(chan events.Event, 64)
		unsubscribe := s.bus.Subscribe(func(evt events.Event) {
			select {
			case eventCh <- evt:
			default:
				// Slow consumer; drop rather than block the bus.
			}
		})
		defer unsubscribe()

		s.logger.Debug("Event stream client connected")

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "server shutting down")
				return
			case evt := <-eventCh:
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := wsjson.Write(writeCtx, conn, evt)
				cancel()
				if err != nil {
					s.logger.WithError(err).Debug("Event stream client disconnected")
					return
				}
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}

	s.writeJSON(w, status, map[string]string{
		"error": apperrors.GetUserMessage(err),
	})
}
