package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	partyservice "chipsplit/contexts/game-session/party-service"
	partyerrors "chipsplit/contexts/game-session/party-service/domain/errors"
	partyhttp "chipsplit/contexts/game-session/party-service/transport/http"

	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "chipsplit/internal/platform/httpserver/docs"
)

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
	addr    string
	party   partyservice.Module
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	EnableSwagger  bool
}

func New(party partyservice.Module, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   opts.Addr,
		party:  party,
	}
	s.registerRoutes(opts.EnableSwagger)

	// The browser frontend uploads from its own origin; keep credentials on
	// and origins explicit.
	s.handler = cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(s.mux)

	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.handler)
}

// Handler exposes the fully wired handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) registerRoutes(enableSwagger bool) {
	if enableSwagger {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /v1/parties", s.handleCreateParty)
	s.mux.HandleFunc("POST /v1/parties/{code}/join", s.handleJoinParty)
	s.mux.HandleFunc("POST /v1/parties/{code}/submissions", s.handleSubmit)
	s.mux.HandleFunc("GET /v1/parties/{code}", s.handlePartyView)
	s.mux.HandleFunc("POST /v1/parties/{code}/end", s.handleEndParty)
	s.mux.HandleFunc("GET /v1/parties/{code}/settlement", s.handleSettlement)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req partyhttp.CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePartyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.party.Handler.CreatePartyHandler(r.Context(), req)
	if err != nil {
		writePartyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleJoinParty(w http.ResponseWriter, r *http.Request) {
	var req partyhttp.JoinPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePartyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.party.Handler.JoinPartyHandler(r.Context(), r.PathValue("code"), req)
	if err != nil {
		writePartyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req partyhttp.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePartyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.party.Handler.SubmitHandler(r.Context(), r.PathValue("code"), req)
	if err != nil {
		writePartyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handlePartyView(w http.ResponseWriter, r *http.Request) {
	resp, err := s.party.Handler.PartyViewHandler(r.Context(), r.PathValue("code"))
	if err != nil {
		writePartyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndParty(w http.ResponseWriter, r *http.Request) {
	var req partyhttp.EndPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePartyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.party.Handler.EndPartyHandler(r.Context(), r.PathValue("code"), req)
	if err != nil {
		writePartyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	resp, err := s.party.Handler.SettlementHandler(r.Context(), r.PathValue("code"))
	if err != nil {
		writePartyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePartyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, partyerrors.ErrInvalidInput):
		writePartyError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, partyerrors.ErrPartyNotFound):
		writePartyError(w, http.StatusNotFound, "party_not_found", err.Error())
	case errors.Is(err, partyerrors.ErrPlayerNotFound):
		writePartyError(w, http.StatusNotFound, "player_not_found", err.Error())
	case errors.Is(err, partyerrors.ErrSettlementNotFound):
		writePartyError(w, http.StatusNotFound, "settlement_not_found", err.Error())
	case errors.Is(err, partyerrors.ErrPartyClosed):
		writePartyError(w, http.StatusConflict, "party_closed", err.Error())
	case errors.Is(err, partyerrors.ErrSettlementInProgress):
		writePartyError(w, http.StatusConflict, "settlement_in_progress", err.Error())
	case errors.Is(err, partyerrors.ErrHostTokenMismatch):
		writePartyError(w, http.StatusForbidden, "host_token_invalid", err.Error())
	case errors.Is(err, partyerrors.ErrCodeExhausted):
		writePartyError(w, http.StatusServiceUnavailable, "code_exhausted", err.Error())
	default:
		writePartyError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePartyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, partyhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
