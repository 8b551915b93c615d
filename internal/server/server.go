// Package server exposes the parse pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodlog/internal/common/errors"
	"foodlog/internal/common/logger"
	"foodlog/internal/models"
	"foodlog/internal/nutrition/units"
	"foodlog/internal/pipeline"
)

// Parser is the pipeline surface the server depends on.
type Parser interface {
	Parse(ctx context.Context, req pipeline.ParseRequest) (*models.ParseResult, error)
}

type Server struct {
	parser Parser
	logger logger.Logger
}

func New(parser Parser, log logger.Logger) *Server {
	return &Server{parser: parser, logger: log}
}

// Router builds the HTTP routes: the parse endpoint plus health and metrics.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/food-log/parse", s.handleParse)
	mux.HandleFunc("/health", handleStatus("healthy"))
	mux.HandleFunc("/ready", handleStatus("ready"))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type parseRequest struct {
	Text            string `json:"text"`
	CurrentDateTime string `json:"current_datetime"`
	Timezone        string `json:"timezone"`
	CountryISO2     string `json:"country_iso2"`
	UnitSystem      string `json:"unit_system"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.NewInvalidInputError("only POST is supported"))
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.NewInvalidInputError("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.NewInvalidInputError("text is required"))
		return
	}

	result, err := s.parser.Parse(r.Context(), pipeline.ParseRequest{
		Text:            req.Text,
		CurrentDateTime: req.CurrentDateTime,
		Timezone:        req.Timezone,
		CountryISO2:     req.CountryISO2,
	})
	if err != nil {
		fields := map[string]interface{}{"error": err.Error()}
		status := http.StatusBadGateway
		if stdErr, ok := err.(*errors.StandardError); ok {
			fields["code"] = string(stdErr.Code)
			fields["category"] = errors.GetErrorCategory(stdErr.Code)
			switch {
			case stdErr.Code == errors.ErrCodeInvalidInput:
				status = http.StatusBadRequest
			case errors.IsRetryableErrorCode(stdErr.Code):
				// Transient model or provider trouble; the client may retry.
				status = http.StatusServiceUnavailable
				w.Header().Set("Retry-After", "1")
			}
		}
		s.logger.Error("parse request failed", fields)
		writeError(w, status, err)
		return
	}

	if system, ok := parseUnitSystem(req.UnitSystem); ok {
		for i := range result.Items {
			result.Items[i] = units.ConvertFoodItem(result.Items[i], system)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func parseUnitSystem(s string) (units.UnitSystem, bool) {
	switch s {
	case string(units.SystemMetric):
		return units.SystemMetric, true
	case string(units.SystemImperial):
		return units.SystemImperial, true
	default:
		return "", false
	}
}

func handleStatus(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	if stdErr, ok := err.(*errors.StandardError); ok {
		body.Error = stdErr.Message
		body.Code = string(stdErr.Code)
		body.Details = stdErr.Details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
