package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/urbanmobility/coarse-eta/internal/eta"
	"github.com/urbanmobility/coarse-eta/internal/observability"
)

// ETAService answers one query; failures arrive as the -1 sentinel, never as
// an error.
type ETAService interface {
	ETARequest(ctx context.Context, q eta.Query) (float64, eta.Timing)
}

type etaResponse struct {
	ETA    float64    `json:"eta"`
	Timing eta.Timing `json:"timing"`
}

// HandleETA parses `GET /eta?slon=&slat=&dlon=&dlat=&t=` and answers with
// the final ETA in seconds, -1 when the query could not be answered.
func HandleETA(logger *slog.Logger, svc ETAService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		q, err := ParseETAQuery(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/eta", sw.code, time.Since(start).Seconds())
			return
		}

		result, timing := svc.ETARequest(r.Context(), q)

		sw.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(sw).Encode(etaResponse{ETA: result, Timing: timing}); err != nil {
			logger.Error("write response", "err", err)
		}
		observability.ObserveHTTP(r.Method, "/eta", sw.code, time.Since(start).Seconds())
	}
}

func ParseETAQuery(r *http.Request) (eta.Query, error) {
	var q eta.Query
	var err error

	if q.StartLon, err = queryFloat(r, "slon"); err != nil {
		return eta.Query{}, err
	}
	if q.StartLat, err = queryFloat(r, "slat"); err != nil {
		return eta.Query{}, err
	}
	if q.EndLon, err = queryFloat(r, "dlon"); err != nil {
		return eta.Query{}, err
	}
	if q.EndLat, err = queryFloat(r, "dlat"); err != nil {
		return eta.Query{}, err
	}

	q.Departure = strings.TrimSpace(r.URL.Query().Get("t"))
	if q.Departure == "" {
		return eta.Query{}, errors.New("missing required parameter: t")
	}
	return q, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return v, nil
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
