// Package handlers serves the read API: drug aggregates, regimen listings and health.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/data"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
)

const queryTimeout = 10 * time.Second

// HTTPHandlerImpl implements interfaces.HTTPHandler.
type HTTPHandlerImpl struct {
	drugs     interfaces.DrugReader
	regimens  interfaces.RegimenReader
	validator interfaces.RequestValidator
	health    interfaces.HealthChecker
	startTime time.Time
}

// NewHTTPHandler creates a handler with injected read models.
func NewHTTPHandler(drugs interfaces.DrugReader, regimens interfaces.RegimenReader,
	validator interfaces.RequestValidator, health interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		drugs:     drugs,
		regimens:  regimens,
		validator: validator,
		health:    health,
		startTime: time.Now(),
	}
}

// HealthResponse fixes the JSON field order of the health endpoint.
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// RespondWithJSON writes payload as JSON with the given status code.
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}

// RespondWithError writes a JSON error body.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// respondWithStoreError maps store failures to 503 and anything else to 500.
func respondWithStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if data.IsUnavailable(err) {
		logging.Warn("Store unavailable", "path", r.URL.Path, "error", err)
		RespondWithError(w, http.StatusServiceUnavailable, "Case store is temporarily unavailable")
		return
	}
	logging.Error("Query failed", "path", r.URL.Path, "error", err)
	RespondWithError(w, http.StatusInternalServerError, "Query failed")
}

func (h *HTTPHandlerImpl) ageAndGender(w http.ResponseWriter, r *http.Request) (int, string, bool) {
	age, err := h.validator.ValidateAge(r.URL.Query().Get("age"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return 0, "", false
	}
	gender, err := h.validator.ValidateGender(r.URL.Query().Get("gender"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return 0, "", false
	}
	return age, gender, true
}

// ServeDrugs handles GET /api/drugs?age=&gender=. Results are sorted by drug name.
func (h *HTTPHandlerImpl) ServeDrugs(w http.ResponseWriter, r *http.Request) {
	age, gender, ok := h.ageAndGender(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	results, err := h.drugs.AggregateByAgeAndGender(ctx, age, gender)
	if err != nil {
		respondWithStoreError(w, r, err)
		return
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := strings.ToLower(results[i].DrugName), strings.ToLower(results[j].DrugName)
		if a != b {
			return a < b
		}
		return results[i].DrugID < results[j].DrugID
	})
	if results == nil {
		results = []entities.AggregateResult{}
	}
	RespondWithJSON(w, http.StatusOK, results)
}

// ServeRegimens handles GET /api/regimens?age=&gender=&drugId=.
func (h *HTTPHandlerImpl) ServeRegimens(w http.ResponseWriter, r *http.Request) {
	age, gender, ok := h.ageAndGender(w, r)
	if !ok {
		return
	}
	drugID, err := h.validator.ValidateDrugID(r.URL.Query().Get("drugId"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()
	results, err := h.regimens.ListByDrugAgeAndGender(ctx, drugID, age, gender)
	if err != nil {
		respondWithStoreError(w, r, err)
		return
	}
	if results == nil {
		results = []entities.RegimenResult{}
	}
	RespondWithJSON(w, http.StatusOK, results)
}

// HealthCheck handles GET /health.
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, code := h.health.HealthCheck(r.Context())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(h.startTime)

	RespondWithJSON(w, code, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}

// formatUptimeHuman formats a duration as "1d 2h 3m 4s", dropping leading zero units.
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))
	return strings.Join(parts, " ")
}
