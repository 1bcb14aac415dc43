package courtdata

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ecourts-backend/lib/scrapers/ecourts"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: msg, Data: data})
}

// writeFailure maps engine errors onto http statuses. Validation
// problems are the caller's fault; parse failures mean the portal
// answered with something we don't understand, which is a bad gateway
// from the client's point of view.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ecourts.ValidationError
	var parseErr *ecourts.ParseError
	var rejected *ecourts.CaptchaRejectedError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusUnprocessableEntity, validationErr.Error(), nil)
	case errors.As(err, &rejected):
		writeError(w, http.StatusBadRequest, rejected.Reason, map[string]any{
			"next_captcha": rejected.NextChallenge,
		})
	case errors.Is(err, ecourts.ErrSessionExpired):
		writeError(w, http.StatusConflict, "portal session expired, request a new captcha", nil)
	case ecourts.IsPortalUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "portal is unavailable, try again later", nil)
	case errors.As(err, &parseErr):
		slog.ErrorContext(r.Context(), "portal response unparseable",
			"path", r.URL.Path, "reason", parseErr.Reason)
		writeError(w, http.StatusBadGateway, "portal returned an unexpected response", nil)
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed request body: "+err.Error(), nil)
		return false
	}
	return true
}

// Routes builds the REST surface over the service.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := s.Healthy(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error(), nil)
				return
			}
			writeData(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		api.Get("/states", func(w http.ResponseWriter, r *http.Request) {
			nodes, err := s.States(r.Context())
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, nodes)
		})

		api.Get("/districts/{state}", func(w http.ResponseWriter, r *http.Request) {
			nodes, err := s.Districts(r.Context(), chi.URLParam(r, "state"))
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, nodes)
		})

		api.Get("/court-complexes/{state}/{district}", func(w http.ResponseWriter, r *http.Request) {
			nodes, err := s.CourtComplexes(r.Context(),
				chi.URLParam(r, "state"), chi.URLParam(r, "district"))
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, nodes)
		})

		api.Get("/courts/{state}/{district}/{complex}", func(w http.ResponseWriter, r *http.Request) {
			nodes, err := s.Courts(r.Context(),
				chi.URLParam(r, "state"),
				chi.URLParam(r, "district"),
				chi.URLParam(r, "complex"))
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, nodes)
		})

		api.Post("/search/cnr", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				CNR          string `json:"cnr"`
				StateCode    string `json:"state_code"`
				DistrictCode string `json:"district_code"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			result, err := s.SearchCNR(r.Context(), body.CNR, body.StateCode, body.DistrictCode)
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, result)
		})

		api.Post("/search/case", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				StateCode    string `json:"state_code"`
				DistrictCode string `json:"district_code"`
				CourtCode    string `json:"court_code"`
				CaseType     string `json:"case_type"`
				CaseNumber   string `json:"case_number"`
				CaseYear     string `json:"case_year"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			result, err := s.SearchDetails(r.Context(), ecourts.CaseDetailsQuery{
				StateCode:    body.StateCode,
				DistrictCode: body.DistrictCode,
				CourtCode:    body.CourtCode,
				CaseType:     body.CaseType,
				CaseNumber:   body.CaseNumber,
				CaseYear:     body.CaseYear,
			})
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, result)
		})

		api.Get("/cause-list/captcha", func(w http.ResponseWriter, r *http.Request) {
			challenge, err := s.NewCaptcha(r.Context())
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, challenge)
		})

		api.Post("/cause-list", func(w http.ResponseWriter, r *http.Request) {
			var params CauseListParams
			if !decodeBody(w, r, &params) {
				return
			}
			result, err := s.CauseList(r.Context(), params)
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			writeData(w, http.StatusOK, result)
		})

		api.Get("/download/pdf", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			body, err := s.DownloadPDF(r.Context(), ecourts.CauseListPDFRequest{
				StateCode:    q.Get("state"),
				DistrictCode: q.Get("district"),
				ComplexCode:  q.Get("complex"),
				CourtCode:    q.Get("court"),
				Date:         q.Get("date"),
			})
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `attachment; filename="cause_list.pdf"`)
			w.Write(body)
		})
	})

	return r
}
