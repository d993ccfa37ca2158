package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/trial"
)

// TrialHandler registers the coordinator's HTTP API on a router. Public
// routes cover enrollment, measurements, phase management, views and the
// oracle callback; the emergency-termination route sits behind basic auth.
type TrialHandler struct {
	Trial *trial.Trial

	// AdminUser/AdminPass protect the /admin subtree. Both empty leaves
	// the subtree unprotected, matching a coordinator-less dev setup.
	AdminUser string
	AdminPass string
}

func NewTrialHandler(t *trial.Trial, adminUser, adminPass string) *TrialHandler {
	return &TrialHandler{Trial: t, AdminUser: adminUser, AdminPass: adminPass}
}

func (h *TrialHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/enroll", h.handleEnroll)
	r.Post("/api/measurements", h.handleSubmitMeasurement)
	r.Post("/api/phase/transition", h.handleTransition)
	r.Post("/api/oracle/results", h.handleOracleResults)

	r.Get("/api/status", h.handleStatus)
	r.Get("/api/phase", h.handlePhase)
	r.Get("/api/patients/{identity}", h.handlePatientStatus)
	r.Get("/api/patients/{identity}/measurements", h.handleMeasurementCount)
	r.Get("/api/results/{phase}", h.handleResults)
	r.Get("/api/request", h.handleOutstandingRequest)
	r.Get("/api/events", h.handleEvents)

	r.Route("/admin", func(admin chi.Router) {
		if h.AdminUser != "" || h.AdminPass != "" {
			admin.Use(middleware.BasicAuth("trial admin", map[string]string{
				h.AdminUser: h.AdminPass,
			}))
		}
		admin.Post("/terminate", h.handleTerminate)
	})
}

// writeError maps the trial's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch protocol.KindOf(err) {
	case protocol.ValidationError:
		status = http.StatusBadRequest
	case protocol.AuthorizationError, protocol.VerificationError:
		status = http.StatusForbidden
	case protocol.TimingError:
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// EnrollRequest is the enrollment payload.
type EnrollRequest struct {
	Identity    trial.Identity `json:"identity"`
	Age         uint64         `json:"age"`
	HealthScore uint64         `json:"health_score"`
	VitalSigns  uint64         `json:"vital_signs"`
}

func (h *TrialHandler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req, err := protocol.DecodeMessage[EnrollRequest](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Trial.Enroll(req.Identity, req.Age, req.HealthScore, req.VitalSigns); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"enrolled": true, "identity": req.Identity})
}

// MeasurementRequest is the weekly measurement payload.
type MeasurementRequest struct {
	Identity      trial.Identity `json:"identity"`
	Effectiveness uint64         `json:"effectiveness"`
	SideEffects   uint64         `json:"side_effects"`
	Biomarkers    uint64         `json:"biomarkers"`
	Week          int            `json:"week"`
}

func (h *TrialHandler) handleSubmitMeasurement(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req, err := protocol.DecodeMessage[MeasurementRequest](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Trial.SubmitMeasurement(req.Identity, req.Effectiveness, req.SideEffects, req.Biomarkers, req.Week); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"recorded": true, "week": req.Week})
}

func (h *TrialHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.Trial.TransitionPhase()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"from": from.String(), "to": to.String()})
}

func (h *TrialHandler) handleOracleResults(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	callback, err := protocol.DecodeMessage[protocol.DecryptionCallback](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.Trial.ProcessResults(callback.Batch.RequestID, callback.Batch.Values, callback.Signatures)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"verified": true, "request_id": callback.Batch.RequestID})
}

func (h *TrialHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Trial.GetStatus())
}

func (h *TrialHandler) handlePhase(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"phase": h.Trial.GetPhaseName()})
}

func (h *TrialHandler) handlePatientStatus(w http.ResponseWriter, r *http.Request) {
	id := trial.Identity(chi.URLParam(r, "identity"))
	writeJSON(w, h.Trial.GetPatientStatus(id))
}

func (h *TrialHandler) handleMeasurementCount(w http.ResponseWriter, r *http.Request) {
	id := trial.Identity(chi.URLParam(r, "identity"))
	writeJSON(w, map[string]int{"measurement_count": h.Trial.GetMeasurementCount(id)})
}

func (h *TrialHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "phase")
	phase, ok := protocol.ParsePhase(name)
	if !ok {
		writeError(w, protocol.Errorf(protocol.ValidationError, "unknown phase %q", name))
		return
	}
	writeJSON(w, h.Trial.GetResults(phase))
}

// outstandingRequestResponse deliberately exposes only opaque handles;
// an oracle resolves them out of band.
type outstandingRequestResponse struct {
	Outstanding bool                        `json:"outstanding"`
	State       string                      `json:"state,omitempty"`
	Request     *protocol.DecryptionRequest `json:"request,omitempty"`
}

func (h *TrialHandler) handleOutstandingRequest(w http.ResponseWriter, r *http.Request) {
	req, state, ok := h.Trial.OutstandingRequest()
	if !ok {
		writeJSON(w, outstandingRequestResponse{Outstanding: false})
		return
	}
	writeJSON(w, outstandingRequestResponse{
		Outstanding: true,
		State:       state.String(),
		Request:     &req,
	})
}

func (h *TrialHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []trial.Event
	if typ := r.URL.Query().Get("type"); typ != "" {
		events = h.Trial.Events().ByType(trial.EventType(typ))
	} else {
		events = h.Trial.Events().All()
	}
	if events == nil {
		events = []trial.Event{}
	}
	writeJSON(w, events)
}

// TerminateRequest names the caller requesting emergency termination.
type TerminateRequest struct {
	Caller trial.Identity `json:"caller"`
}

func (h *TrialHandler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req, err := protocol.DecodeMessage[TerminateRequest](r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Trial.EmergencyTerminate(req.Caller); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"terminated": true, "at": time.Now().UTC()})
}
