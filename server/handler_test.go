package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/oracle"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/testutil"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/trial"
)

func setupTestHandler(t *testing.T) (chi.Router, *trial.Trial, *testutil.Clock, *oracle.Service) {
	t.Helper()

	clock := testutil.NewClock(time.Unix(1700000000, 0))
	_, oraclePriv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	oraclePub, err := oraclePriv.PublicKey()
	require.NoError(t, err)

	tr, err := trial.New(trial.Config{
		TrialConfig: testutil.NewTestConfig(),
		Coordinator: "coordinator",
		OracleKeys:  []crypto.PublicKey{oraclePub},
		Clock:       clock.Now,
	})
	require.NoError(t, err)

	svc, err := oracle.New(oracle.Config{SigningKey: oraclePriv, Resolver: tr.Vault()})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewTrialHandler(tr, "admin", "secret").RegisterRoutes(r)
	return r, tr, clock, svc
}

func postJSON(t *testing.T, router chi.Router, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, router chi.Router, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(w.Body).Decode(out))
	}
	return w
}

func TestHandler_Enroll(t *testing.T) {
	router, _, _, _ := setupTestHandler(t)

	w := postJSON(t, router, "/api/enroll", EnrollRequest{
		Identity: "alice", Age: 30, HealthScore: 50, VitalSigns: 120,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Out-of-range age maps to 400.
	w = postJSON(t, router, "/api/enroll", EnrollRequest{
		Identity: "bob", Age: 17, HealthScore: 50, VitalSigns: 120,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var status trial.PatientStatus
	w = getJSON(t, router, "/api/patients/alice", &status)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, status.Enrolled)
}

func TestHandler_TransitionTiming(t *testing.T) {
	router, _, clock, _ := setupTestHandler(t)

	// Premature transition maps to 409.
	w := postJSON(t, router, "/api/phase/transition", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	clock.Tick(time.Hour)
	w = postJSON(t, router, "/api/phase/transition", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "enrollment", resp["from"])
	require.Equal(t, "treatment", resp["to"])
}

func TestHandler_TerminateRequiresAuth(t *testing.T) {
	router, _, _, _ := setupTestHandler(t)

	body, err := json.Marshal(TerminateRequest{Caller: "coordinator"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/admin/terminate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("POST", "/admin/terminate", bytes.NewReader(body))
	req.SetBasicAuth("admin", "wrongpassword")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("POST", "/admin/terminate", bytes.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var phase map[string]string
	getJSON(t, router, "/api/phase", &phase)
	require.Equal(t, "analysis", phase["phase"])
}

func TestHandler_TerminateNonCoordinator(t *testing.T) {
	router, _, _, _ := setupTestHandler(t)

	body, err := json.Marshal(TerminateRequest{Caller: "mallory"})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/admin/terminate", bytes.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

// TestHandler_FullLifecycle drives the whole trial over HTTP, with the
// oracle service fulfilling the decryption request.
func TestHandler_FullLifecycle(t *testing.T) {
	router, tr, clock, svc := setupTestHandler(t)

	for _, p := range []EnrollRequest{
		{Identity: "A", Age: 30, HealthScore: 50, VitalSigns: 120},
		{Identity: "B", Age: 45, HealthScore: 60, VitalSigns: 118},
		{Identity: "C", Age: 60, HealthScore: 70, VitalSigns: 122},
	} {
		require.Equal(t, http.StatusOK, postJSON(t, router, "/api/enroll", p).Code)
	}

	clock.Tick(time.Hour)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/phase/transition", nil).Code)

	for week := 1; week <= 4; week++ {
		for _, m := range []MeasurementRequest{
			{Identity: "A", Effectiveness: 85, SideEffects: 2, Biomarkers: 10, Week: week},
			{Identity: "B", Effectiveness: 60, SideEffects: 1, Biomarkers: 11, Week: week},
			{Identity: "C", Effectiveness: 90, SideEffects: 3, Biomarkers: 12, Week: week},
		} {
			require.Equal(t, http.StatusOK, postJSON(t, router, "/api/measurements", m).Code)
		}
	}

	// Duplicate week maps to 400.
	w := postJSON(t, router, "/api/measurements", MeasurementRequest{
		Identity: "A", Effectiveness: 85, SideEffects: 2, Biomarkers: 10, Week: 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	clock.Tick(time.Hour)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/phase/transition", nil).Code)
	clock.Tick(time.Hour)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/phase/transition", nil).Code)

	var outstanding outstandingRequestResponse
	getJSON(t, router, "/api/request", &outstanding)
	require.True(t, outstanding.Outstanding)
	require.Equal(t, "pending", outstanding.State)
	require.Len(t, outstanding.Request.Handles, 3)

	values, sigs, err := svc.Fulfill(*outstanding.Request)
	require.NoError(t, err)

	w = postJSON(t, router, "/api/oracle/results", protocol.DecryptionCallback{
		Batch: protocol.PlaintextBatch{
			RequestID: outstanding.Request.RequestID,
			Values:    values,
		},
		Signatures: sigs,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var results trial.ResultsView
	getJSON(t, router, "/api/results/analysis", &results)
	require.True(t, results.Completed)
	require.True(t, results.Calculated)
	require.Equal(t, 3, results.ParticipantCount)

	result := tr.Result()
	require.NotNil(t, result)
	avg, ok := tr.Vault().Resolve(result.TreatmentAverageHandle)
	require.True(t, ok)
	require.Equal(t, uint64(87), avg)

	var events []trial.Event
	getJSON(t, router, "/api/events?type=results_published", &events)
	require.Len(t, events, 1)
}

func TestHandler_OracleResultsBadSignature(t *testing.T) {
	router, _, clock, _ := setupTestHandler(t)

	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/enroll", EnrollRequest{
		Identity: "A", Age: 30, HealthScore: 50, VitalSigns: 120,
	}).Code)
	clock.Tick(time.Hour)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/phase/transition", nil).Code)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/measurements", MeasurementRequest{
		Identity: "A", Effectiveness: 85, SideEffects: 2, Biomarkers: 10, Week: 4,
	}).Code)
	clock.Tick(time.Hour)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/phase/transition", nil).Code)
	clock.Tick(time.Hour)
	require.Equal(t, http.StatusOK, postJSON(t, router, "/api/phase/transition", nil).Code)

	var outstanding outstandingRequestResponse
	getJSON(t, router, "/api/request", &outstanding)
	require.True(t, outstanding.Outstanding)

	// Sign with a key the ledger never registered.
	_, roguePriv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	sig, err := protocol.SignBatch(roguePriv, outstanding.Request.RequestID, []uint64{85})
	require.NoError(t, err)

	w := postJSON(t, router, "/api/oracle/results", protocol.DecryptionCallback{
		Batch: protocol.PlaintextBatch{
			RequestID: outstanding.Request.RequestID,
			Values:    []uint64{85},
		},
		Signatures: protocol.SignatureSet{sig},
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_StatusAndEvents(t *testing.T) {
	router, _, _, _ := setupTestHandler(t)

	var status trial.Status
	w := getJSON(t, router, "/api/status", &status)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "enrollment", status.PhaseName)
	require.Zero(t, status.ParticipantCount)

	var events []trial.Event
	w = getJSON(t, router, "/api/events", &events)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, events)

	// Unknown phase name maps to 400.
	w = getJSON(t, router, "/api/results/nonsense", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
