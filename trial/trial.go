package trial

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// Config assembles a Trial's collaborators.
type Config struct {
	TrialConfig *protocol.TrialConfig

	// Coordinator is the only identity allowed to terminate the trial
	// early.
	Coordinator Identity

	// OracleKeys are the trusted verification keys for callback
	// signature sets.
	OracleKeys []crypto.PublicKey

	// Clock overrides the time source; nil defaults to time.Now.
	Clock func() time.Time

	Log  *slog.Logger
	Sink EventSink
}

// Trial is the coordinator facade over the vault, capability ledger,
// participant registry, phase clock, oracle protocol and aggregation
// engine. Every public operation commits fully or not at all against the
// single serialized trial state.
type Trial struct {
	mu sync.Mutex

	cfg         *protocol.TrialConfig
	coordinator Identity
	log         *slog.Logger

	phases   *protocol.PhaseClock
	vault    *Vault
	ledger   *CapabilityLedger
	registry *Registry
	events   *EventLog

	request *PendingRequest
	result  *TrialResult
}

// New creates a trial in the Enrollment phase.
func New(cfg Config) (*Trial, error) {
	if cfg.TrialConfig == nil {
		cfg.TrialConfig = protocol.DefaultTrialConfig()
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	vault, err := NewVault()
	if err != nil {
		return nil, err
	}

	ledger := NewCapabilityLedger()
	for _, pk := range cfg.OracleKeys {
		ledger.RegisterOracleKey(pk)
	}

	return &Trial{
		cfg:         cfg.TrialConfig,
		coordinator: cfg.Coordinator,
		log:         cfg.Log,
		phases:      protocol.NewPhaseClock(cfg.TrialConfig.PhaseDuration, cfg.Clock),
		vault:       vault,
		ledger:      ledger,
		registry:    NewRegistry(),
		events:      NewEventLog(cfg.Log, cfg.Sink),
	}, nil
}

// Vault exposes the opaque value store for the oracle service and
// viewer-side tooling.
func (t *Trial) Vault() *Vault { return t.vault }

// Ledger exposes the capability ledger read-side.
func (t *Trial) Ledger() *CapabilityLedger { return t.ledger }

// Events exposes the append-only event log.
func (t *Trial) Events() *EventLog { return t.events }

// Enroll creates the participant record for an identity. Legal only
// during Enrollment, once per identity, with age in [18,80] and health
// score in [0,100]. All four stored values receive processor grants; the
// participant receives viewer grants on everything except the
// treatment-group handle.
func (t *Trial) Enroll(id Identity, age, healthScore, vitalSigns uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if phase := t.phases.Current(); phase != protocol.PhaseEnrollment {
		return protocol.Errorf(protocol.ValidationError,
			"enrollment closed in phase %s", phase)
	}
	if t.registry.Enrolled(id) {
		return protocol.Errorf(protocol.ValidationError, "already enrolled: %s", id)
	}
	if age < protocol.MinAge || age > protocol.MaxAge {
		return protocol.Errorf(protocol.ValidationError, "invalid age %d", age)
	}
	if healthScore > protocol.MaxHealthScore {
		return protocol.Errorf(protocol.ValidationError, "invalid health score %d", healthScore)
	}

	ageHandle, err := t.vault.Encrypt(age, crypto.Width8)
	if err != nil {
		return err
	}
	healthHandle, err := t.vault.Encrypt(healthScore, crypto.Width8)
	if err != nil {
		return err
	}
	vitalsHandle, err := t.vault.Encrypt(vitalSigns, crypto.Width64)
	if err != nil {
		return err
	}
	groupHandle, err := t.vault.RandomOpaque(crypto.Width8)
	if err != nil {
		return err
	}

	t.ledger.GrantProcessor(ageHandle)
	t.ledger.GrantProcessor(healthHandle)
	t.ledger.GrantProcessor(vitalsHandle)
	t.ledger.GrantProcessor(groupHandle)

	// The group handle deliberately receives no viewer grant: blinding.
	t.ledger.GrantViewer(ageHandle, id)
	t.ledger.GrantViewer(healthHandle, id)
	t.ledger.GrantViewer(vitalsHandle, id)

	now := t.phases.Now()
	p := &Participant{
		Identity:          id,
		Enrolled:          true,
		Consented:         true,
		EnrolledAt:        now,
		AgeHandle:         ageHandle,
		HealthScoreHandle: healthHandle,
		GroupHandle:       groupHandle,
		VitalSignsHandle:  vitalsHandle,
	}
	t.registry.add(p)

	t.events.Append(EventEnrollment, now, EnrollmentEvent{Identity: id, Index: p.Index})
	return nil
}

// SubmitMeasurement records one week's measurement. Legal only during
// Treatment, for enrolled identities, with effectiveness in [0,100],
// side effects in [0,10], week in [1,12], at most once per
// (identity, week). Only the submitter gains a viewer grant, and only on
// the effectiveness handle.
func (t *Trial) SubmitMeasurement(id Identity, effectiveness, sideEffects, biomarkers uint64, week int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if phase := t.phases.Current(); phase != protocol.PhaseTreatment {
		return protocol.Errorf(protocol.ValidationError,
			"measurements closed in phase %s", phase)
	}
	if !t.registry.Enrolled(id) {
		return protocol.Errorf(protocol.ValidationError, "not enrolled: %s", id)
	}
	if effectiveness > protocol.MaxEffectiveness {
		return protocol.Errorf(protocol.ValidationError, "invalid effectiveness %d", effectiveness)
	}
	if sideEffects > protocol.MaxSideEffects {
		return protocol.Errorf(protocol.ValidationError, "invalid side effects %d", sideEffects)
	}
	if week < protocol.MinWeek || week > protocol.MaxWeek {
		return protocol.Errorf(protocol.ValidationError, "invalid week %d", week)
	}
	if existing := t.registry.Measurement(id, week); existing != nil && existing.Valid {
		return protocol.Errorf(protocol.ValidationError,
			"duplicate measurement for %s week %d", id, week)
	}

	effHandle, err := t.vault.Encrypt(effectiveness, crypto.Width32)
	if err != nil {
		return err
	}
	sideHandle, err := t.vault.Encrypt(sideEffects, crypto.Width8)
	if err != nil {
		return err
	}
	bioHandle, err := t.vault.Encrypt(biomarkers, crypto.Width64)
	if err != nil {
		return err
	}

	t.ledger.GrantProcessor(effHandle)
	t.ledger.GrantProcessor(sideHandle)
	t.ledger.GrantProcessor(bioHandle)

	// Only the submitter may ever view, and only the effectiveness score.
	t.ledger.GrantViewer(effHandle, id)

	now := t.phases.Now()
	t.registry.addMeasurement(&Measurement{
		Identity:            id,
		Week:                week,
		SubmittedAt:         now,
		Valid:               true,
		EffectivenessHandle: effHandle,
		SideEffectsHandle:   sideHandle,
		BiomarkersHandle:    bioHandle,
	})

	t.events.Append(EventMeasurement, now, MeasurementEvent{Identity: id, Week: week})
	return nil
}

// TransitionPhase advances the trial exactly one phase. Callable by
// anyone; fails with a TimingError before the phase timer elapses. The
// Enrollment→Treatment transition partitions participants into groups;
// the Monitoring→Analysis transition issues the decryption request.
func (t *Trial) TransitionPhase() (from, to protocol.Phase, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from, to, err = t.phases.Advance()
	if err != nil {
		return from, to, err
	}

	now := t.phases.Now()
	switch to {
	case protocol.PhaseTreatment:
		t.registry.assignGroups()
	case protocol.PhaseAnalysis:
		t.issueDecryptionRequest(now)
	}

	t.events.Append(EventPhaseTransition, now, PhaseTransitionEvent{From: from, To: to})
	t.log.Info("phase transition", "from", from.String(), "to", to.String())
	return from, to, nil
}

// issueDecryptionRequest batches the designated week's effectiveness
// handles into the single decryption request. An empty batch skips the
// request silently; the phase advances regardless.
func (t *Trial) issueDecryptionRequest(now time.Time) {
	handles, identities := t.registry.designatedHandles(t.cfg.DesignatedWeek)
	if len(handles) == 0 {
		t.log.Info("no designated measurements, skipping decryption request")
		return
	}

	for _, h := range handles {
		if err := t.ledger.RequireProcessor(h); err != nil {
			// Handles batched here were granted at submission time, so
			// this indicates ledger corruption rather than a user error.
			t.log.Error("batched handle missing processor grant", "handle", h.String())
			return
		}
	}

	t.request = &PendingRequest{
		Request: protocol.DecryptionRequest{
			RequestID: uuid.New(),
			Handles:   handles,
			IssuedAt:  now,
		},
		State:         RequestPending,
		Identities:    identities,
		EnrolledCount: t.registry.Count(),
	}

	t.events.Append(EventDecryptionRequested, now, DecryptionRequestedEvent{
		RequestID:   t.request.Request.RequestID,
		HandleCount: len(handles),
	})
}

// EmergencyTerminate force-jumps the trial to Analysis and records a
// zeroed, uncalculated result. Coordinator-only. Once the trial is
// terminal the call is an idempotent no-op, whether termination was
// reached normally or by emergency.
func (t *Trial) EmergencyTerminate(caller Identity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.coordinator {
		return protocol.Errorf(protocol.AuthorizationError,
			"only the coordinator may terminate the trial")
	}

	from, already := t.phases.ForceAnalysis()
	if already {
		return nil
	}

	now := t.phases.Now()
	t.result = &TrialResult{
		Phase:       protocol.PhaseAnalysis,
		Calculated:  false,
		Completed:   true,
		CompletedAt: now,
	}

	t.events.Append(EventTrialCompleted, now, TrialCompletedEvent{
		Phase:     protocol.PhaseAnalysis,
		Emergency: true,
	})
	t.log.Warn("emergency termination", "from", from.String())
	return nil
}

// ProcessResults is the oracle callback. The signature set is verified
// against the canonical digest of (requestID, values) using the ledger's
// registered oracle keys; any failure reverts with zero state change and
// the request remains pending. On success the request resolves exactly
// once and the batch is aggregated in its original order.
func (t *Trial) ProcessResults(requestID uuid.UUID, values []uint64, set protocol.SignatureSet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.request == nil {
		return protocol.Errorf(protocol.ValidationError, "no outstanding decryption request")
	}
	if t.request.Request.RequestID != requestID {
		return protocol.Errorf(protocol.ValidationError, "unknown request id %s", requestID)
	}
	if t.request.State == RequestVerified {
		return protocol.Errorf(protocol.ValidationError, "request %s already verified", requestID)
	}
	if len(values) != len(t.request.Request.Handles) {
		return protocol.Errorf(protocol.ValidationError,
			"batch size %d does not match request size %d", len(values), len(t.request.Request.Handles))
	}

	if err := t.ledger.VerifyPlaintextBatch(requestID, values, set, t.cfg.MinOracleSignatures); err != nil {
		return err
	}

	now := t.phases.Now()
	result, significant, err := aggregate(t.vault, t.ledger, t.cfg, values, t.request.EnrolledCount, now)
	if err != nil {
		return err
	}

	t.request.State = RequestVerified
	t.request.ResolvedAt = now
	t.result = result

	t.events.Append(EventTrialCompleted, now, TrialCompletedEvent{
		Phase:     protocol.PhaseAnalysis,
		Emergency: false,
	})
	t.events.Append(EventResultsPublished, now, ResultsPublishedEvent{
		RequestID:        requestID,
		ParticipantCount: result.ParticipantCount,
		Significant:      significant,
	})
	t.log.Info("results published",
		"request", requestID, "participants", result.ParticipantCount, "significant", significant)
	return nil
}

// OutstandingRequest returns a copy of the current decryption request and
// true, or false if none has been issued.
func (t *Trial) OutstandingRequest() (protocol.DecryptionRequest, RequestState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.request == nil {
		return protocol.DecryptionRequest{}, 0, false
	}
	req := t.request.Request
	req.Handles = append([]crypto.Handle(nil), t.request.Request.Handles...)
	return req, t.request.State, true
}

// PatientStatus is the per-identity enrollment view.
type PatientStatus struct {
	Enrolled       bool      `json:"enrolled"`
	Consented      bool      `json:"consented"`
	EnrollmentTime time.Time `json:"enrollment_time"`
}

// GetPatientStatus returns the enrollment view for an identity. Unknown
// identities return a zero status rather than an error.
func (t *Trial) GetPatientStatus(id Identity) PatientStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.registry.Participant(id)
	if p == nil {
		return PatientStatus{}
	}
	return PatientStatus{
		Enrolled:       p.Enrolled,
		Consented:      p.Consented,
		EnrollmentTime: p.EnrolledAt,
	}
}

// GetMeasurementCount returns the number of valid measurements an
// identity has submitted.
func (t *Trial) GetMeasurementCount(id Identity) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.MeasurementCount(id)
}

// Status is the trial-wide progress view.
type Status struct {
	Phase            protocol.Phase `json:"phase"`
	PhaseName        string         `json:"phase_name"`
	ParticipantCount int            `json:"participant_count"`
	TimeRemaining    time.Duration  `json:"time_remaining"`
	TransitionReady  bool           `json:"transition_ready"`
}

// GetStatus returns the trial-wide progress view.
func (t *Trial) GetStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	phase := t.phases.Current()
	return Status{
		Phase:            phase,
		PhaseName:        phase.String(),
		ParticipantCount: t.registry.Count(),
		TimeRemaining:    t.phases.TimeRemaining(),
		TransitionReady:  t.phases.Ready(),
	}
}

// GetPhaseName returns the current phase's name.
func (t *Trial) GetPhaseName() string {
	return t.phases.Current().String()
}

// ResultsView is the published-results view for one phase.
type ResultsView struct {
	Completed        bool      `json:"completed"`
	Calculated       bool      `json:"calculated"`
	CompletionTime   time.Time `json:"completion_time"`
	ParticipantCount int       `json:"participant_count"`
}

// GetResults returns the results view for a phase. Only the Analysis
// phase ever carries a result; other phases return a zero view.
func (t *Trial) GetResults(phase protocol.Phase) ResultsView {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.result == nil || t.result.Phase != phase {
		return ResultsView{}
	}
	return ResultsView{
		Completed:        t.result.Completed,
		Calculated:       t.result.Calculated,
		CompletionTime:   t.result.CompletedAt,
		ParticipantCount: t.result.ParticipantCount,
	}
}

// Result returns the stored TrialResult, or nil. The handles it carries
// resolve only through the vault under viewer capability checks.
func (t *Trial) Result() *TrialResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return nil
	}
	out := *t.result
	return &out
}

// ParticipantGroup returns the persisted group assignment for an
// identity. Unassigned before the Enrollment→Treatment transition.
func (t *Trial) ParticipantGroup(id Identity) Group {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.registry.Participant(id)
	if p == nil {
		return GroupUnassigned
	}
	return p.Group
}
