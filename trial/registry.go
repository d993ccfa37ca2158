package trial

import (
	"time"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
)

// Group is a participant's treatment arm, assigned at the
// Enrollment→Treatment transition by enrollment-index parity.
type Group int

const (
	GroupUnassigned Group = iota
	GroupTreatment
	GroupPlacebo
)

// String returns the group's name.
func (g Group) String() string {
	switch g {
	case GroupTreatment:
		return "treatment"
	case GroupPlacebo:
		return "placebo"
	}
	return "unassigned"
}

// GroupForIndex derives the treatment arm from an enrollment or batch
// index: even indices are treatment, odd are placebo.
func GroupForIndex(index int) Group {
	if index%2 == 0 {
		return GroupTreatment
	}
	return GroupPlacebo
}

// Participant is a per-identity enrollment record, created exactly once
// during the Enrollment phase and immutable thereafter. All submitted
// values are held as opaque handles; the treatment-group handle never
// receives a viewer grant.
type Participant struct {
	Identity     Identity  `json:"identity"`
	Index        int       `json:"index"`
	Enrolled     bool      `json:"enrolled"`
	Consented    bool      `json:"consented"`
	EnrolledAt   time.Time `json:"enrolled_at"`
	Group        Group     `json:"-"`

	AgeHandle         crypto.Handle `json:"age_handle"`
	HealthScoreHandle crypto.Handle `json:"health_score_handle"`
	GroupHandle       crypto.Handle `json:"group_handle"`
	VitalSignsHandle  crypto.Handle `json:"vital_signs_handle"`
}

// Measurement is a per-(identity, week) record, created at most once per
// key and immutable thereafter.
type Measurement struct {
	Identity    Identity  `json:"identity"`
	Week        int       `json:"week"`
	SubmittedAt time.Time `json:"submitted_at"`
	Valid       bool      `json:"valid"`

	EffectivenessHandle crypto.Handle `json:"effectiveness_handle"`
	SideEffectsHandle   crypto.Handle `json:"side_effects_handle"`
	BiomarkersHandle    crypto.Handle `json:"biomarkers_handle"`
}

type measurementKey struct {
	identity Identity
	week     int
}

// Registry holds participant and measurement records plus the enrollment
// order. It performs no locking of its own: the Trial facade serializes
// all access.
type Registry struct {
	participants map[Identity]*Participant
	order        []Identity
	measurements map[measurementKey]*Measurement
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[Identity]*Participant),
		measurements: make(map[measurementKey]*Measurement),
	}
}

// Participant returns the record for an identity, or nil.
func (r *Registry) Participant(id Identity) *Participant {
	return r.participants[id]
}

// Enrolled reports whether the identity has an enrollment record.
func (r *Registry) Enrolled(id Identity) bool {
	return r.participants[id] != nil
}

// Count returns the number of enrolled participants.
func (r *Registry) Count() int {
	return len(r.order)
}

// EnrollmentOrder returns identities in enrollment order.
func (r *Registry) EnrollmentOrder() []Identity {
	out := make([]Identity, len(r.order))
	copy(out, r.order)
	return out
}

// add appends a participant, assigning its enrollment index.
func (r *Registry) add(p *Participant) {
	p.Index = len(r.order)
	r.participants[p.Identity] = p
	r.order = append(r.order, p.Identity)
}

// Measurement returns the record for (identity, week), or nil.
func (r *Registry) Measurement(id Identity, week int) *Measurement {
	return r.measurements[measurementKey{id, week}]
}

// MeasurementCount returns the number of valid measurement records for an
// identity.
func (r *Registry) MeasurementCount(id Identity) int {
	n := 0
	for key, m := range r.measurements {
		if key.identity == id && m.Valid {
			n++
		}
	}
	return n
}

// addMeasurement stores a measurement record.
func (r *Registry) addMeasurement(m *Measurement) {
	r.measurements[measurementKey{m.Identity, m.Week}] = m
}

// assignGroups partitions all participants by enrollment-index parity.
// Called once, at the Enrollment→Treatment transition.
func (r *Registry) assignGroups() {
	for i, id := range r.order {
		r.participants[id].Group = GroupForIndex(i)
	}
}

// designatedHandles collects, in enrollment order, the effectiveness
// handle of every participant with a valid record for the given week,
// together with the owning identities.
func (r *Registry) designatedHandles(week int) ([]crypto.Handle, []Identity) {
	var handles []crypto.Handle
	var identities []Identity
	for _, id := range r.order {
		m := r.Measurement(id, week)
		if m != nil && m.Valid {
			handles = append(handles, m.EffectivenessHandle)
			identities = append(identities, id)
		}
	}
	return handles, identities
}
