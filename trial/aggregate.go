package trial

import (
	"time"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
)

// TrialResult is the re-encrypted group statistics. The averages exist
// only as handles; the participant count is additionally exposed in the
// clear through the Results view since it is not confidential.
type TrialResult struct {
	Phase       protocol.Phase `json:"phase"`
	Calculated  bool           `json:"calculated"`
	Completed   bool           `json:"completed"`
	CompletedAt time.Time      `json:"completed_at"`

	PlaceboAverageHandle   crypto.Handle `json:"placebo_average_handle"`
	TreatmentAverageHandle crypto.Handle `json:"treatment_average_handle"`
	ParticipantCountHandle crypto.Handle `json:"participant_count_handle"`

	ParticipantCount int `json:"participant_count"`
}

// groupStats is one arm's running sum and count over the verified batch.
type groupStats struct {
	sum   uint64
	count uint64
}

// average computes the truncating integer average, 0 when the group is
// empty.
func (g groupStats) average() uint64 {
	if g.count == 0 {
		return 0
	}
	return g.sum / g.count
}

// partitionBatch splits a verified plaintext batch by index parity, the
// same parity rule the Enrollment→Treatment transition applied to the
// enrollment order. The partition is re-derived from batch position, so
// it matches the persisted groups only while the batch preserves the
// enrollment order.
func partitionBatch(values []uint64) (treatment, placebo groupStats) {
	for i, v := range values {
		if GroupForIndex(i) == GroupTreatment {
			treatment.sum += v
			treatment.count++
		} else {
			placebo.sum += v
			placebo.count++
		}
	}
	return treatment, placebo
}

// significantDifference reports whether the treatment average exceeds the
// placebo average by more than the threshold.
func significantDifference(treatmentAvg, placeboAvg, threshold uint64) bool {
	if treatmentAvg <= placeboAvg {
		return false
	}
	return treatmentAvg-placeboAvg > threshold
}

// aggregate computes the group statistics for a verified batch,
// re-encrypts them into fresh handles with processor grants, and returns
// the stored result together with the significance flag.
func aggregate(vault *Vault, ledger *CapabilityLedger, cfg *protocol.TrialConfig,
	values []uint64, enrolledCount int, now time.Time) (*TrialResult, bool, error) {

	treatment, placebo := partitionBatch(values)
	treatmentAvg := treatment.average()
	placeboAvg := placebo.average()

	treatmentHandle, err := vault.Encrypt(treatmentAvg, crypto.Width32)
	if err != nil {
		return nil, false, err
	}
	placeboHandle, err := vault.Encrypt(placeboAvg, crypto.Width32)
	if err != nil {
		return nil, false, err
	}
	countHandle, err := vault.Encrypt(uint64(enrolledCount), crypto.Width32)
	if err != nil {
		return nil, false, err
	}

	ledger.GrantProcessor(treatmentHandle)
	ledger.GrantProcessor(placeboHandle)
	ledger.GrantProcessor(countHandle)

	result := &TrialResult{
		Phase:                  protocol.PhaseAnalysis,
		Calculated:             true,
		Completed:              true,
		CompletedAt:            now,
		PlaceboAverageHandle:   placeboHandle,
		TreatmentAverageHandle: treatmentHandle,
		ParticipantCountHandle: countHandle,
		ParticipantCount:       enrolledCount,
	}

	significant := significantDifference(treatmentAvg, placeboAvg, cfg.SignificanceThreshold)
	return result, significant, nil
}
