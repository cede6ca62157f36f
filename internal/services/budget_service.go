package services

import (
	"fmt"
	"math"
	"time"

	"github.com/ambdigitalagency/hivepost/internal/database"
	"github.com/ambdigitalagency/hivepost/internal/models"

	"go.uber.org/zap"
)

// MonthlyCapUSD is the hard global cap on external API spend per calendar
// month (UTC), across all owners.
const MonthlyCapUSD = 100.0

// MaxCandidatesPerRequest is the absolute per-request ceiling on candidate
// images. The ladder's top tier is aspirational headroom and is always
// clamped to this.
const MaxCandidatesPerRequest = 20

// AbsoluteMaxFinal bounds a finalize selection regardless of budget. The
// ladder can lower the effective limit below this, never raise it.
const AbsoluteMaxFinal = 9

func currentMonthRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Millisecond)
	return from, to
}

// MonthlySpendUSD sums ledger entries within the current UTC month. It is
// recomputed on every admission check rather than cached so concurrent
// batches observe each other's spend. Read failures degrade to 0: a
// transient query error must not brick the product, the ledger itself is
// still durably correct.
func MonthlySpendUSD() float64 {
	from, to := currentMonthRange(time.Now())

	var sum *float64
	err := database.DB.Model(&models.CostLedgerEntry{}).
		Select("SUM(cost_usd_estimated)").
		Where("created_at BETWEEN ? AND ?", from, to).
		Scan(&sum).Error
	if err != nil {
		zap.L().Error("monthly spend query failed, degrading to 0", zap.Error(err))
		return 0
	}
	if sum == nil {
		return 0
	}
	return math.Round(*sum*1e6) / 1e6
}

// CandidateAdmission is the governor's answer for the candidate stage.
type CandidateAdmission struct {
	Allowed  bool    `json:"allowed"`
	Reason   string  `json:"reason,omitempty"`
	Count    int     `json:"count"`
	SpendUSD float64 `json:"spend_usd"`
	CapUSD   float64 `json:"cap_usd"`
}

// AdmitCandidates applies the degradation ladder to the remaining budget:
// remaining >= 15 -> 30, >= 5 -> 20, else 10, then clamps to the absolute
// per-request ceiling. The returned Count is the effective count.
func AdmitCandidates() CandidateAdmission {
	spend := MonthlySpendUSD()
	if spend >= MonthlyCapUSD {
		return CandidateAdmission{
			Allowed:  false,
			Reason:   "Monthly API budget reached.",
			Count:    0,
			SpendUSD: spend,
			CapUSD:   MonthlyCapUSD,
		}
	}

	remaining := MonthlyCapUSD - spend
	var ladder int
	switch {
	case remaining >= 15:
		ladder = 30
	case remaining >= 5:
		ladder = 20
	default:
		ladder = 10
	}
	count := ladder
	if count > MaxCandidatesPerRequest {
		count = MaxCandidatesPerRequest
	}

	return CandidateAdmission{
		Allowed:  true,
		Count:    count,
		SpendUSD: spend,
		CapUSD:   MonthlyCapUSD,
	}
}

// BatchAdmission answers whether a post may start another batch.
type BatchAdmission struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// AdmitNewBatch allows the first batch for a post unconditionally
// (bootstrapping); any re-run needs spend below cap and at least $5 of
// headroom.
func AdmitNewBatch(existingBatchCount int) BatchAdmission {
	if existingBatchCount <= 0 {
		return BatchAdmission{Allowed: true}
	}
	spend := MonthlySpendUSD()
	if spend >= MonthlyCapUSD {
		return BatchAdmission{Allowed: false, Reason: "Monthly API budget reached."}
	}
	if MonthlyCapUSD-spend < 5 {
		return BatchAdmission{Allowed: false, Reason: "Budget too low for a new batch."}
	}
	return BatchAdmission{Allowed: true}
}

// FinalizeMaxCount is the finalize-stage ladder: 10, 6 or 3 depending on
// remaining budget, 0 once the cap is hit.
func FinalizeMaxCount() int {
	spend := MonthlySpendUSD()
	if spend >= MonthlyCapUSD {
		return 0
	}
	remaining := MonthlyCapUSD - spend
	switch {
	case remaining >= 10:
		return 10
	case remaining >= 5:
		return 6
	default:
		return 3
	}
}

// FinalizeAdmission distinguishes budget rejections from selection
// rejections; callers map them to different error codes.
type FinalizeAdmission struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	Budget        bool   `json:"-"` // true when the rejection is budget, not selection
	MaxFinalCount int    `json:"max_final_count"`
}

func AdmitFinalize(selectedCount int) FinalizeAdmission {
	maxFinal := FinalizeMaxCount()
	if maxFinal <= 0 {
		return FinalizeAdmission{Allowed: false, Budget: true, Reason: "Monthly API budget reached.", MaxFinalCount: 0}
	}
	if selectedCount <= 0 {
		return FinalizeAdmission{Allowed: false, Reason: "No images selected", MaxFinalCount: maxFinal}
	}
	if selectedCount > maxFinal {
		return FinalizeAdmission{
			Allowed:       false,
			Reason:        fmt.Sprintf("At most %d images can be finalized (budget ladder).", maxFinal),
			MaxFinalCount: maxFinal,
		}
	}
	return FinalizeAdmission{Allowed: true, MaxFinalCount: maxFinal}
}

// RecordCost appends one billed unit to the ledger. Append-only: entries are
// never updated or deleted. A write failure is surfaced loudly in the log
// but does not unwind the pipeline, the image it bills for was already
// delivered.
func RecordCost(ownerType, ownerID, provider string, kind models.CostKind, model string, units int, usdEstimate float64, requestID string) {
	entry := models.CostLedgerEntry{
		OwnerType:        ownerType,
		OwnerID:          ownerID,
		Provider:         provider,
		Kind:             kind,
		Model:            model,
		Units:            units,
		CostUSDEstimated: usdEstimate,
		RequestID:        requestID,
	}
	if err := database.DB.Create(&entry).Error; err != nil {
		zap.L().Error("cost ledger insert failed, billed unit unrecorded",
			zap.String("owner_id", ownerID),
			zap.String("provider", provider),
			zap.Float64("cost_usd", usdEstimate),
			zap.Error(err))
	}
}
