package services

import (
	"testing"
	"time"

	"github.com/ambdigitalagency/hivepost/internal/database"
	"github.com/ambdigitalagency/hivepost/internal/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.Migrator().DropTable(&models.Business{}, &models.Post{}, &models.ImageBatch{}, &models.PostImage{}, &models.CostLedgerEntry{})
	err = db.AutoMigrate(&models.Business{}, &models.Post{}, &models.ImageBatch{}, &models.PostImage{}, &models.CostLedgerEntry{})
	if err != nil {
		panic("failed to migrate database")
	}

	database.DB = db
}

func seedSpend(usd float64) {
	seedSpendAt(usd, time.Now().UTC())
}

func seedSpendAt(usd float64, at time.Time) {
	entry := models.CostLedgerEntry{
		OwnerType:        "user",
		OwnerID:          "1",
		Provider:         "replicate",
		Kind:             models.CostKindImage,
		Model:            "realvisxl-v4.0",
		Units:            1,
		CostUSDEstimated: usd,
		CreatedAt:        at,
	}
	database.DB.Create(&entry)
}

func TestMonthlySpend_SumsCurrentMonthOnly(t *testing.T) {
	setupTestDB()

	seedSpend(1.5)
	seedSpend(0.25)
	// Last month's spend must not count against this month's cap
	seedSpendAt(150, time.Now().UTC().AddDate(0, -1, 0))

	assert.Equal(t, 1.75, MonthlySpendUSD())
}

func TestMonthlySpend_DegradesToZeroOnReadError(t *testing.T) {
	setupTestDB()
	database.DB.Migrator().DropTable(&models.CostLedgerEntry{})

	assert.Equal(t, 0.0, MonthlySpendUSD())

	// Fail-open: with the ledger unreadable generation stays available
	admission := AdmitCandidates()
	assert.True(t, admission.Allowed)
	assert.Equal(t, MaxCandidatesPerRequest, admission.Count)
}

func TestAdmitCandidates_Ladder(t *testing.T) {
	tests := []struct {
		name    string
		spend   float64
		allowed bool
		count   int
	}{
		{"fresh budget", 0, true, 20},
		{"remaining above 15 still clamps to 20", 84, true, 20},
		{"remaining 10 admits 20", 90, true, 20},
		{"remaining under 5 degrades to 10", 96, true, 10},
		{"nearly exhausted still admits 10", 99.5, true, 10},
		{"cap reached denies", 100, false, 0},
		{"cap overshot denies", 123, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestDB()
			if tt.spend > 0 {
				seedSpend(tt.spend)
			}

			admission := AdmitCandidates()
			assert.Equal(t, tt.allowed, admission.Allowed)
			assert.Equal(t, tt.count, admission.Count)
			assert.Equal(t, MonthlyCapUSD, admission.CapUSD)
			if !tt.allowed {
				assert.NotEmpty(t, admission.Reason)
			}
		})
	}
}

func TestAdmitNewBatch(t *testing.T) {
	setupTestDB()

	// First batch for a post is always admitted, even over cap
	seedSpend(100)
	assert.True(t, AdmitNewBatch(0).Allowed)

	// Re-run over cap is denied
	assert.False(t, AdmitNewBatch(1).Allowed)

	// Re-run with less than $5 headroom is denied
	setupTestDB()
	seedSpend(96)
	assert.False(t, AdmitNewBatch(2).Allowed)

	// Re-run with headroom is admitted
	setupTestDB()
	seedSpend(50)
	assert.True(t, AdmitNewBatch(3).Allowed)
}

func TestFinalizeMaxCount_Ladder(t *testing.T) {
	tests := []struct {
		spend float64
		max   int
	}{
		{0, 10},
		{89, 10},
		{92, 6},
		{96, 3},
		{99.9, 3},
		{100, 0},
	}

	for _, tt := range tests {
		setupTestDB()
		if tt.spend > 0 {
			seedSpend(tt.spend)
		}
		assert.Equal(t, tt.max, FinalizeMaxCount(), "spend=%v", tt.spend)
	}
}

func TestAdmitFinalize(t *testing.T) {
	setupTestDB()
	seedSpend(97) // max 3 finals

	admission := AdmitFinalize(3)
	assert.True(t, admission.Allowed)
	assert.Equal(t, 3, admission.MaxFinalCount)

	admission = AdmitFinalize(5)
	assert.False(t, admission.Allowed)
	assert.False(t, admission.Budget, "oversized selection is a selection error, not a budget error")
	assert.Equal(t, 3, admission.MaxFinalCount)

	admission = AdmitFinalize(0)
	assert.False(t, admission.Allowed)
	assert.False(t, admission.Budget)

	setupTestDB()
	seedSpend(100)
	admission = AdmitFinalize(1)
	assert.False(t, admission.Allowed)
	assert.True(t, admission.Budget)
	assert.Equal(t, 0, admission.MaxFinalCount)
}

func TestRecordCost_AppendsLedgerEntry(t *testing.T) {
	setupTestDB()

	RecordCost("user", "42", "replicate", models.CostKindImage, "realvisxl-v4.0", 1, CandidateImageCostUSD, "batch-1")
	RecordCost("user", "42", "replicate", models.CostKindImage, "realvisxl-v4.0", 1, FinalImageCostUSD, "batch-2")

	var entries []models.CostLedgerEntry
	database.DB.Order("created_at asc").Find(&entries)
	assert.Len(t, entries, 2)
	assert.Equal(t, "42", entries[0].OwnerID)
	assert.Equal(t, models.CostKindImage, entries[0].Kind)
	assert.Equal(t, CandidateImageCostUSD, entries[0].CostUSDEstimated)
	assert.Equal(t, "batch-2", entries[1].RequestID)

	assert.Equal(t, 0.006, MonthlySpendUSD())
}

func TestRecordCost_WriteFailureDoesNotPanic(t *testing.T) {
	setupTestDB()
	database.DB.Migrator().DropTable(&models.CostLedgerEntry{})

	assert.NotPanics(t, func() {
		RecordCost("user", "1", "replicate", models.CostKindImage, "realvisxl-v4.0", 1, CandidateImageCostUSD, "batch-x")
	})
}
