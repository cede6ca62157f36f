package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ambdigitalagency/hivepost/config"
	"github.com/ambdigitalagency/hivepost/internal/database"
	"github.com/ambdigitalagency/hivepost/internal/models"
	"github.com/ambdigitalagency/hivepost/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// BatchService drives the two-stage image pipeline. Units run sequentially
// with a fixed inter-unit delay; this is deliberate pacing against provider
// rate limits, not an accident of implementation. Collaborators are fields
// so tests can inject fakes.
type BatchService struct {
	Provider ImageProvider
	Storage  AssetStorage
	Prompter PromptGenerator
	Fetcher  *http.Client

	UnitDelay       time.Duration
	GenRetryDelay   time.Duration
	FetchRetryDelay time.Duration

	// AdvanceEmptyBatch keeps the alternative zero-success policy reachable:
	// when true the post still advances to images_pending even if no
	// candidate landed. Default false, a post should not claim assets exist
	// when none do.
	AdvanceEmptyBatch bool

	ProviderConfigured bool
}

const (
	finalizeGenRetries   = 2
	finalizeFetchRetries = 3
	// rough per-unit wall time for the start event's duration estimate
	estimatedUnitSeconds = 20
)

func NewBatchService(cfg *config.Config) *BatchService {
	provider := NewReplicateProvider(cfg)
	return &BatchService{
		Provider:           provider,
		Storage:            NewOSSStorage(cfg),
		Prompter:           NewOpenAIPromptGenerator(cfg),
		Fetcher:            utils.NewHTTPClient(60 * time.Second),
		UnitDelay:          time.Duration(cfg.ImageUnitDelayMS) * time.Millisecond,
		GenRetryDelay:      time.Duration(cfg.GenRetryDelayMS) * time.Millisecond,
		FetchRetryDelay:    time.Duration(cfg.FetchRetryDelayMS) * time.Millisecond,
		AdvanceEmptyBatch:  cfg.AdvanceEmptyBatch,
		ProviderConfigured: provider.Configured(),
	}
}

// CandidateRun is a validated, admitted candidate-stage request.
type CandidateRun struct {
	UserID   uint
	Business models.Business
	Post     models.Post
	Count    int
}

// FinalizeRun is a validated, admitted finalize-stage request. Candidates
// preserves the caller's selection order.
type FinalizeRun struct {
	UserID     uint
	Business   models.Business
	Post       models.Post
	Candidates []models.PostImage
}

// BatchOutcome reports a completed run.
type BatchOutcome struct {
	BatchID        string   `json:"batch_id"`
	CreatedIDs     []string `json:"created_ids"`
	FailedCount    int      `json:"failed_count"`
	RequestedCount int      `json:"requested_count"`
}

func loadOwnedPost(userID uint, businessID, postID string) (*models.Business, *models.Post, *utils.AppError) {
	var business models.Business
	if err := database.DB.Where("id = ? AND user_id = ?", businessID, userID).First(&business).Error; err != nil {
		return nil, nil, utils.ErrNotFound("Business")
	}

	var post models.Post
	if err := database.DB.Where("id = ? AND business_id = ?", postID, businessID).First(&post).Error; err != nil {
		return nil, nil, utils.ErrNotFound("Post")
	}
	return &business, &post, nil
}

// PrepareCandidates checks every precondition eagerly, before any billed
// work: ownership, lifecycle state, caption, provider, new-batch admission,
// candidate admission.
func (s *BatchService) PrepareCandidates(userID uint, businessID, postID string) (*CandidateRun, *utils.AppError) {
	business, post, appErr := loadOwnedPost(userID, businessID, postID)
	if appErr != nil {
		return nil, appErr
	}

	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusImagesPending {
		return nil, utils.ErrPrecondition(
			"Post must be in draft or have candidates (to request a new batch)",
			"Generate a caption first, or finalize the current candidates.")
	}
	if post.Caption() == "" {
		return nil, utils.ErrPrecondition(
			"Post has no caption; generate caption first",
			"Generate a caption, then request candidate images.")
	}
	if !s.ProviderConfigured {
		return nil, utils.ErrProviderUnconfigured()
	}

	var existing int64
	database.DB.Model(&models.ImageBatch{}).
		Where("post_id = ? AND stage = ?", postID, models.BatchStageCandidate).
		Count(&existing)

	if check := AdmitNewBatch(int(existing)); !check.Allowed {
		return nil, utils.ErrBudgetExceeded(check.Reason)
	}

	budget := AdmitCandidates()
	if !budget.Allowed {
		return nil, utils.ErrBudgetExceeded(budget.Reason)
	}

	return &CandidateRun{
		UserID:   userID,
		Business: *business,
		Post:     *post,
		Count:    budget.Count,
	}, nil
}

// RunCandidates executes the admitted candidate batch: resolve the visual
// prompt (cached on the post), then N paced generation units. Per-unit
// failures are absorbed and streamed as error events; a degraded batch with
// some images beats none.
func (s *BatchService) RunCandidates(ctx context.Context, run *CandidateRun, stream *ProgressStream) (*BatchOutcome, *utils.AppError) {
	batch := models.ImageBatch{
		PostID:         run.Post.ID,
		Stage:          models.BatchStageCandidate,
		RequestedCount: run.Count,
		Quality:        "low",
		Status:         models.BatchStatusRunning,
		Params:         datatypes.JSON([]byte(`{"width":512,"height":512,"num_outputs":1}`)),
	}
	if err := database.DB.Create(&batch).Error; err != nil {
		return nil, utils.NewAppError(utils.CodeGenerationFailed, 500, "Could not create image batch", "")
	}

	prompt := s.resolveImagePrompt(ctx, run.Business, &run.Post)

	stream.Start(run.Count, run.Count*estimatedUnitSeconds)

	ownerID := fmt.Sprint(run.UserID)
	created := make([]string, 0, run.Count)
	lastError := ""
	canceled := false

	for i := 0; i < run.Count; i++ {
		if i > 0 && !s.pause(ctx, s.UnitDelay) {
			canceled = true
			break
		}
		if ctx.Err() != nil {
			canceled = true
			break
		}

		assetURL, err := s.Provider.GenerateFromText(ctx, prompt)
		if err != nil {
			lastError = err.Error()
			zap.L().Warn("candidate generation failed", zap.Int("index", i), zap.Error(err))
			stream.Error(i)
			continue
		}

		data, err := s.fetchAsset(ctx, assetURL, 1)
		if err != nil {
			lastError = err.Error()
			stream.Error(i)
			continue
		}

		imageID := uuid.New().String()
		path := fmt.Sprintf("posts/%s/batches/%s/%s.png", run.Post.ID, batch.ID, imageID)
		storageKey, err := s.Storage.UploadAsset(path, data, "image/png")
		if err != nil {
			lastError = err.Error()
			zap.L().Warn("candidate upload failed", zap.Int("index", i), zap.Error(err))
			stream.Error(i)
			continue
		}

		img := models.PostImage{
			ID:         imageID,
			PostID:     run.Post.ID,
			BatchID:    batch.ID,
			Stage:      models.BatchStageCandidate,
			StorageKey: storageKey,
		}
		if err := database.DB.Create(&img).Error; err != nil {
			lastError = err.Error()
			stream.Error(i)
			continue
		}
		created = append(created, img.ID)

		RecordCost("user", ownerID, "replicate", models.CostKindImage, "realvisxl-v4.0", 1, CandidateImageCostUSD, batch.ID)

		// Flip on the FIRST success so a streaming client can start
		// rendering thumbnails before the batch finishes. Idempotent.
		if len(created) == 1 {
			s.advancePost(&run.Post, models.PostStatusImagesPending)
		}

		stream.Image(i, img.ID, s.Storage.PublicURL(storageKey))
	}

	outcome := &BatchOutcome{
		BatchID:        batch.ID,
		CreatedIDs:     created,
		FailedCount:    run.Count - len(created),
		RequestedCount: run.Count,
	}

	// Terminal state even on cancellation: succeeded means "ran", partial
	// results stay coherent, and nothing is left running forever.
	s.closeBatch(&batch, len(created) > 0, lastError)

	if len(created) == 0 {
		if s.AdvanceEmptyBatch && !canceled {
			s.advancePost(&run.Post, models.PostStatusImagesPending)
		}
		rateLimited := IsRateLimitError(lastError)
		msg := lastError
		if msg == "" {
			msg = "No images could be generated."
		}
		appErr := utils.ErrGenerationFailed(msg, rateLimited)
		stream.Done(0, outcome.FailedCount, appErr.Message, string(appErr.Code))
		RecordEvent("user", ownerID, "candidate_images_created", map[string]interface{}{
			"business_id": run.Business.ID, "post_id": run.Post.ID, "batch_id": batch.ID, "count": 0,
		})
		return outcome, appErr
	}

	RecordEvent("user", ownerID, "candidate_images_created", map[string]interface{}{
		"business_id": run.Business.ID, "post_id": run.Post.ID, "batch_id": batch.ID, "count": len(created),
	})

	stream.Done(len(created), outcome.FailedCount, "", "")
	return outcome, nil
}

// PrepareFinalize validates the caller's selection before any billed work:
// 1..9 unique ids, all resolving to this post's candidate images, then the
// finalize admission ladder. A malformed selection fails closed entirely.
func (s *BatchService) PrepareFinalize(userID uint, businessID, postID string, selectedIDs []string) (*FinalizeRun, *utils.AppError) {
	if len(selectedIDs) == 0 || len(selectedIDs) > AbsoluteMaxFinal {
		return nil, utils.ErrInvalidSelection(
			fmt.Sprintf("Select 1-%d candidate images to finalize", AbsoluteMaxFinal))
	}

	business, post, appErr := loadOwnedPost(userID, businessID, postID)
	if appErr != nil {
		return nil, appErr
	}

	if post.Status != models.PostStatusImagesPending {
		return nil, utils.ErrPrecondition(
			"Post must have candidate images first (images_pending)",
			"Generate candidate images before finalizing.")
	}
	if post.Caption() == "" {
		return nil, utils.ErrPrecondition("Post has no caption", "Generate a caption first.")
	}
	if !s.ProviderConfigured {
		return nil, utils.ErrProviderUnconfigured()
	}

	var rows []models.PostImage
	database.DB.
		Where("post_id = ? AND stage = ? AND id IN ?", postID, models.BatchStageCandidate, selectedIDs).
		Find(&rows)
	byID := make(map[string]models.PostImage, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	ordered := make([]models.PostImage, 0, len(selectedIDs))
	for _, id := range selectedIDs {
		row, ok := byID[id]
		if !ok {
			return nil, utils.ErrInvalidSelection("Invalid or duplicate image selection")
		}
		delete(byID, id) // a second occurrence of the same id is a duplicate
		ordered = append(ordered, row)
	}

	admission := AdmitFinalize(len(ordered))
	if !admission.Allowed {
		if admission.Budget {
			return nil, utils.ErrBudgetExceeded(admission.Reason)
		}
		return nil, utils.ErrFinalizeLimit(admission.Reason)
	}

	// Selection is accepted: mark the chosen candidates now, before billed
	// work starts. Never touched again after this point.
	ids := make([]string, len(ordered))
	for i, r := range ordered {
		ids[i] = r.ID
	}
	database.DB.Model(&models.PostImage{}).Where("id IN ?", ids).Update("selected", true)

	return &FinalizeRun{
		UserID:     userID,
		Business:   *business,
		Post:       *post,
		Candidates: ordered,
	}, nil
}

// RunFinalize executes the admitted finalize batch: for each selected
// candidate, img2img with per-unit generation retries and fetch retries,
// then upload, persist with a back-reference, bill, stream.
func (s *BatchService) RunFinalize(ctx context.Context, run *FinalizeRun, stream *ProgressStream) (*BatchOutcome, *utils.AppError) {
	count := len(run.Candidates)
	batch := models.ImageBatch{
		PostID:         run.Post.ID,
		Stage:          models.BatchStageFinal,
		RequestedCount: count,
		Quality:        "high",
		Status:         models.BatchStatusRunning,
		Params:         datatypes.JSON([]byte(`{"width":1024,"height":1024,"prompt_strength":0.35}`)),
	}
	if err := database.DB.Create(&batch).Error; err != nil {
		return nil, utils.NewAppError(utils.CodeGenerationFailed, 500, "Could not create image batch", "")
	}

	prompt := s.resolveFinalizePrompt(ctx, run.Business, &run.Post)

	stream.Start(count, count*estimatedUnitSeconds)

	ownerID := fmt.Sprint(run.UserID)
	created := make([]string, 0, count)
	failed := 0
	lastError := ""

	for idx, candidate := range run.Candidates {
		if idx > 0 && !s.pause(ctx, s.UnitDelay) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		sourceURL := s.Storage.PublicURL(candidate.StorageKey)

		assetURL, err := s.generateFinalWithRetries(ctx, sourceURL, prompt)
		if err != nil {
			lastError = err.Error()
			zap.L().Warn("final generation failed after retries", zap.Int("index", idx), zap.Error(err))
			failed++
			stream.Error(idx)
			continue
		}

		data, err := s.fetchAsset(ctx, assetURL, finalizeFetchRetries)
		if err != nil {
			lastError = err.Error()
			failed++
			stream.Error(idx)
			continue
		}

		imageID := uuid.New().String()
		path := fmt.Sprintf("posts/%s/batches/%s/final-%s.png", run.Post.ID, batch.ID, imageID)
		storageKey, err := s.Storage.UploadAsset(path, data, "image/png")
		if err != nil {
			lastError = err.Error()
			zap.L().Warn("final upload failed", zap.Int("index", idx), zap.Error(err))
			failed++
			stream.Error(idx)
			continue
		}

		sourceID := candidate.ID
		img := models.PostImage{
			ID:                imageID,
			PostID:            run.Post.ID,
			BatchID:           batch.ID,
			Stage:             models.BatchStageFinal,
			StorageKey:        storageKey,
			Selected:          true,
			SourceCandidateID: &sourceID,
		}
		if err := database.DB.Create(&img).Error; err != nil {
			lastError = err.Error()
			failed++
			stream.Error(idx)
			continue
		}
		created = append(created, img.ID)

		RecordCost("user", ownerID, "replicate", models.CostKindImage, "realvisxl-v4.0", 1, FinalImageCostUSD, batch.ID)

		stream.Image(idx, img.ID, s.Storage.PublicURL(storageKey))
	}

	s.closeBatch(&batch, len(created) > 0, lastError)

	outcome := &BatchOutcome{
		BatchID:        batch.ID,
		CreatedIDs:     created,
		FailedCount:    failed,
		RequestedCount: count,
	}

	if len(created) == 0 {
		appErr := utils.ErrGenerationFailed("No images could be finalized.", IsRateLimitError(lastError))
		stream.Done(0, failed, appErr.Message, string(appErr.Code))
		return outcome, appErr
	}

	// At least one final landed: the post is ready, partial failures are
	// reported as a warning count, not a hard error.
	s.advancePost(&run.Post, models.PostStatusReady)

	RecordEvent("user", ownerID, "post_finalized", map[string]interface{}{
		"business_id": run.Business.ID, "post_id": run.Post.ID, "batch_id": batch.ID,
		"count": len(created), "failed": failed,
	})

	summary := ""
	if failed > 0 {
		summary = fmt.Sprintf("%d of %d images could not be generated.", failed, count)
	}
	stream.Done(len(created), failed, summary, "")
	return outcome, nil
}

func (s *BatchService) generateFinalWithRetries(ctx context.Context, sourceURL, prompt string) (string, error) {
	assetURL, err := s.Provider.GenerateFromImage(ctx, sourceURL, prompt, 0.35)
	for retry := 0; retry < finalizeGenRetries && err != nil; retry++ {
		if !s.pause(ctx, s.GenRetryDelay) {
			return "", ctx.Err()
		}
		assetURL, err = s.Provider.GenerateFromImage(ctx, sourceURL, prompt, 0.35)
	}
	return assetURL, err
}

func (s *BatchService) fetchAsset(ctx context.Context, url string, attempts int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && !s.pause(ctx, s.FetchRetryDelay) {
			return nil, ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.Fetcher.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("asset fetch returned status %d", resp.StatusCode)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, lastErr
}

// resolveImagePrompt returns the cached visual prompt or computes and caches
// one, so repeat batches reuse it.
func (s *BatchService) resolveImagePrompt(ctx context.Context, business models.Business, post *models.Post) string {
	if p := post.ImagePrompt; p != "" {
		return p
	}
	prompt := s.Prompter.FromCaption(ctx, PromptInput{
		Caption:      post.Caption(),
		Category:     business.Category,
		BusinessName: business.Name,
		City:         business.City,
		State:        business.State,
		Language:     business.Language,
		Purpose:      PurposeCandidate,
	})
	post.ImagePrompt = prompt
	database.DB.Model(&models.Post{}).Where("id = ?", post.ID).Update("image_prompt", prompt)
	return prompt
}

func (s *BatchService) resolveFinalizePrompt(ctx context.Context, business models.Business, post *models.Post) string {
	if p := post.ImagePrompt; p != "" {
		return p
	}
	return s.Prompter.FromCaption(ctx, PromptInput{
		Caption:      post.Caption(),
		Category:     business.Category,
		BusinessName: business.Name,
		City:         business.City,
		State:        business.State,
		Language:     business.Language,
		Purpose:      PurposeFinalize,
	})
}

// advancePost persists a status transition. Setting a status the post
// already has is a no-op.
func (s *BatchService) advancePost(post *models.Post, status models.PostStatus) {
	if post.Status == status {
		return
	}
	if err := database.DB.Model(&models.Post{}).Where("id = ?", post.ID).
		Update("status", status).Error; err != nil {
		zap.L().Error("post status transition failed",
			zap.String("post_id", post.ID), zap.String("status", string(status)), zap.Error(err))
		return
	}
	post.Status = status
}

func (s *BatchService) closeBatch(batch *models.ImageBatch, anySuccess bool, lastError string) {
	status := models.BatchStatusSucceeded
	if !anySuccess {
		status = models.BatchStatusFailed
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}
	if lastError != "" {
		updates["error_log"] = lastError
	}
	if err := database.DB.Model(&models.ImageBatch{}).Where("id = ?", batch.ID).
		Updates(updates).Error; err != nil {
		zap.L().Error("batch close failed", zap.String("batch_id", batch.ID), zap.Error(err))
		return
	}
	batch.Status = status
	batch.CompletedAt = &now
}

// pause sleeps for d unless the context is canceled first. Returns false on
// cancellation.
func (s *BatchService) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
