package appraisal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/aiclient"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
	"github.com/vkarlsson/vardera/internal/pkg/storage"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 2 * time.Second
)

// ImageUpload is one photo submitted with an appraisal, in user selection
// order.
type ImageUpload struct {
	Data     []byte
	FileName string
	MimeType string
}

// SubmitInput is everything needed to start one appraisal.
type SubmitInput struct {
	UserID      *uint
	Category    string
	Description string
	Images      []ImageUpload
}

// Service drives an appraisal through its lifecycle: create pending, consume
// entitlement, store images, run the external analysis, land in completed or
// failed.
type Service struct {
	repo      repository.AppraisalRepository
	evaluator *entitlements.Evaluator
	provider  aiclient.Provider
	blobs     storage.BlobStore

	maxAttempts  int
	retryBackoff time.Duration
}

// NewService wires the lifecycle service from its collaborators.
func NewService(repo repository.AppraisalRepository, evaluator *entitlements.Evaluator, provider aiclient.Provider, blobs storage.BlobStore) *Service {
	return &Service{
		repo:         repo,
		evaluator:    evaluator,
		provider:     provider,
		blobs:        blobs,
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
}

// Submit runs the full appraisal flow. Validation failures happen before any
// record or entitlement is touched. Entitlement denial marks the record
// failed before any image is uploaded. The external call is retried with
// backoff on transport errors only; the entitlement is consumed exactly once
// regardless of retries.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Appraisal, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, &aiclient.ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, &aiclient.ValidationError{Field: "category", Reason: "must not be empty"}
	}

	appraisal := &models.Appraisal{
		UserID:          in.UserID,
		Category:        in.Category,
		ItemDescription: in.Description,
		Status:          models.AppraisalStatusPending,
	}
	if err := s.repo.Create(appraisal); err != nil {
		return nil, fmt.Errorf("create appraisal: %w", err)
	}

	if in.UserID != nil {
		if _, err := s.evaluator.Consume(*in.UserID); err != nil {
			if errors.Is(err, entitlements.ErrLimitReached) {
				s.fail(appraisal.ID, "usage limit reached")
				return nil, err
			}
			// fail closed: without a recorded consumption there is no allow
			s.fail(appraisal.ID, "entitlement check unavailable")
			return nil, fmt.Errorf("entitlement check: %w", err)
		}
	}

	if err := s.storeImages(ctx, appraisal, in.Images); err != nil {
		s.fail(appraisal.ID, "image upload failed")
		return nil, err
	}

	if err := s.repo.UpdateStatus(appraisal.ID, models.AppraisalStatusPending, models.AppraisalStatusAnalyzing); err != nil {
		s.fail(appraisal.ID, "lifecycle conflict")
		return nil, fmt.Errorf("transition to analyzing: %w", err)
	}

	result, err := s.analyzeWithRetry(ctx, appraiseInput(in.Category, in.Description, in.Images))
	if err != nil {
		s.fail(appraisal.ID, failureReason(err))
		return nil, err
	}

	if err := s.finish(appraisal.ID, result, models.AnalysisTypeAIInitial); err != nil {
		return nil, err
	}

	return s.repo.GetByID(appraisal.ID)
}

// Reanalyze runs a fresh analysis over the stored images of a completed
// appraisal. It consumes entitlement like a new submission and appends an
// ai_revision history entry; a failed revision leaves the previous result
// untouched.
func (s *Service) Reanalyze(ctx context.Context, appraisalID uint) (*models.Appraisal, error) {
	appraisal, err := s.repo.GetByID(appraisalID)
	if err != nil {
		return nil, err
	}
	if appraisal.Status != models.AppraisalStatusCompleted {
		return nil, fmt.Errorf("appraisal %d is %s, only completed appraisals can be re-analyzed",
			appraisalID, appraisal.Status)
	}

	if appraisal.UserID != nil {
		if _, err := s.evaluator.Consume(*appraisal.UserID); err != nil {
			return nil, err
		}
	}

	input := aiclient.AppraiseInput{
		Category:    appraisal.Category,
		Description: appraisal.ItemDescription,
	}
	for _, img := range appraisal.Images {
		data, err := s.blobs.Get(ctx, img.StoragePath)
		if err != nil {
			return nil, err
		}
		input.Images = append(input.Images, aiclient.ImageInput{
			Data:     data,
			MimeType: img.MimeType,
			FileName: img.FileName,
		})
	}

	result, err := s.analyzeWithRetry(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ApplyRevision(appraisal.ID, toRepoResult(result)); err != nil {
		return nil, err
	}
	s.appendHistory(appraisal.ID, result, models.AnalysisTypeAIRevision)

	return s.repo.GetByID(appraisal.ID)
}

// SweepStale marks analyzing appraisals without progress past maxAge as
// failed. The consumed entitlement is deliberately not refunded.
func (s *Service) SweepStale(maxAge time.Duration) (int, error) {
	stale, err := s.repo.ListStaleAnalyzing(time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, appraisal := range stale {
		if err := s.repo.MarkFailed(appraisal.ID, "analysis timed out"); err != nil {
			log.Errorf("[Appraisal] sweep of %d failed: %v", appraisal.ID, err)
			continue
		}
		swept++
	}
	if swept > 0 {
		log.Infof("[Appraisal] swept %d stale analyzing appraisals to failed", swept)
	}
	return swept, nil
}

// StartSweeper runs SweepStale periodically until the context is canceled.
func (s *Service) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepStale(maxAge); err != nil {
					log.Errorf("[Appraisal] sweeper: %v", err)
				}
			}
		}
	}()
}

// storeImages uploads all blobs concurrently and persists the image rows only
// after every upload confirmed. Display order is fixed from the input slice
// position, not upload completion order, so the primary image is
// deterministic.
func (s *Service) storeImages(ctx context.Context, appraisal *models.Appraisal, images []ImageUpload) error {
	if len(images) == 0 {
		return nil
	}

	paths := make([]string, len(images))
	errs := make([]error, len(images))

	var wg sync.WaitGroup
	for i := range images {
		wg.Add(1)
		go func(order int) {
			defer wg.Done()
			img := images[order]
			key := fmt.Sprintf("appraisals/%s/%02d_%s", appraisal.UUID, order, sanitizeFileName(img.FileName))
			paths[order], errs[order] = s.blobs.Upload(ctx, key, img.Data, img.MimeType)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			s.cleanupBlobs(ctx, paths, errs)
			return err
		}
	}

	for i, img := range images {
		row := &models.AppraisalImage{
			AppraisalID:  appraisal.ID,
			StoragePath:  paths[i],
			FileName:     img.FileName,
			FileSize:     int64(len(img.Data)),
			MimeType:     img.MimeType,
			DisplayOrder: i,
			IsPrimary:    i == 0,
		}
		row.CameraModel, row.TakenAt = extractCaptureInfo(img.Data)

		if err := s.repo.AddImage(row); err != nil {
			return fmt.Errorf("persist image %d: %w", i, err)
		}
	}

	return nil
}

// cleanupBlobs removes the blobs of a partially failed upload batch so no
// orphaned objects remain.
func (s *Service) cleanupBlobs(ctx context.Context, paths []string, errs []error) {
	for i, path := range paths {
		if errs[i] == nil && path != "" {
			if err := s.blobs.Delete(ctx, path); err != nil {
				log.Warnf("[Appraisal] orphan blob cleanup of %s failed: %v", path, err)
			}
		}
	}
}

// analyzeWithRetry calls the provider, retrying with doubling backoff on
// transport errors only. Parse and validation errors are terminal for the
// request; retrying them would reproduce the same failure.
func (s *Service) analyzeWithRetry(ctx context.Context, in aiclient.AppraiseInput) (*aiclient.Result, error) {
	var lastErr error
	backoff := s.retryBackoff

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &aiclient.TransportError{Op: "messages", Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, err := s.provider.Appraise(ctx, in)
		if err == nil {
			return result, nil
		}

		var transport *aiclient.TransportError
		if !errors.As(err, &transport) {
			return nil, err
		}
		lastErr = err
		log.Warnf("[Appraisal] analysis attempt %d/%d failed: %v", attempt+1, s.maxAttempts, err)
	}

	return nil, lastErr
}

func (s *Service) finish(id uint, result *aiclient.Result, analysisType string) error {
	if err := s.repo.Complete(id, toRepoResult(result)); err != nil {
		return fmt.Errorf("complete appraisal: %w", err)
	}
	s.appendHistory(id, result, analysisType)
	return nil
}

func (s *Service) appendHistory(id uint, result *aiclient.Result, analysisType string) {
	raw, err := json.Marshal(result)
	if err != nil {
		log.Errorf("[Appraisal] history payload for %d: %v", id, err)
		return
	}
	entry := &models.ValuationHistory{
		AppraisalID:  id,
		AnalysisType: analysisType,
		AnalysisData: models.JSON(raw),
		PerformedBy:  result.ModelVersion,
	}
	if err := s.repo.AppendHistory(entry); err != nil {
		// history is an audit trail, not the result of record; log and move on
		log.Errorf("[Appraisal] append history for %d: %v", id, err)
	}
}

func (s *Service) fail(id uint, reason string) {
	if err := s.repo.MarkFailed(id, reason); err != nil {
		log.Errorf("[Appraisal] mark %d failed: %v", id, err)
	}
}

func toRepoResult(result *aiclient.Result) *repository.AppraisalResult {
	raw, _ := json.Marshal(result)
	return &repository.AppraisalResult{
		ItemIdentification:   result.ItemIdentification,
		EstimatedValueLow:    result.EstimatedValueLow,
		EstimatedValueHigh:   result.EstimatedValueHigh,
		Currency:             result.Currency,
		ConfidenceScore:      result.ConfidenceScore,
		ConditionAssessment:  result.ConditionAssessment,
		ConditionRating:      result.ConditionRating,
		ValuationMethodology: result.ValuationMethodology,
		MarketContext:        result.MarketContext,
		MarketType:           result.MarketType,
		Recommendations:      result.Recommendations,
		RequiresExpertReview: result.RequiresExpertReview,
		RawAnalysis:          raw,
		CompletedAt:          time.Now(),
	}
}

func appraiseInput(category, description string, images []ImageUpload) aiclient.AppraiseInput {
	in := aiclient.AppraiseInput{
		Category:    category,
		Description: description,
	}
	for _, img := range images {
		in.Images = append(in.Images, aiclient.ImageInput{
			Data:     img.Data,
			MimeType: img.MimeType,
			FileName: img.FileName,
		})
	}
	return in
}

// failureReason maps the error taxonomy to the user-facing failure classes:
// limit reached, transient trouble, or "we could not understand the item".
func failureReason(err error) string {
	var transport *aiclient.TransportError
	if errors.As(err, &transport) {
		return "analysis provider unavailable: " + err.Error()
	}
	var parse *aiclient.ParseError
	if errors.As(err, &parse) {
		return "analysis result could not be understood: " + err.Error()
	}
	return err.Error()
}

// extractCaptureInfo pulls camera model and capture time out of EXIF data
// when present. Photos without EXIF simply yield nils.
func extractCaptureInfo(data []byte) (*string, *time.Time) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}

	var model *string
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil && v != "" {
			model = &v
		}
	}

	var taken *time.Time
	if t, err := x.DateTime(); err == nil {
		taken = &t
	}

	return model, taken
}

func sanitizeFileName(name string) string {
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "image"
	}
	return base
}
