package appraisal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/app/repository"
	"github.com/vkarlsson/vardera/internal/pkg/aiclient"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
)

// fakeRepo is an in-memory AppraisalRepository.
type fakeRepo struct {
	mu         sync.Mutex
	nextID     uint
	appraisals map[uint]*models.Appraisal
	images     map[uint][]models.AppraisalImage
	history    map[uint][]models.ValuationHistory
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		appraisals: map[uint]*models.Appraisal{},
		images:     map[uint][]models.AppraisalImage{},
		history:    map[uint][]models.ValuationHistory{},
	}
}

func (r *fakeRepo) Create(a *models.Appraisal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	if a.UUID == "" {
		a.UUID = fmt.Sprintf("uuid-%d", a.ID)
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	copied := *a
	r.appraisals[a.ID] = &copied
	return nil
}

func (r *fakeRepo) GetByID(id uint) (*models.Appraisal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appraisals[id]
	if !ok {
		return nil, fmt.Errorf("appraisal %d not found", id)
	}
	copied := *a
	copied.Images = append([]models.AppraisalImage(nil), r.images[id]...)
	copied.History = append([]models.ValuationHistory(nil), r.history[id]...)
	return &copied, nil
}

func (r *fakeRepo) GetByUUID(uuid string) (*models.Appraisal, error) {
	r.mu.Lock()
	id := uint(0)
	for _, a := range r.appraisals {
		if a.UUID == uuid {
			id = a.ID
		}
	}
	r.mu.Unlock()
	if id == 0 {
		return nil, fmt.Errorf("appraisal %s not found", uuid)
	}
	return r.GetByID(id)
}

func (r *fakeRepo) GetByUserID(userID uint, offset, limit int) ([]models.Appraisal, error) {
	return nil, nil
}

func (r *fakeRepo) CountByUserID(userID uint) (int64, error) { return 0, nil }

func (r *fakeRepo) UpdateStatus(id uint, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appraisals[id]
	if !ok || a.Status != from {
		return repository.ErrStatusConflict
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) MarkFailed(id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appraisals[id]
	if !ok {
		return fmt.Errorf("appraisal %d not found", id)
	}
	if a.Status == models.AppraisalStatusPending || a.Status == models.AppraisalStatusAnalyzing {
		a.Status = models.AppraisalStatusFailed
		a.FailureReason = reason
	}
	return nil
}

func (r *fakeRepo) Complete(id uint, result *repository.AppraisalResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appraisals[id]
	if !ok || a.Status != models.AppraisalStatusAnalyzing {
		return repository.ErrStatusConflict
	}
	applyResult(a, result)
	a.Status = models.AppraisalStatusCompleted
	return nil
}

func (r *fakeRepo) ApplyRevision(id uint, result *repository.AppraisalResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appraisals[id]
	if !ok || a.Status != models.AppraisalStatusCompleted {
		return repository.ErrStatusConflict
	}
	applyResult(a, result)
	return nil
}

func applyResult(a *models.Appraisal, result *repository.AppraisalResult) {
	a.ItemIdentification = result.ItemIdentification
	a.EstimatedValueLow = &result.EstimatedValueLow
	a.EstimatedValueHigh = &result.EstimatedValueHigh
	a.Currency = result.Currency
	a.ConfidenceScore = &result.ConfidenceScore
	a.ConditionRating = result.ConditionRating
	a.RequiresExpertReview = result.RequiresExpertReview
	completed := result.CompletedAt
	a.CompletedAt = &completed
}

func (r *fakeRepo) AddImage(image *models.AppraisalImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[image.AppraisalID] = append(r.images[image.AppraisalID], *image)
	return nil
}

func (r *fakeRepo) GetImages(appraisalID uint) ([]models.AppraisalImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AppraisalImage(nil), r.images[appraisalID]...), nil
}

func (r *fakeRepo) AppendHistory(entry *models.ValuationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.AppraisalID] = append(r.history[entry.AppraisalID], *entry)
	return nil
}

func (r *fakeRepo) GetHistory(appraisalID uint) ([]models.ValuationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ValuationHistory(nil), r.history[appraisalID]...), nil
}

func (r *fakeRepo) ListStaleAnalyzing(updatedBefore time.Time) ([]models.Appraisal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []models.Appraisal
	for _, a := range r.appraisals {
		if a.Status == models.AppraisalStatusAnalyzing && a.UpdatedAt.Before(updatedBefore) {
			stale = append(stale, *a)
		}
	}
	return stale, nil
}

// fakeEntRepo backs the evaluator with in-memory counters.
type fakeEntRepo struct {
	mu           sync.Mutex
	limit        int
	used         int
	credits      int
	consumeCalls int
	failing      bool
}

func (f *fakeEntRepo) EnsureUsage(userID uint) (*models.UsageTracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("storage down")
	}
	return &models.UsageTracking{
		UserID:          userID,
		AppraisalsUsed:  f.used,
		AppraisalsLimit: f.limit,
		PeriodStart:     time.Now().AddDate(0, 0, -1),
		PeriodEnd:       time.Now().AddDate(0, 1, 0),
	}, nil
}

func (f *fakeEntRepo) RolloverPeriod(userID uint, now time.Time) error { return nil }

func (f *fakeEntRepo) SumCredits(userID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errors.New("storage down")
	}
	return f.credits, nil
}

func (f *fakeEntRepo) ConsumePlanUsage(userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errors.New("storage down")
	}
	f.consumeCalls++
	if f.limit == models.UnlimitedAppraisals || f.used < f.limit {
		f.used++
		return true, nil
	}
	return false, nil
}

func (f *fakeEntRepo) ConsumeOldestCredit(userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credits > 0 {
		f.credits--
		return true, nil
	}
	return false, nil
}

func (f *fakeEntRepo) GrantCredits(userID uint, count int, source, paymentRef string) (*models.AppraisalCredit, error) {
	return nil, nil
}

func (f *fakeEntRepo) ListCredits(userID uint) ([]models.AppraisalCredit, error) { return nil, nil }

func (f *fakeEntRepo) SetPlan(userID uint, plan entitlements.Plan) error { return nil }

// fakeProvider scripts analysis outcomes.
type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	errs   []error // consumed per call; nil entry means success
	result *aiclient.Result
}

func (p *fakeProvider) Appraise(ctx context.Context, in aiclient.AppraiseInput) (*aiclient.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.calls < len(p.errs) {
		err = p.errs[p.calls]
	}
	p.calls++
	if err != nil {
		return nil, err
	}
	res := *p.result
	return &res, nil
}

// fakeBlobs is an in-memory BlobStore.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
	failKey string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (b *fakeBlobs) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.failKey != "" && strings.Contains(key, b.failKey) {
		return "", errors.New("upload refused")
	}
	b.objects[key] = data
	return key, nil
}

func (b *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no blob %s", key)
	}
	return data, nil
}

func (b *fakeBlobs) PublicURL(path string) string { return "https://blobs.test/" + path }

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func goodResult() *aiclient.Result {
	return &aiclient.Result{
		ItemIdentification: "Seiko 6309-7040 dive watch, 1978",
		EstimatedValueLow:  350,
		EstimatedValueHigh: 600,
		Currency:           "USD",
		ConditionRating:    "Good",
		ConfidenceScore:    72,
		ModelVersion:       "claude-3-5-sonnet-latest",
	}
}

func newTestService(ent *fakeEntRepo, provider aiclient.Provider, blobs *fakeBlobs) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	svc := NewService(repo, entitlements.NewEvaluator(ent), provider, blobs)
	svc.retryBackoff = time.Millisecond
	return svc, repo
}

func submitInput(userID *uint, imageCount int) SubmitInput {
	in := SubmitInput{
		UserID:      userID,
		Category:    "vintage-watches",
		Description: "Seiko dive watch, 1978, some scratches",
	}
	for i := 0; i < imageCount; i++ {
		in.Images = append(in.Images, ImageUpload{
			Data:     []byte(fmt.Sprintf("image-%d", i)),
			FileName: fmt.Sprintf("photo-%d.jpg", i),
			MimeType: "image/jpeg",
		})
	}
	return in
}

func uintPtr(v uint) *uint { return &v }

func TestSubmit_UnlimitedPlanCompletes(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	provider := &fakeProvider{result: goodResult()}
	blobs := newFakeBlobs()
	svc, repo := newTestService(ent, provider, blobs)

	got, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 2))
	require.NoError(t, err)

	assert.Equal(t, models.AppraisalStatusCompleted, got.Status)
	assert.NotEmpty(t, got.ItemIdentification)
	require.NotNil(t, got.EstimatedValueLow)
	require.NotNil(t, got.EstimatedValueHigh)
	assert.Less(t, *got.EstimatedValueLow, *got.EstimatedValueHigh)
	require.NotNil(t, got.ConfidenceScore)
	assert.GreaterOrEqual(t, *got.ConfidenceScore, 0)
	assert.LessOrEqual(t, *got.ConfidenceScore, 100)
	assert.NotNil(t, got.CompletedAt)

	history, err := repo.GetHistory(got.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AnalysisTypeAIInitial, history[0].AnalysisType)
	assert.Equal(t, "claude-3-5-sonnet-latest", history[0].PerformedBy)
}

func TestSubmit_DeniedBeforeAnyUpload(t *testing.T) {
	ent := &fakeEntRepo{limit: 1, used: 1}
	provider := &fakeProvider{result: goodResult()}
	blobs := newFakeBlobs()
	svc, repo := newTestService(ent, provider, blobs)

	_, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 2))
	require.ErrorIs(t, err, entitlements.ErrLimitReached)

	assert.Equal(t, 0, blobs.uploads, "denial must happen before any image upload")
	assert.Equal(t, 0, provider.calls)

	stored, err := repo.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, models.AppraisalStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "limit")
}

func TestSubmit_ValidationBeforeAnyRecord(t *testing.T) {
	ent := &fakeEntRepo{limit: 3}
	provider := &fakeProvider{result: goodResult()}
	svc, repo := newTestService(ent, provider, newFakeBlobs())

	in := submitInput(uintPtr(1), 1)
	in.Description = "  "
	_, err := svc.Submit(context.Background(), in)

	var vErr *aiclient.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, ent.consumeCalls, "validation failure must not consume entitlement")
	_, err = repo.GetByID(1)
	assert.Error(t, err, "no record should be created")
}

func TestSubmit_TransportFailureMarksFailed(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	transportErr := &aiclient.TransportError{Op: "messages", Err: errors.New("timeout")}
	provider := &fakeProvider{errs: []error{transportErr, transportErr, transportErr}}
	svc, repo := newTestService(ent, provider, newFakeBlobs())

	_, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 1))
	var tErr *aiclient.TransportError
	require.ErrorAs(t, err, &tErr)

	assert.Equal(t, defaultMaxAttempts, provider.calls, "transport errors are retried")
	assert.Equal(t, 1, ent.consumeCalls, "retries must not double-charge")

	stored, err := repo.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, models.AppraisalStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "provider unavailable")
	assert.Empty(t, stored.ItemIdentification, "no structured fields on failure")
}

func TestSubmit_TransientTransportErrorRecovers(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	transportErr := &aiclient.TransportError{Op: "messages", Err: errors.New("connection reset")}
	provider := &fakeProvider{errs: []error{transportErr, nil}, result: goodResult()}
	svc, _ := newTestService(ent, provider, newFakeBlobs())

	got, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 1))
	require.NoError(t, err)
	assert.Equal(t, models.AppraisalStatusCompleted, got.Status)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, 1, ent.consumeCalls)
}

func TestSubmit_ParseErrorIsNotRetried(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	provider := &fakeProvider{errs: []error{&aiclient.ParseError{Reason: "no JSON object found in reply"}}}
	svc, repo := newTestService(ent, provider, newFakeBlobs())

	_, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 1))
	var pErr *aiclient.ParseError
	require.ErrorAs(t, err, &pErr)

	assert.Equal(t, 1, provider.calls, "parse failures are terminal, not transient")

	stored, err := repo.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, models.AppraisalStatusFailed, stored.Status)
}

func TestSubmit_ImageRoundTrip(t *testing.T) {
	for n := 0; n <= 5; n++ {
		n := n
		t.Run(fmt.Sprintf("%d images", n), func(t *testing.T) {
			ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
			provider := &fakeProvider{result: goodResult()}
			svc, repo := newTestService(ent, provider, newFakeBlobs())

			got, err := svc.Submit(context.Background(), submitInput(uintPtr(1), n))
			require.NoError(t, err)

			images, err := repo.GetImages(got.ID)
			require.NoError(t, err)
			require.Len(t, images, n)

			primaries := 0
			for i, img := range images {
				assert.Equal(t, i, img.DisplayOrder, "display order must be contiguous from 0")
				if img.IsPrimary {
					primaries++
					assert.Equal(t, 0, img.DisplayOrder, "primary is the image at order 0")
				}
			}
			if n > 0 {
				assert.Equal(t, 1, primaries)
			}
		})
	}
}

func TestSubmit_PartialUploadFailureCleansUp(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	provider := &fakeProvider{result: goodResult()}
	blobs := newFakeBlobs()
	blobs.failKey = "01_" // second image fails
	svc, repo := newTestService(ent, provider, blobs)

	_, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 3))
	require.Error(t, err)

	stored, getErr := repo.GetByID(1)
	require.NoError(t, getErr)
	assert.Equal(t, models.AppraisalStatusFailed, stored.Status)

	images, _ := repo.GetImages(1)
	assert.Empty(t, images, "no image rows may point at missing blobs")
	assert.Empty(t, blobs.objects, "successful uploads of a failed batch are removed")
	assert.Equal(t, 0, provider.calls)
}

func TestSubmit_EntitlementStorageFailureFailsClosed(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals, failing: true}
	provider := &fakeProvider{result: goodResult()}
	blobs := newFakeBlobs()
	svc, repo := newTestService(ent, provider, blobs)

	_, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, entitlements.ErrLimitReached)

	assert.Equal(t, 0, blobs.uploads)
	stored, getErr := repo.GetByID(1)
	require.NoError(t, getErr)
	assert.Equal(t, models.AppraisalStatusFailed, stored.Status)
}

func TestSubmit_AnonymousSkipsEntitlement(t *testing.T) {
	ent := &fakeEntRepo{limit: 0}
	provider := &fakeProvider{result: goodResult()}
	svc, _ := newTestService(ent, provider, newFakeBlobs())

	got, err := svc.Submit(context.Background(), submitInput(nil, 1))
	require.NoError(t, err)
	assert.Equal(t, models.AppraisalStatusCompleted, got.Status)
	assert.Equal(t, 0, ent.consumeCalls)
}

func TestReanalyze_AppendsRevisionHistory(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	provider := &fakeProvider{result: goodResult()}
	blobs := newFakeBlobs()
	svc, repo := newTestService(ent, provider, blobs)

	first, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 2))
	require.NoError(t, err)

	second, err := svc.Reanalyze(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppraisalStatusCompleted, second.Status)

	history, err := repo.GetHistory(first.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.AnalysisTypeAIInitial, history[0].AnalysisType)
	assert.Equal(t, models.AnalysisTypeAIRevision, history[1].AnalysisType)
	assert.Equal(t, 2, ent.consumeCalls, "a revision consumes entitlement like a submission")
}

func TestReanalyze_RejectsNonCompleted(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	provider := &fakeProvider{errs: []error{&aiclient.ParseError{Reason: "junk"}}}
	svc, _ := newTestService(ent, provider, newFakeBlobs())

	_, err := svc.Submit(context.Background(), submitInput(uintPtr(1), 1))
	require.Error(t, err)

	_, err = svc.Reanalyze(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only completed")
}

func TestSweepStale(t *testing.T) {
	ent := &fakeEntRepo{limit: models.UnlimitedAppraisals}
	provider := &fakeProvider{result: goodResult()}
	svc, repo := newTestService(ent, provider, newFakeBlobs())

	stuck := &models.Appraisal{
		Category:        "vintage-watches",
		ItemDescription: "stuck",
		Status:          models.AppraisalStatusPending,
	}
	require.NoError(t, repo.Create(stuck))
	require.NoError(t, repo.UpdateStatus(stuck.ID, models.AppraisalStatusPending, models.AppraisalStatusAnalyzing))
	repo.mu.Lock()
	repo.appraisals[stuck.ID].UpdatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	fresh := &models.Appraisal{
		Category:        "vintage-watches",
		ItemDescription: "fresh",
		Status:          models.AppraisalStatusPending,
	}
	require.NoError(t, repo.Create(fresh))
	require.NoError(t, repo.UpdateStatus(fresh.ID, models.AppraisalStatusPending, models.AppraisalStatusAnalyzing))

	swept, err := svc.SweepStale(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	stuckAfter, _ := repo.GetByID(stuck.ID)
	assert.Equal(t, models.AppraisalStatusFailed, stuckAfter.Status)
	assert.Contains(t, stuckAfter.FailureReason, "timed out")

	freshAfter, _ := repo.GetByID(fresh.ID)
	assert.Equal(t, models.AppraisalStatusAnalyzing, freshAfter.Status)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.AppraisalStatusPending, models.AppraisalStatusAnalyzing, true},
		{models.AppraisalStatusPending, models.AppraisalStatusFailed, true},
		{models.AppraisalStatusPending, models.AppraisalStatusCompleted, false},
		{models.AppraisalStatusAnalyzing, models.AppraisalStatusCompleted, true},
		{models.AppraisalStatusAnalyzing, models.AppraisalStatusFailed, true},
		{models.AppraisalStatusAnalyzing, models.AppraisalStatusPending, false},
		{models.AppraisalStatusCompleted, models.AppraisalStatusExpertReview, true},
		{models.AppraisalStatusCompleted, models.AppraisalStatusFailed, false},
		{models.AppraisalStatusFailed, models.AppraisalStatusAnalyzing, false},
		{models.AppraisalStatusExpertReview, models.AppraisalStatusCompleted, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
