package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/parser"
	"github.com/maltedev/listing-scraper/internal/reconciler"
	"github.com/maltedev/listing-scraper/internal/storage/sqlite"
)

const listingHTML = `<html><body>
<div class="card-body">
  <img class="img-fluid card-img-top" src="/img/1.png">
  <h4 class="price float-end">$69.99</h4>
  <a class="title" title="Lenovo IdeaTab">Lenovo IdeaTab</a>
  <p class="description">7" screen</p>
  <p class="review-count float-end">7 reviews</p>
  <span class="ws-icon ws-icon-star"></span><span class="ws-icon ws-icon-star"></span>
</div>
<div class="card-body">
  <img class="img-fluid card-img-top" src="/img/2.png">
  <h4 class="price float-end">$88.99</h4>
  <a class="title" title="IdeaTab A3500L">IdeaTab A3500L</a>
  <p class="description">Black, 7 IPS</p>
  <p class="review-count float-end">12 reviews</p>
</div>
<div class="card-body">
  <h4 class="price float-end">$--</h4>
  <a class="title" title="Broken">Broken</a>
</div>
</body></html>`

type fakeSource struct {
	page *fakePage
	err  error
}

func (s *fakeSource) OpenPage() (PageProvider, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.page, nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRun(ctx context.Context, report *models.RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

type recordingObserver struct {
	reports []*models.RunReport
	errs    []error
}

func (o *recordingObserver) ObserveRun(report *models.RunReport, err error) {
	o.reports = append(o.reports, report)
	o.errs = append(o.errs, err)
}

func newTestPipeline(t *testing.T, page *fakePage, exportPath string) (*Pipeline, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))

	p := NewPipeline(
		PipelineConfig{URL: "https://example.test/tablets", ExportPath: exportPath},
		&fakeSource{page: page},
		testLoader(),
		parser.NewListingParser(parser.DefaultSelectors(), nil),
		reconciler.New(store, nil),
		nil,
	)
	return p, store
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	exportPath := filepath.Join(t.TempDir(), "results.csv")
	page := &fakePage{items: 3, perReveal: 3, maxReveals: 1, html: listingHTML}

	p, store := newTestPipeline(t, page, exportPath)

	pub := new(MockPublisher)
	pub.On("PublishRun", ctx, mock.AnythingOfType("*models.RunReport")).Return(nil)
	obs := &recordingObserver{}
	p.WithPublisher(pub).WithObserver(obs)

	report, err := p.Run(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "https://example.test/tablets", page.navigated)
	assert.True(t, page.closed)
	assert.Equal(t, 6, report.ItemsLoaded)
	assert.Equal(t, 1, report.Reveals)
	assert.True(t, report.Converged)
	assert.Equal(t, 2, report.Extracted)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 2, report.Committed)
	assert.Equal(t, string(reconciler.StateCommitted), report.State)
	assert.Equal(t, exportPath, report.ExportPath)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))

	pub.AssertExpectations(t)
	require.Len(t, obs.reports, 1)
	assert.NoError(t, obs.errs[0])
}

func TestPipelinePublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, &fakePage{items: 1, html: listingHTML}, "")

	pub := new(MockPublisher)
	pub.On("PublishRun", ctx, mock.Anything).Return(errors.New("redis down"))
	p.WithPublisher(pub)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(reconciler.StateCommitted), report.State)
	assert.Empty(t, report.ExportPath)
	pub.AssertExpectations(t)
}

func TestPipelineNavigateFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("browser crashed")}
	p := NewPipeline(PipelineConfig{URL: "https://example.test"}, source, testLoader(),
		parser.NewListingParser(parser.DefaultSelectors(), nil), reconciler.New(nil, nil), nil)
	obs := &recordingObserver{}
	p.WithObserver(obs)

	report, err := p.Run(context.Background())
	require.Error(t, err)

	var providerErr *UnrecoverableProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "open_page", providerErr.Op)
	assert.Equal(t, string(reconciler.StatePending), report.State)
	assert.NotEmpty(t, report.Error)
	require.Len(t, obs.errs, 1)
	assert.Error(t, obs.errs[0])
}

func TestPipelineUnusableProviderDuringLoad(t *testing.T) {
	page := &fakePage{items: 1, findErr: ErrProviderUnusable}
	p, store := newTestPipeline(t, page, "")

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnusable)
	assert.True(t, page.closed)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPipelineWithoutStore(t *testing.T) {
	page := &fakePage{items: 1, html: listingHTML}
	p := NewPipeline(PipelineConfig{URL: "https://example.test"}, &fakeSource{page: page}, testLoader(),
		parser.NewListingParser(parser.DefaultSelectors(), nil), reconciler.New(nil, nil), nil)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, string(reconciler.StateSkipped), report.State)
	assert.Equal(t, 0, report.Committed)
	assert.WithinDuration(t, time.Now(), report.FinishedAt, time.Minute)
}
