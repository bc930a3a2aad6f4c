package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/logger"
	"github.com/recipecast/api/internal/model"
	"github.com/recipecast/api/internal/ratelimit"
	"github.com/recipecast/api/internal/storage"
)

type fakeExtractor struct {
	dir   string
	err   error
	calls int
	path  string
}

func (f *fakeExtractor) Extract(ctx context.Context, videoID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.path = filepath.Join(f.dir, videoID+"-job.mp3")
	return f.path, os.WriteFile(f.path, []byte("mp3"), 0o644)
}

type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	submitID   string
	submitErr  error
	submitted  []string
	job        *model.TranscriptionJob
	pollErr    error
	sawFile    bool
}

func (f *fakeGateway) IsConfigured() bool { return f.configured }

func (f *fakeGateway) Submit(ctx context.Context, audioPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, audioPath)
	_, err := os.Stat(audioPath)
	f.sawFile = err == nil
	return f.submitID, f.submitErr
}

func (f *fakeGateway) Poll(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	job := *f.job
	job.ID = jobID
	return &job, nil
}

type fakeEnricher struct {
	mu          sync.Mutex
	ingredients []model.Ingredient
	err         error
	extractions int
	block       chan struct{}
	started     chan struct{}
	answer      string
	answerErr   error
}

func (f *fakeEnricher) ExtractIngredients(ctx context.Context, transcript string) ([]model.Ingredient, error) {
	f.mu.Lock()
	f.extractions++
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return f.ingredients, f.err
}

func (f *fakeEnricher) AnswerQuestion(ctx context.Context, question, transcript string) (string, error) {
	return f.answer, f.answerErr
}

func (f *fakeEnricher) Extractions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extractions
}

func completedJob(text string) *model.TranscriptionJob {
	return &model.TranscriptionJob{Status: model.StatusCompleted, Text: text}
}

func newOrchestrator(t *testing.T, ext AudioExtractor, gw TranscriptionGateway, enr Enricher) *TranscriptionService {
	t.Helper()
	store := storage.NewScratchStore(t.TempDir(), logger.Component(logger.Discard(), "storage"))
	return NewTranscriptionService(ext, gw, enr, store, logger.Component(logger.Discard(), "transcription"))
}

func TestStartJobSubmitsAndCleansUp(t *testing.T) {
	ext := &fakeExtractor{dir: t.TempDir()}
	gw := &fakeGateway{configured: true, submitID: "tx-42"}
	svc := newOrchestrator(t, ext, gw, &fakeEnricher{})

	resp, err := svc.StartJob(context.Background(), "vid")
	if err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	if resp.Status != model.StatusQueued || resp.ID != "tx-42" {
		t.Errorf("resp = %+v", resp)
	}
	if !gw.sawFile {
		t.Error("audio file should exist while being submitted")
	}
	if _, err := os.Stat(ext.path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch file not removed, stat err = %v", err)
	}
}

func TestStartJobSubmitFailureStillCleansUp(t *testing.T) {
	ext := &fakeExtractor{dir: t.TempDir()}
	gw := &fakeGateway{configured: true, submitErr: apperr.New(apperr.ErrUploadFailed, "", errors.New("503"))}
	svc := newOrchestrator(t, ext, gw, &fakeEnricher{})

	_, err := svc.StartJob(context.Background(), "vid")
	if !errors.Is(err, apperr.ErrTranscriptionStartFailed) || !errors.Is(err, apperr.ErrUploadFailed) {
		t.Fatalf("error = %v, want start failure wrapping upload failure", err)
	}
	if _, err := os.Stat(ext.path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch file not removed, stat err = %v", err)
	}
}

func TestStartJobExtractionFailureSkipsSubmit(t *testing.T) {
	ext := &fakeExtractor{err: apperr.New(apperr.ErrExtractionFailed, "", errors.New("exit 1"))}
	gw := &fakeGateway{configured: true}
	svc := newOrchestrator(t, ext, gw, &fakeEnricher{})

	_, err := svc.StartJob(context.Background(), "vid")
	if !errors.Is(err, apperr.ErrTranscriptionStartFailed) || !errors.Is(err, apperr.ErrExtractionFailed) {
		t.Fatalf("error = %v", err)
	}
	if len(gw.submitted) != 0 {
		t.Error("gateway must not be called after extraction failure")
	}
}

func TestStartJobNotConfiguredSkipsDownload(t *testing.T) {
	ext := &fakeExtractor{dir: t.TempDir()}
	svc := newOrchestrator(t, ext, &fakeGateway{}, &fakeEnricher{})

	_, err := svc.StartJob(context.Background(), "vid")
	if !errors.Is(err, apperr.ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
	if ext.calls != 0 {
		t.Error("extractor should not run without provider credentials")
	}
}

func TestQueryStatusNotCompleted(t *testing.T) {
	for _, status := range []model.TranscriptionStatus{model.StatusQueued, model.StatusProcessing} {
		enr := &fakeEnricher{}
		gw := &fakeGateway{job: &model.TranscriptionJob{Status: status}}
		svc := newOrchestrator(t, &fakeExtractor{}, gw, enr)

		resp, err := svc.QueryStatus(context.Background(), "j")
		if err != nil {
			t.Fatalf("%s: error = %v", status, err)
		}
		if resp.Status != status || resp.Text != "" || resp.Ingredients != nil || resp.IsExtractingIngredients {
			t.Errorf("%s: resp = %+v", status, resp)
		}
		if enr.Extractions() != 0 {
			t.Errorf("%s: enrichment should not run", status)
		}
	}
}

func TestQueryStatusErrorPassesProviderMessage(t *testing.T) {
	gw := &fakeGateway{job: &model.TranscriptionJob{Status: model.StatusError, Error: "audio too short"}}
	svc := newOrchestrator(t, &fakeExtractor{}, gw, &fakeEnricher{})

	resp, err := svc.QueryStatus(context.Background(), "j")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != model.StatusError || resp.Error != "audio too short" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestQueryStatusCompletedEnrichesOnce(t *testing.T) {
	enr := &fakeEnricher{ingredients: []model.Ingredient{{Name: "flour", Quantity: "2", Unit: "cups"}}}
	gw := &fakeGateway{job: completedJob("two cups flour")}
	svc := newOrchestrator(t, &fakeExtractor{}, gw, enr)

	for i := 0; i < 3; i++ {
		resp, err := svc.QueryStatus(context.Background(), "j")
		if err != nil {
			t.Fatalf("query %d: error = %v", i+1, err)
		}
		if resp.Text != "two cups flour" || len(resp.Ingredients) != 1 || resp.Ingredients[0].Name != "flour" {
			t.Errorf("query %d: resp = %+v", i+1, resp)
		}
	}
	if enr.Extractions() != 1 {
		t.Errorf("extractions = %d, want 1", enr.Extractions())
	}
}

func TestQueryStatusCachedEnrichmentIgnoresExhaustedLimiter(t *testing.T) {
	llm := &fakeLLM{response: `[{"name":"flour","quantity":2,"unit":"cups"}]`}
	enrichment := newEnrichment(llm, ratelimit.NewWindow(1, time.Hour))
	svc := newOrchestrator(t, &fakeExtractor{}, &fakeGateway{job: completedJob("two cups flour")}, enrichment)

	first, err := svc.QueryStatus(context.Background(), "j")
	if err != nil {
		t.Fatalf("first query: error = %v", err)
	}
	if len(first.Ingredients) != 1 || first.Ingredients[0].Quantity != "2" {
		t.Fatalf("first query: resp = %+v", first)
	}

	// The only slot is gone; a fresh model call would now be rejected
	if _, err := enrichment.AnswerQuestion(context.Background(), "q", "c"); !errors.Is(err, apperr.ErrRateLimitExceeded) {
		t.Fatalf("limiter not exhausted, error = %v", err)
	}

	second, err := svc.QueryStatus(context.Background(), "j")
	if err != nil {
		t.Fatalf("second query: error = %v", err)
	}
	if len(second.Ingredients) != 1 || second.Ingredients[0].Name != "flour" {
		t.Errorf("second query: resp = %+v", second)
	}
	if llm.Calls() != 1 {
		t.Errorf("llm calls = %d, want 1", llm.Calls())
	}
}

func TestQueryStatusCompletedWithEmptyTextSkipsEnrichment(t *testing.T) {
	enr := &fakeEnricher{}
	svc := newOrchestrator(t, &fakeExtractor{}, &fakeGateway{job: completedJob("   ")}, enr)

	resp, err := svc.QueryStatus(context.Background(), "j")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Ingredients != nil || enr.Extractions() != 0 {
		t.Errorf("resp = %+v, extractions = %d", resp, enr.Extractions())
	}
}

func TestQueryStatusConcurrentPollSeesInProgress(t *testing.T) {
	enr := &fakeEnricher{
		ingredients: []model.Ingredient{{Name: "egg"}},
		block:       make(chan struct{}),
		started:     make(chan struct{}),
	}
	svc := newOrchestrator(t, &fakeExtractor{}, &fakeGateway{job: completedJob("one egg")}, enr)

	done := make(chan *model.StatusResponse)
	go func() {
		resp, _ := svc.QueryStatus(context.Background(), "j")
		done <- resp
	}()
	<-enr.started

	second, err := svc.QueryStatus(context.Background(), "j")
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsExtractingIngredients || second.Ingredients != nil {
		t.Errorf("concurrent poll = %+v, want in-progress without ingredients", second)
	}
	if !svc.Enrichment("j").InProgress {
		t.Error("Enrichment() should report in progress")
	}

	close(enr.block)
	first := <-done
	if len(first.Ingredients) != 1 || first.IsExtractingIngredients {
		t.Errorf("first poll = %+v", first)
	}
	if enr.Extractions() != 1 {
		t.Errorf("extractions = %d, want 1", enr.Extractions())
	}
}

func TestQueryStatusRateLimitedBecomesStatusCheckFailed(t *testing.T) {
	gw := &fakeGateway{job: completedJob("text")}
	limiter := ratelimit.NewWindow(1, time.Hour)
	limiter.TryAcquire()
	enr := NewEnrichmentService(&fakeLLM{response: "[]"}, limiter, logger.Component(logger.Discard(), "enrichment"))
	svc := newOrchestrator(t, &fakeExtractor{}, gw, enr)

	_, err := svc.QueryStatus(context.Background(), "j")
	if !errors.Is(err, apperr.ErrStatusCheckFailed) || !errors.Is(err, apperr.ErrRateLimitExceeded) {
		t.Fatalf("error = %v, want status check failure carrying rate limit", err)
	}
	if apperr.UserMessage(err) != "Rate limit exceeded. Please try again in a minute." {
		t.Errorf("message = %q", apperr.UserMessage(err))
	}
	if svc.Enrichment("j").InProgress {
		t.Error("in-flight marker must be cleared after failure")
	}
}

func TestQueryStatusEnrichmentFailureIsSwallowedAndRetried(t *testing.T) {
	enr := &fakeEnricher{err: apperr.New(apperr.ErrEnrichmentParse, "", nil)}
	svc := newOrchestrator(t, &fakeExtractor{}, &fakeGateway{job: completedJob("text")}, enr)

	resp, err := svc.QueryStatus(context.Background(), "j")
	if err != nil {
		t.Fatalf("error = %v, want swallowed", err)
	}
	if resp.Status != model.StatusCompleted || resp.Ingredients != nil {
		t.Errorf("resp = %+v", resp)
	}

	enr.mu.Lock()
	enr.err = nil
	enr.ingredients = []model.Ingredient{{Name: "salt"}}
	enr.mu.Unlock()

	resp, _ = svc.QueryStatus(context.Background(), "j")
	if len(resp.Ingredients) != 1 {
		t.Errorf("retry resp = %+v", resp)
	}
	if enr.Extractions() != 2 {
		t.Errorf("extractions = %d, want 2", enr.Extractions())
	}
}

func TestQueryStatusQuotaExceededIsSwallowed(t *testing.T) {
	enr := &fakeEnricher{err: apperr.New(apperr.ErrQuotaExceeded, "", nil)}
	svc := newOrchestrator(t, &fakeExtractor{}, &fakeGateway{job: completedJob("text")}, enr)

	resp, err := svc.QueryStatus(context.Background(), "j")
	if err != nil || resp.Ingredients != nil {
		t.Fatalf("got (%+v, %v)", resp, err)
	}
}

func TestQueryStatusPollFailure(t *testing.T) {
	gw := &fakeGateway{pollErr: apperr.New(apperr.ErrStatusCheckFailed, "", errors.New("timeout"))}
	svc := newOrchestrator(t, &fakeExtractor{}, gw, &fakeEnricher{})

	if _, err := svc.QueryStatus(context.Background(), "j"); !errors.Is(err, apperr.ErrStatusCheckFailed) {
		t.Fatalf("error = %v", err)
	}
}

func TestAskQuestion(t *testing.T) {
	enr := &fakeEnricher{answer: "Use two eggs."}
	svc := newOrchestrator(t, &fakeExtractor{}, &fakeGateway{}, enr)

	resp, err := svc.AskQuestion(context.Background(), "How many eggs?", "crack two eggs")
	if err != nil || resp.Answer != "Use two eggs." {
		t.Fatalf("got (%+v, %v)", resp, err)
	}

	for _, tc := range [][2]string{{"", "ctx"}, {"q", " "}} {
		if _, err := svc.AskQuestion(context.Background(), tc[0], tc[1]); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("AskQuestion(%q, %q) error = %v, want ErrInvalidInput", tc[0], tc[1], err)
		}
	}
}
