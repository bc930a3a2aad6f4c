package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/model"
)

const rateLimitedStatusMessage = "Rate limit exceeded. Please try again in a minute."

// TranscriptionGateway is the speech-to-text provider.
type TranscriptionGateway interface {
	IsConfigured() bool
	Submit(ctx context.Context, audioPath string) (string, error)
	Poll(ctx context.Context, jobID string) (*model.TranscriptionJob, error)
}

// TranscriptionService drives a video through extraction, transcription and
// ingredient enrichment. Ingredient lists are cached per job id for the life
// of the process.
type TranscriptionService struct {
	extractor AudioExtractor
	gateway   TranscriptionGateway
	enricher  Enricher
	store     ScratchStorage
	log       *logrus.Entry

	mu       sync.Mutex
	cache    map[string][]model.Ingredient
	inFlight map[string]struct{}
}

// NewTranscriptionService wires the pipeline stages together
func NewTranscriptionService(extractor AudioExtractor, gateway TranscriptionGateway, enricher Enricher, store ScratchStorage, log *logrus.Entry) *TranscriptionService {
	return &TranscriptionService{
		extractor: extractor,
		gateway:   gateway,
		enricher:  enricher,
		store:     store,
		log:       log,
		cache:     make(map[string][]model.Ingredient),
		inFlight:  make(map[string]struct{}),
	}
}

// StartJob extracts the video's audio, submits it for transcription and
// returns the provider's job id. The scratch file is gone when StartJob returns.
func (s *TranscriptionService) StartJob(ctx context.Context, videoID string) (*model.StartResponse, error) {
	log := s.log.WithField("video_id", videoID)

	if !s.gateway.IsConfigured() {
		return nil, apperr.New(apperr.ErrTranscriptionStartFailed, "Failed to start transcription", apperr.NotConfigured("ASSEMBLY_AI_API_KEY"))
	}

	audioPath, err := s.extractor.Extract(ctx, videoID)
	if err != nil {
		log.WithError(err).Error("transcription start failed at extraction")
		return nil, apperr.New(apperr.ErrTranscriptionStartFailed, "Failed to start transcription", err)
	}
	defer s.store.Remove(audioPath)

	jobID, err := s.gateway.Submit(ctx, audioPath)
	if err != nil {
		log.WithError(err).Error("transcription start failed at submission")
		return nil, apperr.New(apperr.ErrTranscriptionStartFailed, "Failed to start transcription", err)
	}

	log.WithField("job_id", jobID).Info("transcription submitted")
	return &model.StartResponse{Status: model.StatusQueued, ID: jobID}, nil
}

// QueryStatus reports the provider status and, once the transcript is
// complete, the extracted ingredients. At most one extraction runs per job.
func (s *TranscriptionService) QueryStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.gateway.Poll(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.StatusResponse{
		Status: job.Status,
		Text:   job.Text,
		Error:  job.Error,
	}
	if job.Status != model.StatusCompleted || strings.TrimSpace(job.Text) == "" {
		return resp, nil
	}

	log := s.log.WithField("job_id", jobID)

	result, claimed := s.claim(jobID)
	if !claimed {
		resp.Ingredients = result.Ingredients
		resp.IsExtractingIngredients = result.InProgress
		return resp, nil
	}

	ingredients, err := s.enricher.ExtractIngredients(ctx, job.Text)
	s.release(jobID, ingredients, err)

	if err != nil {
		if errors.Is(err, apperr.ErrRateLimitExceeded) {
			log.Warn("ingredient extraction rate limited")
			return nil, apperr.New(apperr.ErrStatusCheckFailed, rateLimitedStatusMessage, err)
		}
		log.WithError(err).Warn("ingredient extraction failed, returning transcript without ingredients")
		return resp, nil
	}

	log.WithField("count", len(ingredients)).Info("ingredients extracted")
	resp.Ingredients = ingredients
	return resp, nil
}

// Enrichment returns what is currently known about a job's ingredients.
func (s *TranscriptionService) Enrichment(jobID string) model.EnrichmentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inFlight[jobID]
	return model.EnrichmentResult{Ingredients: s.cache[jobID], InProgress: busy}
}

// claim marks jobID as being enriched by the caller. When it returns false
// the result holds the cached list or the in-progress flag instead.
func (s *TranscriptionService) claim(jobID string) (model.EnrichmentResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ingredients, ok := s.cache[jobID]; ok {
		return model.EnrichmentResult{Ingredients: ingredients}, false
	}
	if _, busy := s.inFlight[jobID]; busy {
		return model.EnrichmentResult{InProgress: true}, false
	}
	s.inFlight[jobID] = struct{}{}
	return model.EnrichmentResult{}, true
}

func (s *TranscriptionService) release(jobID string, ingredients []model.Ingredient, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, jobID)
	if err == nil {
		s.cache[jobID] = ingredients
	}
}

// AskQuestion answers a question about a transcript the caller already has.
func (s *TranscriptionService) AskQuestion(ctx context.Context, question, transcript string) (*model.QuestionResponse, error) {
	question = strings.TrimSpace(question)
	transcript = strings.TrimSpace(transcript)
	if question == "" || transcript == "" {
		return nil, apperr.New(apperr.ErrInvalidInput, "Question and context are required", nil)
	}

	answer, err := s.enricher.AnswerQuestion(ctx, question, transcript)
	if err != nil {
		return nil, err
	}
	return &model.QuestionResponse{Answer: answer}, nil
}
