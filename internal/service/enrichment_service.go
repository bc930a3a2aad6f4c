package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/client"
	"github.com/recipecast/api/internal/model"
	"github.com/recipecast/api/internal/ratelimit"
)

const noAnswerFallback = "I'm sorry, I couldn't find an answer to that question in the video."

const ingredientSystemPrompt = "You are a precise ingredient parser. Respond only with valid JSON arrays containing ingredients."

const ingredientPromptTemplate = `Extract ingredients from this recipe transcript.
Return ONLY a JSON array with no additional text or formatting.
Each ingredient should have these fields:
- name (required, string)
- quantity (optional, string)
- unit (optional, string)
- notes (optional, string for preparation notes)

Example response (exact format):
[{"name":"flour","quantity":"2","unit":"cups","notes":"all-purpose"},{"name":"sugar","quantity":"1","unit":"cup"}]

Rules:
1. Return ONLY the JSON array, no other text
2. Standardize measurements (e.g., "one" -> "1")
3. Combine duplicate ingredients
4. Exclude cooking equipment
5. Keep ingredient names simple and standardized

Transcript:
%s`

const questionSystemPrompt = `You are a helpful cooking assistant. Answer questions about the recipe using only the video transcript provided.
If the transcript does not contain the answer, say so briefly. Keep answers short and practical.`

const questionPromptTemplate = `Video transcript:
%s

Question: %s`

// ChatCompleter is the language-model call the enrichment engine needs.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, system, user string, opts client.CompletionOptions) (string, error)
}

// Enricher derives structured data from transcript text.
type Enricher interface {
	ExtractIngredients(ctx context.Context, transcript string) ([]model.Ingredient, error)
	AnswerQuestion(ctx context.Context, question, transcript string) (string, error)
}

// EnrichmentService calls the language model under a shared rate limit
type EnrichmentService struct {
	llm     ChatCompleter
	limiter ratelimit.Limiter
	log     *logrus.Entry
}

// NewEnrichmentService creates an enrichment service. limiter must be the
// process-wide instance.
func NewEnrichmentService(llm ChatCompleter, limiter ratelimit.Limiter, log *logrus.Entry) *EnrichmentService {
	return &EnrichmentService{llm: llm, limiter: limiter, log: log}
}

// ExtractIngredients asks the model for the ingredient list in transcript.
func (s *EnrichmentService) ExtractIngredients(ctx context.Context, transcript string) ([]model.Ingredient, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	response, err := s.llm.ChatCompletion(ctx, ingredientSystemPrompt, fmt.Sprintf(ingredientPromptTemplate, transcript),
		client.CompletionOptions{Temperature: 0.1, MaxTokens: 1000})
	if err != nil {
		return nil, classifyLLMError(err, apperr.ErrEnrichmentFailed, "Failed to extract ingredients")
	}
	if strings.TrimSpace(response) == "" {
		return nil, apperr.New(apperr.ErrEnrichmentFailed, "Failed to extract ingredients", errors.New("no response from model"))
	}

	cleaned := cleanJSON(response)
	s.log.WithField("response", cleaned).Debug("cleaned model response")

	ingredients, err := parseIngredients(cleaned)
	if err != nil {
		s.log.WithError(err).Warn("model returned unparseable ingredient list")
		return nil, apperr.New(apperr.ErrEnrichmentParse, "Failed to parse ingredients from response", err)
	}
	return ingredients, nil
}

// AnswerQuestion answers a free-form question using transcript as context.
func (s *EnrichmentService) AnswerQuestion(ctx context.Context, question, transcript string) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	response, err := s.llm.ChatCompletion(ctx, questionSystemPrompt, fmt.Sprintf(questionPromptTemplate, transcript, question),
		client.CompletionOptions{Temperature: 0.7, MaxTokens: 500})
	if err != nil {
		return "", classifyLLMError(err, apperr.ErrEnrichmentFailed, "Failed to get answer")
	}

	answer := strings.TrimSpace(response)
	if answer == "" {
		return noAnswerFallback, nil
	}
	return answer, nil
}

// classifyLLMError keeps quota and configuration kinds intact and folds
// everything else into kind.
func classifyLLMError(err error, kind error, msg string) error {
	if errors.Is(err, apperr.ErrQuotaExceeded) || errors.Is(err, apperr.ErrNotConfigured) {
		return err
	}
	return apperr.New(kind, msg, err)
}

// cleanJSON strips markdown code fences and surrounding whitespace.
func cleanJSON(s string) string {
	s = strings.ReplaceAll(s, "```json\n", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```\n", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseIngredients(s string) ([]model.Ingredient, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.New("response is not an array")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	parsed := make([]model.Ingredient, 0, len(entries))
	for _, entry := range entries {
		fields, ok := decodeEntry(entry)
		if !ok {
			continue
		}
		parsed = append(parsed, model.Ingredient{
			Name:     looseString(fields["name"]),
			Quantity: looseString(fields["quantity"]),
			Unit:     looseString(fields["unit"]),
			Notes:    looseString(fields["notes"]),
		})
	}
	return normalizeIngredients(parsed), nil
}

// decodeEntry reads one array element as an object. Anything else is skipped.
func decodeEntry(entry json.RawMessage) (map[string]interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(entry))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// looseString renders a scalar field as text; models often emit quantities
// as numbers. null, objects and arrays become empty.
func looseString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// normalizeIngredients drops unnamed entries and merges repeated names,
// keeping the first occurrence's position and filling its empty fields.
func normalizeIngredients(in []model.Ingredient) []model.Ingredient {
	out := make([]model.Ingredient, 0, len(in))
	index := make(map[string]int, len(in))

	for _, ing := range in {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			continue
		}
		key := strings.ToLower(ing.Name)
		if i, ok := index[key]; ok {
			merged := &out[i]
			if merged.Quantity == "" {
				merged.Quantity = ing.Quantity
			}
			if merged.Unit == "" {
				merged.Unit = ing.Unit
			}
			if merged.Notes == "" {
				merged.Notes = ing.Notes
			}
			continue
		}
		index[key] = len(out)
		out = append(out, ing)
	}
	return out
}
