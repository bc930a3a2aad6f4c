package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/recipecast/api/internal/model"
	"github.com/recipecast/api/pkg/response"
)

// QuestionAnswerer answers questions against a transcript.
type QuestionAnswerer interface {
	AskQuestion(ctx context.Context, question, transcript string) (*model.QuestionResponse, error)
}

type QAHandler struct {
	service   QuestionAnswerer
	validator *validator.Validate
}

func NewQAHandler(svc QuestionAnswerer, v *validator.Validate) *QAHandler {
	return &QAHandler{
		service:   svc,
		validator: v,
	}
}

// Ask handles POST /api/qa/ask
func (h *QAHandler) Ask(c *fiber.Ctx) error {
	var req model.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Question and context are required", formatValidationErrors(err))
	}

	result, err := h.service.AskQuestion(c.Context(), req.Question, req.Context)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
