package model

// QuestionRequest represents the request body for POST /api/qa/ask
type QuestionRequest struct {
	Question string `json:"question" validate:"required"`
	Context  string `json:"context" validate:"required"`
}

// QuestionResponse represents the answer to a transcript question
type QuestionResponse struct {
	Answer string `json:"answer"`
}
