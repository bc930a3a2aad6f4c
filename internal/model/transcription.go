package model

// TranscriptionStatus mirrors the provider's status vocabulary.
type TranscriptionStatus string

const (
	StatusQueued     TranscriptionStatus = "queued"
	StatusProcessing TranscriptionStatus = "processing"
	StatusCompleted  TranscriptionStatus = "completed"
	StatusError      TranscriptionStatus = "error"
)

// IsTerminal reports whether polling should stop.
func (s TranscriptionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// TranscriptionJob is one provider-side transcription as last observed.
type TranscriptionJob struct {
	ID     string              `json:"id"`
	Status TranscriptionStatus `json:"status"`
	Text   string              `json:"text"`
	Error  string              `json:"error,omitempty"`
}

// Ingredient is one entry of an extracted ingredient list
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// EnrichmentResult is the derived ingredient list for a completed job.
type EnrichmentResult struct {
	Ingredients []Ingredient `json:"ingredients"`
	InProgress  bool         `json:"inProgress"`
}

// StartResponse is returned once a job has been submitted to the provider
type StartResponse struct {
	Status TranscriptionStatus `json:"status"`
	ID     string              `json:"id"`
}

// StatusResponse merges the provider status with enrichment output.
type StatusResponse struct {
	Status                  TranscriptionStatus `json:"status"`
	Text                    string              `json:"text"`
	Error                   string              `json:"error,omitempty"`
	Ingredients             []Ingredient        `json:"ingredients,omitempty"`
	IsExtractingIngredients bool                `json:"isExtractingIngredients"`
}
