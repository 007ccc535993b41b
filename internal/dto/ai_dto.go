package dto

type CompletionRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Type   string `json:"type,omitempty"` // "completion" | "debug"
}

type CompletionResponse struct {
	Result string `json:"result"`
}
