package domain

// PromptPayload represents the validated body of a gateway request.
type PromptPayload struct {
	Prompt string `json:"prompt"`
}

// GenerateRequest is the input handed to a generation provider.
type GenerateRequest struct {
	Prompt             string
	SystemInstructions string
	Model              string
}

// ModelResult is a successful generation.
type ModelResult struct {
	Text string `json:"text"`
}
