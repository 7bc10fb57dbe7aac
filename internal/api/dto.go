package api

import "github.com/quantaml/quanta/internal/classify"

// ClassifyRequest is the JSON request body, carrying a base64-encoded image.
// Raw and multipart bodies are accepted as well.
type ClassifyRequest struct {
	Image string `json:"image"`
}

type ClassifyResponse struct {
	ID          string                `json:"id"`
	Model       string                `json:"model"`
	Predictions []classify.Prediction `json:"predictions"`
	ElapsedMS   float64               `json:"elapsed_ms"`
}

type ModelResponse struct {
	Name        string `json:"name"`
	InputKey    string `json:"input_key"`
	InputWidth  int    `json:"input_width"`
	InputHeight int    `json:"input_height"`
	Classes     int    `json:"classes"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
