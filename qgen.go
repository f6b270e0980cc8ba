// Package qgen defines the request/response types for the question generation API.
// Messages are JSON-encoded over HTTP.
package qgen

// DefaultNumQuestions is used when a request does not specify num_questions.
const DefaultNumQuestions = 3

// Request is sent by a client to generate interview questions.
type Request struct {
	// Description is the free-text job description used as the retrieval query.
	Description string `json:"description"`
	// NumQuestions is the number of questions to generate.
	// nil means DefaultNumQuestions; an explicit zero is rejected.
	NumQuestions *int `json:"num_questions,omitempty"`
}

// Count returns the requested number of questions, applying the default.
func (r *Request) Count() int {
	if r.NumQuestions == nil {
		return DefaultNumQuestions
	}
	return *r.NumQuestions
}

// Response is returned on success.
type Response struct {
	// Questions is ordered by first appearance across sampling rounds.
	Questions []string `json:"questions"`
}

// ErrorResponse is returned when a request cannot be fulfilled.
type ErrorResponse struct {
	// Detail is a human-readable error description.
	Detail string `json:"detail"`
	// Code is a machine-readable error identifier.
	Code string `json:"code"`
}

// Error codes reported in ErrorResponse.Code.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeGenerationError = "generation_error"
	CodeNotFound        = "not_found"
	CodeInternalError   = "internal_error"
)

// RootResponse is the body of the service root endpoint.
type RootResponse struct {
	Message string `json:"message"`
}
