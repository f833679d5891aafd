package dto

// DetectResponse is the body of a successful /detect call.
type DetectResponse struct {
	Result bool `json:"result"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}
