package dto

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Stage string `json:"stage,omitempty"`
}
