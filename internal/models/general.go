package models

// ErrorResponse is the body of every failed status API call
type ErrorResponse struct {
	Code    string `json:"code" example:"process.not_found"`
	Message string `json:"message" example:"unknown process: mmpm"`
}
