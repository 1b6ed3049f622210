package orgsdk

import "fmt"

// ErrorResponse is the generic error envelope for authentication, permission
// and server failures.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ValidationErrorResponse is returned with status 400 when request decoding
// or field validation fails. Fields maps the JSON field name to a
// human-readable message.
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// APIError is the client-side representation of a non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Fields      map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api error %d: %s (%d invalid fields)", e.StatusCode, e.Code, len(e.Fields))
	}
	if e.Description != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Code)
}

// IsAPIError unwraps err into an *APIError when possible.
func IsAPIError(err error) (*APIError, bool) {
	apiErr, ok := err.(*APIError)
	return apiErr, ok
}
