package http

// Record is one decoded JSON object from a collection response.
type Record = map[string]any

// PermissionFilteredCode is the error_codes marker the server adds when it dropped
// results the caller may not see.
const PermissionFilteredCode = "PERMISSION_FILTERED"

// PermissionFiltered is the full marker entry as the server sends it.
var PermissionFiltered = ErrorCode{
	Code:    PermissionFilteredCode,
	Message: "Some results were filtered due to insufficient permissions",
}

// ErrorCode is one entry of an envelope's error_codes list.
type ErrorCode struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Envelope is the collection response convention.
type Envelope struct {
	Results    []Record    `json:"results"`
	ErrorCodes []ErrorCode `json:"error_codes,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"name"`
	Message string                 `json:"message,omitempty" example:"Name is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
