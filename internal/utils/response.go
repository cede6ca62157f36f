package utils

// Response represents a standardized response structure.
// It includes a status code, a message, and data.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Hint    string      `json:"hint,omitempty"`
	Data    interface{} `json:"data"` // always present, null when empty
}

// NewSuccessResponse creates a new success Response instance.
func NewSuccessResponse(message string, data interface{}) Response {
	return Response{
		Status:  200,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse creates a new error Response instance.
func NewErrorResponse(status int, message string) Response {
	return Response{
		Status:  status,
		Message: message,
		Data:    nil,
	}
}

// NewAppErrorResponse maps an AppError onto the response envelope, keeping
// the machine code and remediation hint visible to clients.
func NewAppErrorResponse(err *AppError) Response {
	return Response{
		Status:  err.Status,
		Message: err.Message,
		Code:    string(err.Code),
		Hint:    err.Hint,
		Data:    nil,
	}
}
