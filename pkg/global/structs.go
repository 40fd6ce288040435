package global

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (v ValidationError) Error() string {
	return v.Field + ": " + v.Message
}

func (v ValidationError) Unwrap() error {
	return ErrValidation
}

func Required(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message, Code: "required"}
}

type APIResponse struct {
	Success  bool              `json:"success"`
	Data     interface{}       `json:"data,omitempty"`
	Message  string            `json:"message,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

func ErrorResponse(message string, errors []ValidationError) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Errors:  errors,
	}
}
