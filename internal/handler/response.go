package handler

// Response is the envelope every API handler answers with.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func NewSuccessResponse(data any) *Response {
	return &Response{Status: "success", Data: data}
}

func NewErrorResponse(message string) *Response {
	return &Response{Status: "error", Message: message}
}
