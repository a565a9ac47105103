package domain

// ErrorKind classifies a failed delivery attempt.
type ErrorKind string

const (
	ErrKindNone       ErrorKind = ""
	ErrKindHTTPStatus ErrorKind = "http_status"
	ErrKindTransport  ErrorKind = "transport"
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindEncode     ErrorKind = "encode"
	ErrKindRemote     ErrorKind = "remote" // CRM answered but refused the call
	ErrKindCanceled   ErrorKind = "canceled"
)

// DeliveryResult is the outcome of pushing one lead, possibly after retries.
type DeliveryResult struct {
	OK         bool
	StatusCode int
	Kind       ErrorKind
	Attempts   int
	Message    string
}

func Delivered(status int) DeliveryResult {
	return DeliveryResult{OK: true, StatusCode: status, Attempts: 1}
}

func Failed(kind ErrorKind, status int, msg string) DeliveryResult {
	return DeliveryResult{Kind: kind, StatusCode: status, Message: msg, Attempts: 1}
}

type BatchResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	// StatusCode is the HTTP status of a single-request batch, 0 otherwise.
	StatusCode int `json:"status_code,omitempty"`
}
