package responses

// Envelope wraps every successful payload.
type Envelope struct {
	Data any `json:"data"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope is the body written for any failed request.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
