package llm

// Outcome is the classifier's verdict on a transport result.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
)

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Classify routes a transport result using only its HTTP status. Body
// inspection belongs to the error and content normalizers.
func Classify(resp *TransportResponse) Outcome {
	if resp != nil && IsSuccess(resp.StatusCode) {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
