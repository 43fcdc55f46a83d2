package adapter

import "fmt"

// Upstream error codes observed to be transient: temporary platform
// failures and rate limits. Anything else is treated as permanent for
// the request that produced it.
var transientCodes = map[int]bool{
	1:  true, // unknown error, usually temporary
	2:  true, // service temporarily unavailable
	4:  true, // application request limit reached
	17: true, // user request limit reached
	32: true, // page request limit reached
}

// APIError is a typed upstream API error. It is raised both for non-2xx
// responses and for error objects embedded in a 200 body.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Code       int    `json:"code"`
	Subcode    int    `json:"subcode,omitempty"`
	Message    string `json:"message"`
	Label      string `json:"label,omitempty"`
}

func (e *APIError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("graph API error (%s): code=%d subcode=%d: %s", e.Label, e.Code, e.Subcode, e.Message)
	}
	return fmt.Sprintf("graph API error: code=%d subcode=%d: %s", e.Code, e.Subcode, e.Message)
}

// Transient reports whether the error is worth retrying
func (e *APIError) Transient() bool {
	if transientCodes[e.Code] {
		return true
	}
	// 429 and 5xx without a recognizable body code
	return e.StatusCode == 429 || e.StatusCode >= 500
}
