// Package channel provides the email and SMS delivery adapters used by the
// notification job. Both adapters report a uniform Result instead of
// returning errors: missing credentials, invalid input, non-2xx responses,
// and network failures all surface as Result{OK: false}, so the orchestrator
// branches on OK alone and one channel's failure never aborts the other.
package channel

// Result is the uniform outcome of a single channel send.
type Result struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`    // provider message id, when available
	Error string `json:"error,omitempty"` // failure reason, when not OK
}

func failure(reason string) Result {
	return Result{OK: false, Error: reason}
}
