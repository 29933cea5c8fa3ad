package retry

import "fmt"

// TransientError is a retryable condition that outlasted the retry budget.
// It stays inside Client: Execute converts it into a FatalError carrying
// Attempts and the underlying transport error, if any.
type TransientError struct {
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("giving up after %d attempt(s): status %d", e.Attempts, e.StatusCode)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a request that will not succeed by retrying.
// Attempts is set when the retry budget was exhausted; Err is then the last
// transport error, or nil when the final attempt got a retryable status.
type FatalError struct {
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *FatalError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("request failed with status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	default:
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
	}
}

func (e *FatalError) Unwrap() error { return e.Err }
