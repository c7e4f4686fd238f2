package common

import "log/slog"

// Retriable wraps a call with exactly one immediate retry. If the first
// invocation fails, the call is re-invoked once and the second outcome is
// returned, success or failure. No backoff and no further attempts: the
// wrapper exists so a single flaky network call does not abort a whole
// streamed pass.
func Retriable[T any](call func() (T, error)) func() (T, error) {
	return func() (T, error) {
		result, err := call()
		if err == nil {
			return result, nil
		}

		slog.Warn("Retrying after failure", "error", err)

		return call()
	}
}
