package domain

// Status is the outcome of an operation.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	return "ERROR"
}

// Void is the value type of responses that carry no payload.
type Void struct{}

// Response is the result container returned by every repository and
// handler operation. An ERROR response always carries a cause; an OK
// response may carry no value, which plural queries use for "no rows".
type Response[T any] struct {
	Status  Status
	Cause   error
	value   T
	present bool
}

// OK returns a successful response holding v.
func OK[T any](v T) Response[T] {
	return Response[T]{Status: StatusOK, value: v, present: true}
}

// Empty returns a successful response without a value.
func Empty[T any]() Response[T] {
	return Response[T]{Status: StatusOK}
}

// Fail returns an ERROR response. A nil cause is replaced with ErrStore.
func Fail[T any](cause error) Response[T] {
	if cause == nil {
		cause = ErrStore
	}
	return Response[T]{Status: StatusError, Cause: cause}
}

// Recast carries an ERROR response over to another value type.
func Recast[T, U any](r Response[U]) Response[T] {
	return Fail[T](r.Cause)
}

func (r Response[T]) IsOK() bool    { return r.Status == StatusOK }
func (r Response[T]) IsError() bool { return r.Status == StatusError }

// Err returns the cause, nil for OK responses.
func (r Response[T]) Err() error {
	if r.IsOK() {
		return nil
	}
	return r.Cause
}

// Get returns the value and whether one is present.
func (r Response[T]) Get() (T, bool) {
	return r.value, r.IsOK() && r.present
}

// Unwrap converts the response into Go's (value, error) pair.
func (r Response[T]) Unwrap() (T, error) {
	if r.IsError() {
		var zero T
		return zero, r.Cause
	}
	return r.value, nil
}

// OrElse returns the value, or def when the response is an error or empty.
func (r Response[T]) OrElse(def T) T {
	if v, ok := r.Get(); ok {
		return v
	}
	return def
}
