package query

import (
	"errors"

	"storefront-service/clients"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusNotFound Status = "not_found"
	StatusSkipped  Status = "skipped"
)

// Result is the outcome of a read. Data is the zero value unless Status is
// success.
type Result[T any] struct {
	Status Status
	Data   T
	Err    error
}

func (r Result[T]) OK() bool { return r.Status == StatusSuccess }

// View is the shape handed to the UI.
type View[T any] struct {
	IsLoading  bool   `json:"isLoading"`
	IsError    bool   `json:"isError"`
	IsNotFound bool   `json:"isNotFound"`
	IsSkipped  bool   `json:"isSkipped"`
	Data       *T     `json:"data"`
	Error      string `json:"error,omitempty"`
}

func (r Result[T]) View() View[T] {
	v := View[T]{
		IsError:    r.Status == StatusError,
		IsNotFound: r.Status == StatusNotFound,
		IsSkipped:  r.Status == StatusSkipped,
	}
	if r.Status == StatusSuccess {
		data := r.Data
		v.Data = &data
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func resultOf[T any](data T, err error) Result[T] {
	switch {
	case err == nil:
		return Result[T]{Status: StatusSuccess, Data: data}
	case errors.Is(err, clients.ErrNotFound):
		var zero T
		return Result[T]{Status: StatusNotFound, Data: zero}
	default:
		var zero T
		return Result[T]{Status: StatusError, Data: zero, Err: err}
	}
}

func skipped[T any]() Result[T] {
	return Result[T]{Status: StatusSkipped}
}
