package main

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of one configuration or timestamp.
type ErrorKind string

const (
	ConfigurationError      ErrorKind = "ConfigurationError"
	RendererInvocationError ErrorKind = "RendererInvocationError"
	GeometryDegenerateError ErrorKind = "GeometryDegenerateError"
	ResultParseError        ErrorKind = "ResultParseError"
)

// Sentinels for errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrRendererInvocation = errors.New("renderer invocation error")
	ErrGeometryDegenerate = errors.New("degenerate geometry")
	ErrResultParse        = errors.New("result parse error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ConfigurationError:
		return ErrConfiguration
	case RendererInvocationError:
		return ErrRendererInvocation
	case GeometryDegenerateError:
		return ErrGeometryDegenerate
	case ResultParseError:
		return ErrResultParse
	default:
		panic("invalid error kind " + string(k))
	}
}

// SimulationError carries the taxonomy value and, once known, the id of the
// timestamp or configuration it belongs to.
type SimulationError struct {
	Kind ErrorKind
	ID   string
	Err  error
}

func (e *SimulationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SimulationError) Unwrap() error { return e.Err }

func (e *SimulationError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func configErrorf(format string, args ...interface{}) error {
	return &SimulationError{Kind: ConfigurationError, Err: fmt.Errorf(format, args...)}
}

func geometryErrorf(format string, args ...interface{}) error {
	return &SimulationError{Kind: GeometryDegenerateError, Err: fmt.Errorf(format, args...)}
}

func rendererError(err error) error {
	return &SimulationError{Kind: RendererInvocationError, Err: err}
}

func parseErrorf(format string, args ...interface{}) error {
	return &SimulationError{Kind: ResultParseError, Err: fmt.Errorf(format, args...)}
}

// errorKindOf returns the taxonomy value of err, or "" for foreign errors.
func errorKindOf(err error) ErrorKind {
	var se *SimulationError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// withID stamps a timestamp/configuration id onto a SimulationError.
func withID(err error, id string) error {
	var se *SimulationError
	if errors.As(err, &se) {
		return &SimulationError{Kind: se.Kind, ID: id, Err: se.Err}
	}
	return err
}
