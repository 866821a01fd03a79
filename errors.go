package atoms

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrTypeMismatch matches every *TypeMismatchError.
	ErrTypeMismatch = errors.New("atoms: value type mismatch")
	// ErrDependencyCycle matches every *CycleError.
	ErrDependencyCycle = errors.New("atoms: dependency cycle")
	// ErrReentrantWrite is returned when an observer writes to the storage
	// that is notifying it.
	ErrReentrantWrite = errors.New("atoms: write from within a mutation notification")
	// ErrStorageRequired is returned by helpers invoked with a nil backend.
	ErrStorageRequired = errors.New("atoms: storage is required")
	// ErrZeroKey is returned when a read or write targets the zero key.
	ErrZeroKey = errors.New("atoms: key is zero")
	// ErrEmptyExpression is returned when compiling a blank expression.
	ErrEmptyExpression = errors.New("atoms: expression must not be empty")
)

// TypeMismatchError reports a key accessed with a value type other than the
// one it was registered or first materialized with.
type TypeMismatchError struct {
	Key      Key
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("atoms: key %s holds %s, accessed as %s", e.Key, typeLabel(e.Expected), typeLabel(e.Actual))
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// CycleError reports a dependency edge rejected because it would make a key
// depend on itself. Path starts and ends with the same key.
type CycleError struct {
	Path []Key
}

func (e *CycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, len(e.Path))
	for i, key := range e.Path {
		parts[i] = key.String()
	}
	return fmt.Sprintf("atoms: dependency cycle %s", strings.Join(parts, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrDependencyCycle
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func checkType(key Key, expected reflect.Type, value any) error {
	if expected == nil {
		return nil
	}
	if value == nil {
		switch expected.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return nil
		}
		return &TypeMismatchError{Key: key, Expected: expected}
	}
	actual := reflect.TypeOf(value)
	if actual == expected {
		return nil
	}
	if expected.Kind() == reflect.Interface && actual.Implements(expected) {
		return nil
	}
	return &TypeMismatchError{Key: key, Expected: expected, Actual: actual}
}

// EvaluationError reports a failed expression evaluation for a derived state.
type EvaluationError struct {
	Engine string
	Expr   string
	Atom   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "<empty>"
	if e.Expr != "" {
		expr = strconv.Quote(e.Expr)
	}
	return fmt.Sprintf("atoms: %s evaluation of %s for %s: %v", e.Engine, expr, e.Atom, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapEvaluatorError tags err with the engine unless it already carries
// evaluation metadata.
func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "atoms:") {
		return err
	}
	return fmt.Errorf("atoms: %s evaluator: %w", engine, err)
}

// wrapEvaluationError returns an *EvaluationError for err, filling blanks on
// an existing one instead of nesting.
func wrapEvaluationError(engine, expr, atom string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Atom: atom, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Atom == "" {
		evalErr.Atom = atom
	}
	return evalErr
}
