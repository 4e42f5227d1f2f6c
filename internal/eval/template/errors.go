package template

import "fmt"

// UndefinedError is returned when a template references a variable
// that is absent from the rendering context
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("'%s' is undefined", e.Name)
}

// SyntaxError is returned when a template cannot be parsed
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
