package prompt

import (
	"fmt"

	"github.com/aescanero/dago-node-prompt/internal/eval/template"
)

// UndefinedVariableError is returned at render time when the template
// references a variable absent from the rendering context.
type UndefinedVariableError = template.UndefinedError

// TemplateSyntaxError is returned when a template cannot be compiled.
type TemplateSyntaxError = template.SyntaxError

// TemplateSourceError is returned when a declaration carries no template text.
type TemplateSourceError struct {
	Name string
}

func (e *TemplateSourceError) Error() string {
	if e.Name == "" {
		return "could not find a template in the declaration's doc comment"
	}
	return fmt.Sprintf("could not find a template in the doc comment of %s", e.Name)
}

// SignatureError is returned when a parameter list cannot form a valid signature.
type SignatureError struct {
	Param  string
	Reason string
}

func (e *SignatureError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("invalid signature: %s", e.Reason)
	}
	return fmt.Sprintf("invalid signature: parameter %q: %s", e.Param, e.Reason)
}

// BindingError is returned when call arguments do not match the signature.
type BindingError struct {
	Template string
	Reason   string
	Err      error
}

func (e *BindingError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Template == "" {
		return msg
	}
	return fmt.Sprintf("%s(): %s", e.Template, msg)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// ArgumentError is returned when positional arguments are passed to a
// template that has no signature to bind them to.
type ArgumentError struct {
	Count int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("template has no signature: %d positional argument(s) given, only keyword arguments are accepted", e.Count)
}

func bindingErrorf(format string, args ...interface{}) *BindingError {
	return &BindingError{Reason: fmt.Sprintf(format, args...)}
}
