package renderer

import (
	"errors"

	"github.com/aescanero/dago-node-prompt/internal/registry"
	"github.com/aescanero/dago-node-prompt/pkg/prompt"
)

// CompletionError wraps a failed LLM call
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return "llm completion failed: " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Error kinds reported to callers
const (
	KindUndefinedVariable = "undefined_variable"
	KindBinding           = "binding"
	KindArgument          = "argument"
	KindTemplateSource    = "template_source"
	KindSignature         = "signature"
	KindSyntax            = "syntax"
	KindNotFound          = "not_found"
	KindCompletion        = "completion"
	KindInternal          = "internal"
)

// ErrorKind classifies err for result consumers
func ErrorKind(err error) string {
	var (
		undefinedErr *prompt.UndefinedVariableError
		bindingErr   *prompt.BindingError
		argumentErr  *prompt.ArgumentError
		sourceErr    *prompt.TemplateSourceError
		signatureErr *prompt.SignatureError
		syntaxErr    *prompt.TemplateSyntaxError
		completeErr  *CompletionError
	)

	switch {
	case errors.As(err, &undefinedErr):
		return KindUndefinedVariable
	case errors.As(err, &bindingErr):
		return KindBinding
	case errors.As(err, &argumentErr):
		return KindArgument
	case errors.As(err, &sourceErr):
		return KindTemplateSource
	case errors.As(err, &signatureErr):
		return KindSignature
	case errors.As(err, &syntaxErr):
		return KindSyntax
	case errors.Is(err, registry.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoLLMClient), errors.As(err, &completeErr):
		return KindCompletion
	default:
		return KindInternal
	}
}
