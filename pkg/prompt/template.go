package prompt

import (
	"errors"

	"github.com/aescanero/dago-node-prompt/internal/eval/template"
	"go.uber.org/zap"
)

// Template is a compiled prompt, optionally paired with the signature used to
// bind call arguments. It is immutable and safe for concurrent use.
type Template struct {
	name      string
	compiled  *template.Template
	signature *Signature
	env       *Environment
}

// Name returns the declaration name, empty for FromString templates
func (t *Template) Name() string {
	return t.name
}

// Source returns the cleaned template text
func (t *Template) Source() string {
	return t.compiled.Source()
}

// Signature returns the bound signature, or nil for FromString templates
func (t *Template) Signature() *Signature {
	return t.signature
}

// Variables returns the root variables referenced by the template
func (t *Template) Variables() []string {
	return t.compiled.Variables()
}

// Call renders the template.
//
// With a signature, args and kwargs are bound against it and defaults are
// applied; a mismatch returns *BindingError. Without one, kwargs is the
// rendering context and any positional argument returns *ArgumentError.
// Referencing a missing variable returns *UndefinedVariableError.
func (t *Template) Call(args []interface{}, kwargs map[string]interface{}) (string, error) {
	var data map[string]interface{}

	if t.signature != nil {
		bound, err := t.signature.Bind(args, kwargs)
		if err != nil {
			var bindErr *BindingError
			if errors.As(err, &bindErr) && bindErr.Template == "" {
				bindErr.Template = t.name
			}
			return "", err
		}
		data = bound
	} else {
		if len(args) > 0 {
			return "", &ArgumentError{Count: len(args)}
		}
		data = kwargs
	}

	out, err := t.compiled.Exec(data)
	if err != nil {
		return "", err
	}

	t.env.logger.Debug("rendered prompt",
		zap.String("name", t.name),
		zap.Int("length", len(out)),
	)

	return out, nil
}

// Render renders with positional arguments only
func (t *Template) Render(args ...interface{}) (string, error) {
	return t.Call(args, nil)
}

// RenderMap renders with keyword arguments only
func (t *Template) RenderMap(kwargs map[string]interface{}) (string, error) {
	return t.Call(nil, kwargs)
}
