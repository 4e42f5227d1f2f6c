package prompt

import (
	"fmt"
	"sync"

	"github.com/aescanero/dago-node-prompt/internal/eval/template"
	"go.uber.org/zap"
)

// Option configures an Environment
type Option func(*options)

type options struct {
	helpers    map[string]interface{}
	autoescape bool
	logger     *zap.Logger
}

// WithHelpers adds Handlebars helpers available to every template of the environment
func WithHelpers(helpers map[string]interface{}) Option {
	return func(o *options) {
		for name, helper := range helpers {
			o.helpers[name] = helper
		}
	}
}

// WithAutoescape enables HTML escaping of {{ }} output
func WithAutoescape(enabled bool) Option {
	return func(o *options) {
		o.autoescape = enabled
	}
}

// WithLogger sets the logger used for debug tracing
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Environment holds the engine configuration shared by the templates it builds.
// It is immutable and safe for concurrent use.
type Environment struct {
	engine  *template.Engine
	helpers map[string]bool
	logger  *zap.Logger
}

// NewEnvironment creates an environment
func NewEnvironment(opts ...Option) *Environment {
	o := &options{helpers: make(map[string]interface{})}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := template.NewEngine(
		template.WithHelpers(o.helpers),
		template.WithAutoescape(o.autoescape),
	)

	helpers := make(map[string]bool)
	for _, name := range engine.Helpers() {
		helpers[name] = true
	}

	return &Environment{
		engine:  engine,
		helpers: helpers,
		logger:  logger,
	}
}

var (
	defaultOnce sync.Once
	defaultEnv  *Environment
)

// Default returns the environment used by the package-level functions
func Default() *Environment {
	defaultOnce.Do(func() {
		defaultEnv = NewEnvironment()
	})
	return defaultEnv
}

// Declaration describes a prompt: its doc comment is the template source and
// its parameters form the signature.
type Declaration struct {
	Name   string
	Doc    string
	Params []Param
}

// FromString compiles text as-is into a template without signature.
// Such templates only accept keyword arguments.
func (e *Environment) FromString(text string) (*Template, error) {
	compiled, err := e.engine.Compile(text)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("compiled template from string",
		zap.Strings("variables", compiled.Variables()),
	)

	return &Template{compiled: compiled, env: e}, nil
}

// Prompt turns a declaration into a template: the doc comment is cleaned and
// compiled, and the parameters become the signature used to bind arguments.
// A parameter named like a helper of the environment is a *SignatureError.
func (e *Environment) Prompt(decl Declaration) (*Template, error) {
	if decl.Doc == "" {
		return nil, &TemplateSourceError{Name: decl.Name}
	}

	signature, err := NewSignature(decl.Params...)
	if err != nil {
		return nil, err
	}

	// helpers are looked up before data, so such a parameter could never render
	for _, name := range signature.Names() {
		if e.helpers[name] {
			return nil, &SignatureError{Param: name, Reason: "shadows the helper of the same name"}
		}
	}

	compiled, err := e.engine.Compile(Clean(decl.Doc))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", displayName(decl.Name), err)
	}

	e.logger.Debug("compiled prompt",
		zap.String("name", decl.Name),
		zap.String("signature", signature.String()),
		zap.Strings("variables", compiled.Variables()),
	)

	return &Template{
		name:      decl.Name,
		compiled:  compiled,
		signature: signature,
		env:       e,
	}, nil
}

// Func decorates a named Go function: its doc comment becomes the template
// and its parameter names the signature. See DeclarationOf.
func (e *Environment) Func(fn interface{}) (*Template, error) {
	decl, err := DeclarationOf(fn)
	if err != nil {
		return nil, err
	}
	return e.Prompt(decl)
}

// FromString compiles text with the default environment
func FromString(text string) (*Template, error) {
	return Default().FromString(text)
}

// Prompt builds a template from a declaration with the default environment
func Prompt(decl Declaration) (*Template, error) {
	return Default().Prompt(decl)
}

// Func decorates fn with the default environment
func Func(fn interface{}) (*Template, error) {
	return Default().Func(fn)
}

// Must panics if err is non-nil. It is intended for package-level prompts.
func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}

func displayName(name string) string {
	if name == "" {
		return "prompt"
	}
	return name
}
