package template

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aymerick/raymond"
	"github.com/aymerick/raymond/ast"
	"github.com/aymerick/raymond/parser"
)

// Option configures an Engine
type Option func(*Engine)

// WithHelpers registers extra helpers on every template compiled by the engine.
// Helpers follow raymond.RegisterHelper conventions and override built-ins of the same name.
func WithHelpers(helpers map[string]interface{}) Option {
	return func(e *Engine) {
		for name, helper := range helpers {
			e.helpers[name] = helper
		}
	}
}

// WithAutoescape toggles Handlebars HTML escaping of {{ }} output.
// It is off by default: prompts are plain text.
func WithAutoescape(enabled bool) Option {
	return func(e *Engine) {
		e.autoescape = enabled
	}
}

// Engine compiles Handlebars templates in strict mode
type Engine struct {
	helpers    map[string]interface{}
	autoescape bool
	cache      map[string]*Template
	mu         sync.RWMutex
}

// NewEngine creates a new template engine
func NewEngine(opts ...Option) *Engine {
	engine := &Engine{
		helpers: make(map[string]interface{}),
		cache:   make(map[string]*Template),
	}

	// Built-ins first so options can override them
	engine.registerHelpers()

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Helpers returns the sorted names that resolve to a helper, built-ins included.
// A variable of the same name can never be rendered.
func (e *Engine) Helpers() []string {
	set := e.helperSet()
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile gets a compiled template from cache or compiles it
func (e *Engine) Compile(templateStr string) (*Template, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if tmpl, ok := e.cache[templateStr]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if tmpl, ok := e.cache[templateStr]; ok {
		return tmpl, nil
	}

	tpl, err := raymond.Parse(templateStr)
	if err != nil {
		return nil, &SyntaxError{Err: err}
	}

	if err := e.attachHelpers(tpl); err != nil {
		return nil, err
	}

	program, err := parser.Parse(templateStr)
	if err != nil {
		return nil, &SyntaxError{Err: err}
	}

	names := e.helperSet()
	tmpl := &Template{
		source:     templateStr,
		tpl:        tpl,
		program:    program,
		refs:       collectReferences(program, names),
		helpers:    e.helpers,
		names:      names,
		autoescape: e.autoescape,
	}
	e.cache[templateStr] = tmpl

	return tmpl, nil
}

// attachHelpers registers the engine helpers on a single template.
// raymond panics on invalid helpers, which is turned into an error here.
func (e *Engine) attachHelpers(tpl *raymond.Template) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid helper: %v", r)
		}
	}()

	tpl.RegisterHelpers(e.helpers)
	return nil
}

// helperSet returns every name that resolves to a helper instead of a variable
func (e *Engine) helperSet() map[string]bool {
	set := map[string]bool{
		"if":     true,
		"unless": true,
		"with":   true,
		"each":   true,
		"log":    true,
		"lookup": true,
		"equal":  true,
	}
	for name := range e.helpers {
		set[name] = true
	}
	return set
}

// Template is a compiled template plus its parsed form, used to check the
// data before rendering. It is read-only after Compile and safe for concurrent Exec.
type Template struct {
	source     string
	tpl        *raymond.Template
	program    *ast.Program
	refs       []reference
	helpers    map[string]interface{}
	names      map[string]bool
	autoescape bool
}

// Source returns the template text
func (t *Template) Source() string {
	return t.source
}

// Variables returns the root variable paths referenced by the template, in source order
func (t *Template) Variables() []string {
	names := make([]string, len(t.refs))
	for i, ref := range t.refs {
		names[i] = ref.name
	}
	return names
}

// Exec renders the template. A path that resolves in none of the scopes
// visible where it is rendered fails with *UndefinedError before anything
// is rendered. Branches that are not taken are not checked.
func (t *Template) Exec(data map[string]interface{}) (string, error) {
	if data == nil {
		data = map[string]interface{}{}
	}

	if err := check(t.program, data, t.helpers, t.names); err != nil {
		return "", err
	}

	ctx := data
	if !t.autoescape {
		ctx = safeMap(data)
	}

	result, err := t.tpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return result, nil
}
