package prompt

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aescanero/dago-node-prompt/internal/eval/cel"
)

// Kind describes how an argument binds to a parameter
type Kind int

const (
	// PositionalOrKeyword parameters accept either form. It is the zero value.
	PositionalOrKeyword Kind = iota
	// PositionalOnly parameters cannot be passed by keyword
	PositionalOnly
	// VarPositional collects extra positional arguments into a []interface{}
	VarPositional
	// KeywordOnly parameters must be passed by keyword
	KeywordOnly
	// VarKeyword collects extra keyword arguments into a map[string]interface{}
	VarKeyword
)

var kindNames = map[Kind]string{
	PositionalOnly:      "positional_only",
	PositionalOrKeyword: "positional_or_keyword",
	VarPositional:       "var_positional",
	KeywordOnly:         "keyword_only",
	VarKeyword:          "var_keyword",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses the names returned by Kind.String. An empty string is PositionalOrKeyword.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return PositionalOrKeyword, nil
	}
	for kind, name := range kindNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// order is the position a kind must respect in a parameter list
func (k Kind) order() int {
	switch k {
	case PositionalOnly:
		return 0
	case PositionalOrKeyword:
		return 1
	case VarPositional:
		return 2
	case KeywordOnly:
		return 3
	default:
		return 4
	}
}

func (k Kind) positional() bool {
	return k == PositionalOnly || k == PositionalOrKeyword
}

// Param declares one template parameter.
type Param struct {
	Name       string
	Kind       Kind
	Default    interface{}
	HasDefault bool
	// Check is an optional CEL expression over the bound arguments that must
	// evaluate to true, e.g. "age >= 0".
	Check string
}

// Required declares a positional-or-keyword parameter without default
func Required(name string) Param {
	return Param{Name: name}
}

// Optional declares a positional-or-keyword parameter with a default value
func Optional(name string, value interface{}) Param {
	return Param{Name: name, Default: value, HasDefault: true}
}

// Signature is an immutable, validated parameter list.
type Signature struct {
	params []Param
	checks *cel.Evaluator
}

// NewSignature validates params and builds a Signature.
func NewSignature(params ...Param) (*Signature, error) {
	seen := make(map[string]bool, len(params))
	names := make([]string, 0, len(params))
	top := PositionalOnly.order()
	seenDefault := false
	hasChecks := false

	for _, p := range params {
		if p.Name == "" {
			return nil, &SignatureError{Reason: "parameter name is empty"}
		}
		if seen[p.Name] {
			return nil, &SignatureError{Param: p.Name, Reason: "duplicate parameter name"}
		}
		seen[p.Name] = true
		names = append(names, p.Name)

		if _, ok := kindNames[p.Kind]; !ok {
			return nil, &SignatureError{Param: p.Name, Reason: fmt.Sprintf("unknown kind %d", int(p.Kind))}
		}

		order := p.Kind.order()
		switch {
		case order < top:
			return nil, &SignatureError{Param: p.Name, Reason: fmt.Sprintf("%s parameter after a later kind of parameter", p.Kind)}
		case order == top && (p.Kind == VarPositional || p.Kind == VarKeyword):
			return nil, &SignatureError{Param: p.Name, Reason: fmt.Sprintf("more than one %s parameter", p.Kind)}
		}
		top = order

		switch {
		case p.Kind.positional() && p.HasDefault:
			seenDefault = true
		case p.Kind.positional() && seenDefault:
			return nil, &SignatureError{Param: p.Name, Reason: "non-default argument follows default argument"}
		case (p.Kind == VarPositional || p.Kind == VarKeyword) && p.HasDefault:
			return nil, &SignatureError{Param: p.Name, Reason: fmt.Sprintf("%s parameter cannot have a default value", p.Kind)}
		}

		if p.Check != "" {
			hasChecks = true
		}
	}

	sig := &Signature{params: append([]Param(nil), params...)}
	if !hasChecks {
		return sig, nil
	}

	evaluator, err := cel.NewEvaluator(names...)
	if err != nil {
		return nil, &SignatureError{Reason: err.Error()}
	}
	for _, p := range params {
		if p.Check == "" {
			continue
		}
		if err := evaluator.ValidateExpression(p.Check); err != nil {
			return nil, &SignatureError{Param: p.Name, Reason: fmt.Sprintf("invalid check %q: %v", p.Check, err)}
		}
	}
	sig.checks = evaluator

	return sig, nil
}

// Params returns a copy of the parameters in declaration order
func (s *Signature) Params() []Param {
	return append([]Param(nil), s.params...)
}

// Names returns the parameter names in declaration order
func (s *Signature) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

func (s *Signature) String() string {
	parts := make([]string, 0, len(s.params))
	for _, p := range s.params {
		switch {
		case p.Kind == VarPositional:
			parts = append(parts, "*"+p.Name)
		case p.Kind == VarKeyword:
			parts = append(parts, "**"+p.Name)
		case p.HasDefault:
			parts = append(parts, fmt.Sprintf("%s=%v", p.Name, p.Default))
		default:
			parts = append(parts, p.Name)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Bind matches call arguments against the signature, applies defaults and
// returns the name to value mapping. kwargs is not modified.
func (s *Signature) Bind(args []interface{}, kwargs map[string]interface{}) (map[string]interface{}, error) {
	remaining := make(map[string]interface{}, len(kwargs))
	for k, v := range kwargs {
		remaining[k] = v
	}

	positional := 0
	variadic := false
	for _, p := range s.params {
		if p.Kind.positional() {
			positional++
		}
		if p.Kind == VarPositional {
			variadic = true
		}
	}
	if !variadic && len(args) > positional {
		return nil, bindingErrorf("too many positional arguments")
	}

	bound := make(map[string]interface{}, len(s.params))
	var varKeyword *Param
	var positionalOnlyByKeyword []string
	next := 0

	for i := range s.params {
		p := &s.params[i]

		switch p.Kind {
		case PositionalOnly, PositionalOrKeyword:
			if next < len(args) {
				if _, dup := remaining[p.Name]; dup && p.Kind == PositionalOrKeyword {
					return nil, bindingErrorf("multiple values for argument '%s'", p.Name)
				}
				bound[p.Name] = args[next]
				next++
				continue
			}

			if p.Kind == PositionalOnly {
				if _, byKeyword := remaining[p.Name]; byKeyword {
					positionalOnlyByKeyword = append(positionalOnlyByKeyword, p.Name)
				}
				if !p.HasDefault {
					return nil, bindingErrorf("missing a required positional-only argument: '%s'", p.Name)
				}
				continue
			}

			if v, ok := remaining[p.Name]; ok {
				bound[p.Name] = v
				delete(remaining, p.Name)
			} else if !p.HasDefault {
				return nil, bindingErrorf("missing a required argument: '%s'", p.Name)
			}

		case VarPositional:
			if next < len(args) {
				bound[p.Name] = append([]interface{}{}, args[next:]...)
				next = len(args)
			}

		case KeywordOnly:
			if v, ok := remaining[p.Name]; ok {
				bound[p.Name] = v
				delete(remaining, p.Name)
			} else if !p.HasDefault {
				return nil, bindingErrorf("missing a required keyword-only argument: '%s'", p.Name)
			}

		case VarKeyword:
			varKeyword = p
		}
	}

	if len(remaining) > 0 {
		switch {
		case varKeyword != nil:
			bound[varKeyword.Name] = remaining
		case len(positionalOnlyByKeyword) > 0:
			return nil, bindingErrorf("got some positional-only arguments passed as keyword arguments: '%s'",
				strings.Join(positionalOnlyByKeyword, ", "))
		default:
			names := make([]string, 0, len(remaining))
			for name := range remaining {
				names = append(names, name)
			}
			sort.Strings(names)
			return nil, bindingErrorf("got an unexpected keyword argument '%s'", names[0])
		}
	}

	s.applyDefaults(bound)

	if err := s.check(bound); err != nil {
		return nil, err
	}

	return bound, nil
}

func (s *Signature) applyDefaults(bound map[string]interface{}) {
	for _, p := range s.params {
		if _, ok := bound[p.Name]; ok {
			continue
		}
		switch {
		case p.HasDefault:
			bound[p.Name] = p.Default
		case p.Kind == VarPositional:
			bound[p.Name] = []interface{}{}
		case p.Kind == VarKeyword:
			bound[p.Name] = map[string]interface{}{}
		}
	}
}

func (s *Signature) check(bound map[string]interface{}) error {
	if s.checks == nil {
		return nil
	}

	for _, p := range s.params {
		if p.Check == "" {
			continue
		}
		ok, err := s.checks.EvaluateBool(context.Background(), p.Check, bound)
		if err != nil {
			return &BindingError{Reason: fmt.Sprintf("argument '%s' check %q failed", p.Name, p.Check), Err: err}
		}
		if !ok {
			return bindingErrorf("argument '%s' does not satisfy %q", p.Name, p.Check)
		}
	}

	return nil
}
