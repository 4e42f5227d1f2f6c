package prompt

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

var directive = regexp.MustCompile(`^//(line |extern |export |[a-z0-9]+:[a-z0-9])`)

// DeclarationOf reads the declaration of a top-level Go function from its
// source file: the doc comment becomes Doc and the parameter names become
// positional-or-keyword parameters, with a trailing ...T parameter marked
// VarPositional. Go has no default values; set Param.Default on the result
// before calling Prompt to add them.
//
// The source file must be readable at runtime, as it is under go test and go run.
// Closures, methods and generic functions are rejected.
func DeclarationOf(fn interface{}) (Declaration, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Declaration{}, &SignatureError{Reason: fmt.Sprintf("expected a function, got %T", fn)}
	}

	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return Declaration{}, &SignatureError{Reason: "cannot locate function"}
	}

	name, err := funcName(rf.Name())
	if err != nil {
		return Declaration{}, err
	}

	file, _ := rf.FileLine(rf.Entry())
	decl, err := findFuncDecl(file, name)
	if err != nil {
		return Declaration{}, err
	}

	params, err := paramsOf(decl)
	if err != nil {
		return Declaration{}, err
	}

	return Declaration{
		Name:   name,
		Doc:    docText(decl.Doc),
		Params: params,
	}, nil
}

// funcName extracts the identifier from a qualified runtime name such as
// "example.com/pkg.greet".
func funcName(qualified string) (string, error) {
	name := qualified
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}

	if name == "" || strings.ContainsAny(name, ".()[]*-") {
		return "", &SignatureError{Reason: fmt.Sprintf("%s is not a top-level function", qualified)}
	}
	return name, nil
}

func findFuncDecl(path, name string) (*ast.FuncDecl, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration of %s: %w", name, err)
	}

	for _, d := range file.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if ok && fd.Recv == nil && fd.Name.Name == name {
			return fd, nil
		}
	}

	return nil, fmt.Errorf("declaration of %s not found in %s", name, path)
}

func paramsOf(fd *ast.FuncDecl) ([]Param, error) {
	if fd.Type.TypeParams != nil && len(fd.Type.TypeParams.List) > 0 {
		return nil, &SignatureError{Reason: fmt.Sprintf("%s is generic", fd.Name.Name)}
	}

	var params []Param
	for _, field := range fd.Type.Params.List {
		if len(field.Names) == 0 {
			return nil, &SignatureError{Reason: fmt.Sprintf("%s has unnamed parameters", fd.Name.Name)}
		}

		kind := PositionalOrKeyword
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			kind = VarPositional
		}

		for _, ident := range field.Names {
			if ident.Name == "_" {
				return nil, &SignatureError{Param: ident.Name, Reason: "blank parameters cannot be bound"}
			}
			params = append(params, Param{Name: ident.Name, Kind: kind})
		}
	}

	return params, nil
}

// docText returns the raw text of a doc comment. Line comments lose their
// marker and one leading space and are newline terminated; block comment
// bodies are kept verbatim. Directives such as //go:noinline are skipped.
func docText(group *ast.CommentGroup) string {
	if group == nil {
		return ""
	}

	var b strings.Builder
	for _, c := range group.List {
		text := c.Text
		if strings.HasPrefix(text, "/*") {
			b.WriteString(strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/"))
			continue
		}
		if directive.MatchString(text) {
			continue
		}
		text = strings.TrimPrefix(text, "//")
		text = strings.TrimPrefix(text, " ")
		b.WriteString(text)
		b.WriteByte('\n')
	}

	return b.String()
}
