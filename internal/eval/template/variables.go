package template

import (
	"strings"

	"github.com/aymerick/raymond/ast"
)

// reference is a variable path evaluated against the root context
type reference struct {
	name  string
	parts []string
}

// collectReferences lists every path resolved against the root context.
// Bodies of context-changing blocks (each, with, sections, custom block
// helpers) are skipped because their scope is only known while rendering.
func collectReferences(program *ast.Program, helpers map[string]bool) []reference {
	c := &collector{
		helpers: helpers,
		seen:    make(map[string]bool),
	}
	c.program(program)

	return c.refs
}

type collector struct {
	helpers map[string]bool
	seen    map[string]bool
	refs    []reference
}

func (c *collector) program(program *ast.Program) {
	if program == nil {
		return
	}
	for _, node := range program.Body {
		c.statement(node)
	}
}

func (c *collector) statement(node ast.Node) {
	switch n := node.(type) {
	case *ast.MustacheStatement:
		c.expression(n.Expression)

	case *ast.BlockStatement:
		c.expression(n.Expression)

		switch helperName(n.Expression, c.helpers) {
		case "if", "unless":
			c.program(n.Program)
		}
		c.program(n.Inverse)

	case *ast.PartialStatement:
		for _, param := range n.Params {
			c.param(param)
		}
		c.hash(n.Hash)
	}
}

func (c *collector) expression(expr *ast.Expression) {
	if expr == nil {
		return
	}

	if path, ok := expr.Path.(*ast.PathExpression); ok && !isHelper(path, c.helpers) {
		c.path(path)
	}

	for _, param := range expr.Params {
		c.param(param)
	}
	c.hash(expr.Hash)
}

func (c *collector) hash(hash *ast.Hash) {
	if hash == nil {
		return
	}
	for _, pair := range hash.Pairs {
		c.param(pair.Val)
	}
}

func (c *collector) param(node ast.Node) {
	switch n := node.(type) {
	case *ast.PathExpression:
		c.path(n)
	case *ast.SubExpression:
		c.expression(n.Expression)
	}
}

func (c *collector) path(path *ast.PathExpression) {
	// @data variables, parent scopes and bare `this`
	if path.Data || path.Depth > 0 || len(path.Parts) == 0 {
		return
	}

	key := strings.Join(path.Parts, ".")
	if c.seen[key] {
		return
	}
	c.seen[key] = true

	c.refs = append(c.refs, reference{name: pathName(path), parts: path.Parts})
}

// isHelper reports whether path names a helper rather than a variable.
// raymond looks helpers up before data, so a helper always wins.
func isHelper(path *ast.PathExpression, helpers map[string]bool) bool {
	if path.Data || path.Scoped || path.Depth > 0 || len(path.Parts) != 1 {
		return false
	}
	return helpers[path.Parts[0]]
}

// helperName returns the helper called by expr, or "" for a variable lookup
func helperName(expr *ast.Expression, helpers map[string]bool) string {
	if expr == nil {
		return ""
	}
	path, ok := expr.Path.(*ast.PathExpression)
	if !ok || !isHelper(path, helpers) {
		return ""
	}
	return path.Parts[0]
}

func pathName(path *ast.PathExpression) string {
	if path.Original != "" {
		return path.Original
	}
	return strings.Join(path.Parts, ".")
}
