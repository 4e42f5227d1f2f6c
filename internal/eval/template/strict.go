package template

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/aymerick/raymond"
	"github.com/aymerick/raymond/ast"
)

// opaque stands for a value only known while raymond renders, such as the
// result of a block helper. Paths looked up through it are not checked.
type opaque struct{}

var opaqueType = reflect.TypeOf(opaque{})

// resolution is the outcome of looking a path up in one context
type resolution int

const (
	missing resolution = iota // first part absent
	partial                   // first part found, a later one absent
	found
	unknown
)

// checker walks a parsed template against the data it is rendered with.
// It follows the branches raymond takes: only the taken side of if/unless
// is visited, and each/with bodies see the pushed item as their context.
// The first path that resolves in no visible scope is an *UndefinedError.
type checker struct {
	helpers map[string]interface{}
	names   map[string]bool
	ctx     []interface{}
	params  []map[string]interface{}
	data    []map[string]interface{}
}

func check(program *ast.Program, data map[string]interface{}, helpers map[string]interface{}, names map[string]bool) error {
	c := &checker{
		helpers: helpers,
		names:   names,
		ctx:     []interface{}{data},
	}
	return c.program(program)
}

func (c *checker) program(program *ast.Program) error {
	if program == nil {
		return nil
	}
	for _, node := range program.Body {
		if err := c.statement(node); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) statement(node ast.Node) error {
	switch n := node.(type) {
	case *ast.MustacheStatement:
		_, _, err := c.expression(n.Expression)
		return err

	case *ast.BlockStatement:
		return c.block(n)

	case *ast.PartialStatement:
		if _, _, err := c.values(n.Params); err != nil {
			return err
		}
		_, err := c.hash(n.Hash)
		return err
	}
	return nil
}

func (c *checker) block(n *ast.BlockStatement) error {
	expr := n.Expression
	name := helperName(expr, c.names)

	switch name {
	case "if", "unless":
		args, hash, ok, err := c.arguments(expr)
		if err != nil {
			return err
		}
		if !ok || len(args) == 0 {
			return c.branches(n)
		}
		truth := raymond.IsTrue(args[0]) || includeZero(args[0], hash)
		if name == "unless" {
			truth = !truth
		}
		if truth {
			return c.program(n.Program)
		}
		return c.program(n.Inverse)

	case "equal":
		args, _, ok, err := c.arguments(expr)
		if err != nil {
			return err
		}
		if !ok || len(args) < 2 {
			return c.branches(n)
		}
		if raymond.Str(args[0]) == raymond.Str(args[1]) {
			return c.program(n.Program)
		}
		return c.program(n.Inverse)

	case "with":
		args, _, ok, err := c.arguments(expr)
		if err != nil {
			return err
		}
		if !ok || len(args) == 0 {
			return c.unknownScope(n)
		}
		if !raymond.IsTrue(args[0]) {
			return c.program(n.Inverse)
		}
		return c.scoped(args[0], []interface{}{args[0]}, nil, n.Program)

	case "each":
		args, _, ok, err := c.arguments(expr)
		if err != nil {
			return err
		}
		if !ok || len(args) == 0 {
			return c.unknownScope(n)
		}
		if !raymond.IsTrue(args[0]) {
			return c.program(n.Inverse)
		}
		return c.each(args[0], n.Program)

	case "":
		// section over a data path: lists iterate, maps and structs become the context
		v, ok, err := c.expression(expr)
		if err != nil {
			return err
		}
		if !ok {
			return c.unknownScope(n)
		}
		if !raymond.IsTrue(v) {
			return c.program(n.Inverse)
		}
		switch indirect(reflect.ValueOf(v)).Kind() {
		case reflect.Slice, reflect.Array:
			return c.each(v, n.Program)
		case reflect.Map, reflect.Struct:
			return c.scoped(v, []interface{}{v}, nil, n.Program)
		}
		return c.program(n.Program)

	default:
		// custom block helpers render their bodies in the current scope
		if _, _, err := c.expression(expr); err != nil {
			return err
		}
		return c.branches(n)
	}
}

// branches checks both sides of a block whose condition is not known
func (c *checker) branches(n *ast.BlockStatement) error {
	if err := c.program(n.Program); err != nil {
		return err
	}
	return c.program(n.Inverse)
}

func (c *checker) unknownScope(n *ast.BlockStatement) error {
	if err := c.scoped(opaque{}, []interface{}{opaque{}, opaque{}}, nil, n.Program); err != nil {
		return err
	}
	return c.program(n.Inverse)
}

// scoped checks program with ctx pushed as the current context
func (c *checker) scoped(ctx interface{}, blockParams []interface{}, frame map[string]interface{}, program *ast.Program) error {
	if program == nil {
		return nil
	}

	c.ctx = append(c.ctx, ctx)
	defer func() { c.ctx = c.ctx[:len(c.ctx)-1] }()

	if frame != nil {
		c.data = append(c.data, frame)
		defer func() { c.data = c.data[:len(c.data)-1] }()
	}

	if len(program.BlockParams) > 0 {
		bound := make(map[string]interface{}, len(program.BlockParams))
		for i, name := range program.BlockParams {
			if i < len(blockParams) {
				bound[name] = blockParams[i]
			}
		}
		c.params = append(c.params, bound)
		defer func() { c.params = c.params[:len(c.params)-1] }()
	}

	return c.program(program)
}

// each checks program once per item, in raymond's iteration order for lists
func (c *checker) each(v interface{}, program *ast.Program) error {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		for i := 0; i < n; i++ {
			item := rv.Index(i).Interface()
			if err := c.scoped(item, []interface{}{item, i}, iteration(i, n, nil), program); err != nil {
				return err
			}
		}

	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return raymond.Str(keys[i].Interface()) < raymond.Str(keys[j].Interface())
		})
		for i, key := range keys {
			item := rv.MapIndex(key).Interface()
			k := key.Interface()
			if err := c.scoped(item, []interface{}{item, k}, iteration(i, len(keys), k), program); err != nil {
				return err
			}
		}

	case reflect.Struct:
		t := rv.Type()
		var fields []int
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).PkgPath == "" {
				fields = append(fields, i)
			}
		}
		for i, idx := range fields {
			item := rv.Field(idx).Interface()
			k := t.Field(idx).Name
			if err := c.scoped(item, []interface{}{item, k}, iteration(i, len(fields), k), program); err != nil {
				return err
			}
		}
	}

	return nil
}

func iteration(i, n int, key interface{}) map[string]interface{} {
	frame := map[string]interface{}{
		"index": i,
		"first": i == 0,
		"last":  i == n-1,
	}
	if key != nil {
		frame["key"] = key
	}
	return frame
}

// expression evaluates expr. ok is false when the value is only known at
// render time; that is not an error.
func (c *checker) expression(expr *ast.Expression) (interface{}, bool, error) {
	if expr == nil {
		return nil, false, nil
	}

	if name := helperName(expr, c.names); name != "" {
		args, _, ok, err := c.arguments(expr)
		if err != nil || !ok {
			return nil, false, err
		}
		v, ok := c.call(name, args)
		return v, ok, nil
	}

	// not a helper: the path is a variable even when called with arguments
	v, ok, err := c.value(expr.Path)
	if err != nil {
		return nil, false, err
	}
	if _, _, _, err := c.arguments(expr); err != nil {
		return nil, false, err
	}
	if len(expr.Params) > 0 || expr.Hash != nil || reflect.ValueOf(v).Kind() == reflect.Func {
		return nil, false, nil
	}
	return v, ok, nil
}

func (c *checker) arguments(expr *ast.Expression) ([]interface{}, map[string]interface{}, bool, error) {
	args, ok, err := c.values(expr.Params)
	if err != nil {
		return nil, nil, false, err
	}
	hash, err := c.hash(expr.Hash)
	if err != nil {
		return nil, nil, false, err
	}
	return args, hash, ok, nil
}

func (c *checker) values(nodes []ast.Node) ([]interface{}, bool, error) {
	out := make([]interface{}, len(nodes))
	all := true
	for i, node := range nodes {
		v, ok, err := c.value(node)
		if err != nil {
			return nil, false, err
		}
		out[i] = v
		all = all && ok
	}
	return out, all, nil
}

// hash evaluates hash arguments, keeping only the values known before rendering
func (c *checker) hash(hash *ast.Hash) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if hash == nil {
		return out, nil
	}
	for _, pair := range hash.Pairs {
		v, ok, err := c.value(pair.Val)
		if err != nil {
			return nil, err
		}
		if ok {
			out[pair.Key] = v
		}
	}
	return out, nil
}

func (c *checker) value(node ast.Node) (interface{}, bool, error) {
	switch n := node.(type) {
	case *ast.PathExpression:
		return c.path(n)
	case *ast.SubExpression:
		return c.expression(n.Expression)
	case *ast.StringLiteral:
		return n.Value, true, nil
	case *ast.BooleanLiteral:
		return n.Value, true, nil
	case *ast.NumberLiteral:
		if n.IsInt {
			return int(n.Value), true, nil
		}
		return n.Value, true, nil
	}
	return nil, false, nil
}

// path resolves like raymond: block params first, then the current context
// and its parents. Parents are only tried while the first part is missing.
func (c *checker) path(p *ast.PathExpression) (interface{}, bool, error) {
	name := pathName(p)

	if p.Data {
		if len(p.Parts) == 0 {
			return nil, false, nil
		}
		if p.Parts[0] == "root" {
			return c.resolveFrom(name, c.ctx[0], p.Parts[1:])
		}
		if len(c.data) > 0 && len(p.Parts) == 1 {
			if v, ok := c.data[len(c.data)-1][p.Parts[0]]; ok {
				return v, true, nil
			}
		}
		// other @data is set by helpers while rendering
		return nil, false, nil
	}

	if p.Depth == 0 && !p.Scoped && len(p.Parts) > 0 {
		for i := len(c.params) - 1; i >= 0; i-- {
			if v, ok := c.params[i][p.Parts[0]]; ok {
				return c.resolveFrom(name, v, p.Parts[1:])
			}
		}
	}

	start := len(c.ctx) - 1 - p.Depth
	if start < 0 {
		return nil, false, &UndefinedError{Name: name}
	}
	if len(p.Parts) == 0 {
		return c.resolveFrom(name, c.ctx[start], nil)
	}

	for i := start; i >= 0; i-- {
		v, res := resolveIn(c.ctx[i], p.Parts)
		switch res {
		case found:
			return v, true, nil
		case unknown:
			return nil, false, nil
		case partial:
			return nil, false, &UndefinedError{Name: name}
		}
		if p.Scoped {
			break
		}
	}

	return nil, false, &UndefinedError{Name: name}
}

func (c *checker) resolveFrom(name string, base interface{}, parts []string) (interface{}, bool, error) {
	v, res := resolveIn(base, parts)
	switch res {
	case found:
		return v, true, nil
	case unknown:
		return nil, false, nil
	}
	return nil, false, &UndefinedError{Name: name}
}

// call evaluates a helper used as an expression or sub-expression
func (c *checker) call(name string, args []interface{}) (interface{}, bool) {
	if name == "lookup" && len(args) == 2 {
		v, res := resolveIn(args[0], []string{raymond.Str(args[1])})
		return v, res == found
	}
	fn, ok := c.helpers[name]
	if !ok {
		return nil, false
	}
	return invoke(fn, args)
}

// invoke calls a helper with plain arguments, converting them the way raymond
// does. Helpers taking raymond options, variadic ones and arity mismatches
// yield no value.
func invoke(fn interface{}, args []interface{}) (result interface{}, ok bool) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, false
	}
	ft := fv.Type()
	if ft.IsVariadic() || ft.NumIn() != len(args) || ft.NumOut() == 0 {
		return nil, false
	}

	stringType := reflect.TypeOf("")
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want := ft.In(i)
		av := reflect.ValueOf(arg)
		if !av.IsValid() {
			switch want.Kind() {
			case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				av = reflect.Zero(want)
			case reflect.String:
				av = reflect.ValueOf("")
			default:
				return nil, false
			}
		}
		if !av.Type().AssignableTo(want) {
			if !stringType.AssignableTo(want) {
				return nil, false
			}
			av = reflect.ValueOf(raymond.Str(arg))
		}
		in[i] = av
	}

	defer func() {
		if r := recover(); r != nil {
			result, ok = nil, false
		}
	}()

	return fv.Call(in)[0].Interface(), true
}

// includeZero mirrors the if helper's includeZero=true hash option
func includeZero(v interface{}, hash map[string]interface{}) bool {
	enabled, _ := hash["includeZero"].(bool)
	n, isInt := v.(int)
	return enabled && isInt && n == 0
}

// resolveIn looks parts up in base
func resolveIn(base interface{}, parts []string) (interface{}, resolution) {
	current := reflect.ValueOf(base)
	for i, part := range parts {
		if isOpaque(current) {
			return nil, unknown
		}
		next, ok, known := lookup(current, part)
		if !known {
			return nil, unknown
		}
		if !ok {
			if i == 0 {
				return nil, missing
			}
			return nil, partial
		}
		current = next
	}

	if isOpaque(current) {
		return nil, unknown
	}
	current = indirectInterface(current)
	if !current.IsValid() || !current.CanInterface() {
		return nil, found
	}
	return current.Interface(), found
}

func isOpaque(v reflect.Value) bool {
	v = indirect(v)
	return v.IsValid() && v.Type() == opaqueType
}

// lookup finds name in v. known is false when the value kind cannot be
// inspected, in which case the rest of the path is not checked.
func lookup(v reflect.Value, name string) (next reflect.Value, ok bool, known bool) {
	base := v
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false, true
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false, false
		}
		val := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		return val, val.IsValid(), true

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" {
				continue
			}
			if sf.Name == name || sf.Tag.Get("handlebars") == name {
				return v.Field(i), true, true
			}
		}
		// Method results are only known once called
		if base.MethodByName(name).IsValid() || v.MethodByName(name).IsValid() {
			return reflect.Value{}, true, false
		}
		return reflect.Value{}, false, true

	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(name)
		if err != nil {
			return reflect.Value{}, false, true
		}
		if idx < 0 || idx >= v.Len() {
			return reflect.Value{}, false, true
		}
		return v.Index(idx), true, true
	}

	return reflect.Value{}, false, true
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// indirectInterface unwraps interface values only, keeping pointers intact
func indirectInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
