// Package prompt turns documented declarations into reusable prompt templates.
//
// The doc comment of a declaration is the template source and its parameters
// are the template variables. Call arguments are bound to the parameters like
// a function call: positional or by name, with defaults applied. Templates use
// Handlebars syntax and render strictly: a variable missing from the call fails
// with *UndefinedVariableError instead of rendering as empty text.
//
// Decorating a Go function reads its doc comment and parameter names from the
// source file:
//
//	// Hello, I am {{ name }} and I am {{ age }} years old.
//	func greet(name string, age int) {}
//
//	var Greet = prompt.Must(prompt.Func(greet))
//
//	out, err := Greet.Render("John", 40)
//	// out: "Hello, I am John and I am 40 years old."
//
// When sources are not shipped with the binary, declare the prompt directly:
//
//	var Greet = prompt.Must(prompt.Prompt(prompt.Declaration{
//	    Name:   "greet",
//	    Doc:    "Hello, I am {{ name }} and I am {{ age }} years old.",
//	    Params: []prompt.Param{prompt.Required("name"), prompt.Optional("age", 40)},
//	}))
//
// Templates without signature accept keyword arguments only:
//
//	tmpl, _ := prompt.FromString("Value: {{ x }}")
//	out, err := tmpl.RenderMap(map[string]interface{}{"x": 5})
//
// Doc comments are normalized by Clean before compilation. Common indentation
// is removed, a trailing blank line is kept as one newline, and whitespace
// runs that follow a word are collapsed to a single space.
//
// Engine settings (helpers, autoescaping, logging) live in an Environment.
// The package-level functions use Default().
package prompt
