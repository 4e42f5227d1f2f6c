// Package template provides a strict Handlebars template engine for rendering LLM prompts.
//
// Templates are compiled once and cached by source. Rendering is strict: before
// raymond runs, Exec walks the template against the data and fails with
// *UndefinedError on the first path found in no visible scope, instead of
// substituting empty text.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	tmpl, err := engine.Compile("Message: {{ message }}\nPriority: {{uppercase priority}}")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := tmpl.Exec(map[string]interface{}{
//	    "message":  "Hello World",
//	    "priority": "high",
//	})
//	// Output: Message: Hello World
//	//         Priority: HIGH
//
// Output is not HTML escaped unless the engine is built WithAutoescape(true).
//
// Built-in helpers:
//   - uppercase - Convert string to uppercase
//   - lowercase - Convert string to lowercase
//   - trim - Trim whitespace from string
//   - default - Return default value if first arg is empty
//   - eq - Equality comparison
//   - ne - Inequality comparison
//   - gt - Greater than (for numbers)
//   - lt - Less than (for numbers)
//   - contains - Check if string contains substring
//   - join - Join array elements with separator
//   - len - Get length of array/string/map
//
// Helpers are attached to each compiled template rather than registered globally,
// so engines with different helper sets can coexist in one process.
//
// The walk follows the branches rendering takes. {{#each}} and {{#with}} bodies
// are checked against each pushed item, falling back to parent scopes like
// raymond does, and only the taken side of {{#if}} or {{#unless}} is checked,
// so a guarded optional value may be absent.
package template
