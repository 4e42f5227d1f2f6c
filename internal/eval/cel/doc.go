// Package cel provides a CEL (Common Expression Language) evaluator for parameter checks.
//
// CEL is a non-Turing complete expression language that provides fast, safe evaluation
// of conditions. Prompt signatures use it to validate bound arguments before rendering.
//
// Example usage:
//
//	evaluator, err := cel.NewEvaluator("name", "age")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ok, err := evaluator.EvaluateBool(ctx, "age >= 0 && size(name) > 0", map[string]interface{}{
//	    "name": "John",
//	    "age":  40,
//	})
//	// ok == true
//
// Supported operations:
//   - Comparisons: ==, !=, <, <=, >, >=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - Arithmetic: +, -, *, /, %
//   - List operations: in, size
//   - Map access: args.field, args["field"]
package cel
