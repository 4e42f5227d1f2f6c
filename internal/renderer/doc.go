// Package renderer serves render requests against a prompt registry.
//
// A request names a template and carries positional and keyword arguments.
// The rendered prompt can be sent to an LLM when the request sets Complete:
//
//	r := renderer.NewRenderer(reg, llmClient, renderer.Options{Timeout: 30 * time.Second}, logger)
//	res, err := r.Render(ctx, &renderer.Request{
//	    Template: "greet",
//	    Args:     []interface{}{"John"},
//	    Complete: true,
//	})
//
// Failures are classified by ErrorKind so stream consumers can tell caller
// mistakes (binding, undefined variables) from infrastructure problems.
package renderer
