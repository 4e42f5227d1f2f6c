// Package registry manages named prompt templates.
//
// Templates are described by YAML manifests:
//
//	name: greet
//	description: Introduce someone
//	params:
//	  - name: name
//	  - name: age
//	    default: 40
//	    check: age >= 0
//	template: |
//	  Hello, I am {{ name }} and I am {{ age }} years old.
//
// Manifests are loaded from a directory with LoadDir or kept in Redis with
// RedisStore. A Registry compiles them once and serves them by name.
package registry
