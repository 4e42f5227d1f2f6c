// Package config provides configuration management for the prompt worker.
//
// Configuration is loaded from environment variables and validated on startup.
// Every option has a default suitable for local development. Templates are
// read from TEMPLATE_DIR when set and from Redis keys under TEMPLATE_PREFIX
// otherwise.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
