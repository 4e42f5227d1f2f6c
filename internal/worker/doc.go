// Package worker implements the prompt worker lifecycle and Redis Streams integration.
//
// The worker reads render requests from a Redis stream as a consumer group
// member. Each message carries a JSON renderer.Request in its data field:
//
//	{"request_id": "42", "template": "greet", "args": ["John"], "kwargs": {"age": 40}}
//
// Rendered prompts are published to the result stream. Failures go to the
// result stream with an ".errors" suffix and carry the error kind, e.g.
// "binding" or "undefined_variable". Every message is acknowledged.
//
//	w := worker.NewWorker(cfg, redisClient, r, logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(10 * time.Second)
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8083, redisClient, reg, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
