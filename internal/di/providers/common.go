package providers

import "time"

// shutdownTimeout bounds how long the HTTP server waits for in-flight
// requests during shutdown.
const shutdownTimeout = 30 * time.Second
