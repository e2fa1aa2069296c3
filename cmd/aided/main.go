// Command aided is the thin CLI/daemon entrypoint that wires the kernel,
// reducer, orchestrator, classifier, llm, telemetry, and persistence
// packages together for local exercise. HTTP/WebSocket framing, auth, and
// object storage remain external collaborators this binary never implements
// directly.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aided:", err)
		os.Exit(1)
	}
}
