// Command quill streams an assistant-written reply for the text on screen.
//
// Usage:
//
//	GEMINI_API_KEY=... quill run --demo "reply warmly and confirm the deadline"
//	quill run --app Mail --context-file thread.txt --mode compose
//	quill history
//
// Configuration lives at ~/.quill/config.yaml (override with QUILL_CONFIG
// or --config).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		os.Exit(1)
	}
}
