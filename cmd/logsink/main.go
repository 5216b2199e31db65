package main

import (
	"os"

	"github.com/go-lynx/logsink/cmd/logsink/internal/command"
	"github.com/go-lynx/logsink/log"
)

// release is set at build time with -ldflags "-X main.release=..."
var release = "v0.1.0"

func main() {
	if err := command.NewRoot(release).Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
