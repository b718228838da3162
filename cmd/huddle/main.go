package main

import (
	"log/slog"

	"github.com/BioHazard786/Huddle/internal/cli"
	"github.com/BioHazard786/Huddle/internal/logging"
)

func main() {
	logging.Init(slog.LevelError, "text")
	cli.Execute()
}
