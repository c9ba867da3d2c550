package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/fmercier/allocine-scraper/internal/root"
)

func main() {
	ctx := context.Background()

	if err := root.Root(ctx).Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
