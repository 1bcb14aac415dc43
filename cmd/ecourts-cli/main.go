package main

import (
	"context"
	"log/slog"

	"ecourts-backend/cmd/ecourts-cli/commands"
	"ecourts-backend/lib/telemetry"
)

func main() {
	ctx := context.Background()
	telemetry.InitSlog(true)

	tel, err := telemetry.SetupFromEnv(ctx, "ecourts-cli")
	if err != nil {
		slog.Error("failed to setup telemetry", "err", err)
	} else {
		defer tel.Shutdown(ctx)
	}

	commands.ExecuteContext(ctx)
}
