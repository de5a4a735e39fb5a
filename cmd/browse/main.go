package main

import (
	"context"

	"browsehtml/cmd/browse/commands"
	"browsehtml/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "browse-cli")
	commands.ExecuteContext(context.Background())
}
