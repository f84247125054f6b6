package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/strain-pipeline/cmd/pipeline/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
