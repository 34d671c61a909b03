package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/streem-backend/internal/app"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		panic(err)
	}
	defer application.Close(context.Background())

	if err := application.StartAPI(ctx); err != nil {
		application.Log.Error("API exited", "error", err.Error())
		os.Exit(1)
	}
}
