// Command bellhop is the terminal client: it lists, mutates, and tails
// notifications against a running hubd.
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bellhop-dev/bellhop/internal/version"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "bellhop",
		Short:   "Notifications in your terminal",
		Version: version.Get(),
	}

	rootCmd.PersistentFlags().String("server", envOr("BELLHOP_SERVER", "http://localhost:8080"), "hubd base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("BELLHOP_TOKEN"), "bearer token")

	rootCmd.AddCommand(
		listCmd(),
		notifyCmd(),
		readCmd(),
		readAllCmd(),
		deleteCmd(),
		tailCmd(),
		tokenCmd(),
	)

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
