package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// .env 不存在时忽略，环境变量优先
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "contesthub",
		Short:   "ContestHub backend: contests, paid registration, submissions and winners",
		Version: Version,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
