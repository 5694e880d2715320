// Package main provides the chunky-pr CLI: the update site server, an MCP
// server and tools to inspect builds from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/leMaik/chunky-pr-as-update-site/src/config"
	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
	"github.com/leMaik/chunky-pr-as-update-site/src/mcp"
	"github.com/leMaik/chunky-pr-as-update-site/src/provider"
	"github.com/leMaik/chunky-pr-as-update-site/src/server"
)

var version = "dev"

var (
	configPath string
	appConfig  *config.Config
	logLevel   logger.Level
)

var rootCmd = &cobra.Command{
	Use:   "chunky-pr",
	Short: "Serve Chunky CI builds as an update site",
	Long: `chunky-pr serves the core library built by CI for a Chunky pull request
or branch in the format of the Chunky launcher's update site.

Point the launcher at http://host:port/pr/{number}/ or
http://host:port/branch/{name}/ to try a build. Everything that is not part
of the build is redirected to the regular update site.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		var err error
		if configPath != "" {
			appConfig, err = config.Load(configPath)
		} else {
			appConfig, err = config.LoadFromEnv()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
		logLevel, err = logger.ParseLevel(appConfig.Log.Level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the update site server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			appConfig.Server.Port = port
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger.NewConsoleLoggerWithLevel(logLevel)
		app, err := newApp(ctx, appConfig, log)
		if err != nil {
			return err
		}
		defer app.Close()

		svc := server.New(app.Pipeline, appConfig.Server.Upstream, server.WithLogger(log))
		return svc.ListenAndServe(ctx, ":"+strconv.Itoa(appConfig.Server.Port))
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the core library of a pull request or branch build",
	Example: `  chunky-pr inspect --pr 1276
  chunky-pr inspect --branch master`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, _ := cmd.Flags().GetInt("pr")
		branch, _ := cmd.Flags().GetString("branch")
		id, err := provider.IdentifierFrom(pr, branch)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		app, err := newApp(ctx, appConfig, logger.NewConsoleLoggerWithLevel(logLevel))
		if err != nil {
			return err
		}
		defer app.Close()

		a, err := app.Pipeline.Describe(ctx, id, zeroTime)
		if err != nil {
			return provider.WrapError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderArtifact(a, defaultStyles()))
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol
		log := logger.NewStderrLogger(logLevel)
		app, err := newApp(cmd.Context(), appConfig, log)
		if err != nil {
			return err
		}
		defer app.Close()

		return mcp.NewServer(app.Pipeline, version).Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.FileEnv+")")

	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")

	inspectCmd.Flags().Int("pr", 0, "pull request number")
	inspectCmd.Flags().String("branch", "", "branch name")
	inspectCmd.MarkFlagsMutuallyExclusive("pr", "branch")
	inspectCmd.MarkFlagsOneRequired("pr", "branch")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
