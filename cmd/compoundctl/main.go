// Command compoundctl performs operator tasks against the record store:
// seeding demo data, issuing and checking credentials, and setting user
// passwords.
package main

import (
	"context"
	"fmt"
	"os"

	"residence-backend/internal/bootstrap"
	"residence-backend/internal/config"
	"residence-backend/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const appName = "compoundctl"

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Operator tools for the residence backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	open := func(ctx context.Context) (*bootstrap.Services, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		zl, err := logger.New(logger.Options{Level: logLevel, Format: "console", Service: appName})
		if err != nil {
			return nil, err
		}
		// events are only published by the server
		cfg.MQTT.Enabled = false
		return bootstrap.Open(ctx, cfg, zl)
	}

	cmd.AddCommand(
		seedCmd(open),
		credentialCmd(open),
		userCmd(open),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

type opener func(ctx context.Context) (*bootstrap.Services, error)

func withServices(cmd *cobra.Command, open opener, fn func(context.Context, *bootstrap.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := open(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := fn(ctx, svc); err != nil {
		svc.Logger.Debug("command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
		return err
	}
	return nil
}
