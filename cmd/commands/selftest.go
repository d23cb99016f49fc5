package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sliceflow/pipeline/config"
	"github.com/sliceflow/pipeline/logging/logger"
	"github.com/sliceflow/pipeline/storage"
)

// NewSelfTestCommand creates the selftest command. It probes the
// object storage backend and prints a report.
func NewSelfTestCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Probe the object storage backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			log := logger.StandardLogger()
			cleanup, err := log.Init(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer cleanup()

			gateway, err := storage.NewGateway(cfg.Storage, log.Logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			report := gateway.SelfTest(ctx)
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if !report.Connected {
				return fmt.Errorf("storage self test failed: %s", report.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	return cmd
}
