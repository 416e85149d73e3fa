package main

import (
	"github.com/spf13/cobra"

	"github.com/reoring/jsnorm/internal/config"
	"github.com/reoring/jsnorm/internal/logger"
)

type cfgKey struct{}

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jsnorm",
		Short:         "Strip readOnly fields and inject schema defaults into JSON documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	root.AddCommand(
		NormalizeCmd(),
		CheckCmd(),
		ServeCmd(),
	)
	return root
}

// setup loads configuration, applies logging flags and stores both in the
// command context.
func setup(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-json"); f != nil && f.Changed {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	lc := cfg.Log.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	ctx := logger.ContextWithLogger(cmd.Context(), logger.NewLogger(lc))
	cmd.SetContext(withConfig(ctx, cfg))
	return nil
}
