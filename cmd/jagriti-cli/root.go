package main

import (
	"errors"
	"os"

	"jagriti-backend/lib/configutil"
	"jagriti-backend/lib/restyutil"
	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	config  string
	baseUrl string
	verbose bool
	dump    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "jagriti-cli",
		Short:         "jagriti-cli looks up states, commissions and cases on the e-Jagriti portal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			telemetry.InitSlog(flags.verbose)

			cfg, err := configutil.ReadConfigWithDefaults(flags.config, jagriti.DefaultConfig())
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if flags.baseUrl != "" {
				cfg.Transport.BaseURL = flags.baseUrl
			}

			opts := jagriti.ClientOptions{Telemetry: telemetry.SlogAPI{}}
			if flags.dump {
				output, err := restyutil.NewFilesystemOutput("<dev_state>/resty/jagriti-cli")
				if err != nil {
					return err
				}
				opts.DumpOutput = output
			}

			portal, err := jagriti.New(cfg, opts)
			if err != nil {
				return err
			}
			cmd.SetContext(withPortal(cmd.Context(), portal))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.config, "config", "jagriti.json5", "Path to the portal config file.")
	root.PersistentFlags().StringVar(&flags.baseUrl, "base-url", "", "Override the portal's base URL.")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging.")
	root.PersistentFlags().BoolVar(&flags.dump, "dump", false, "Dump every portal exchange under dev/.state/resty.")

	root.AddCommand(
		newStatesCmd(),
		newCommissionsCmd(),
		newSearchCmd(),
		newWarmCmd(),
	)
	return root
}
