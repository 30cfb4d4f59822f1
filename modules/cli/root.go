package cli

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/felixge/fgprof"
	"github.com/lkarlslund/winsec/modules/ui"
	"github.com/lkarlslund/winsec/modules/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	Root = &cobra.Command{
		Use:              "winsec",
		Short:            version.VersionStringShort(),
		SilenceErrors:    true,
		SilenceUsage:     true,
		TraverseChildren: true,
	}

	loglevel     = Root.PersistentFlags().String("loglevel", "info", "Console log level")
	logfile      = Root.PersistentFlags().String("logfile", "", "File to log to")
	logfilelevel = Root.PersistentFlags().String("logfilelevel", "info", "Log file log level")
	logzerotime  = Root.PersistentFlags().Bool("logzerotime", false, "Logged timestamps start from zero when program launches")

	embeddedprofiler = Root.PersistentFlags().Bool("embeddedprofiler", false, "Start embedded Go profiler on localhost:6060")

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show winsec version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.Info().Msg(version.ProgramVersionShort())
			return nil
		},
	}
)

func bindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && viper.IsSet(f.Name) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(viper.GetStringSlice(f.Name))
			} else {
				f.Value.Set(viper.GetString(f.Name))
			}
		}
	})
	for _, subCommand := range cmd.Commands() {
		bindFlags(subCommand)
	}
}

func loadConfiguration(cmd *cobra.Command) {
	// Bind environment variables
	viper.SetEnvPrefix("WINSEC_")
	viper.AutomaticEnv()

	viper.SetConfigFile("winsec.yaml")
	if err := viper.ReadInConfig(); err == nil {
		ui.Debug().Msgf("Using configuration file: %v", viper.ConfigFileUsed())
	}

	bindFlags(cmd)
}

func init() {
	cobra.OnInitialize(func() {
		loadConfiguration(Root)
	})

	Root.AddCommand(versionCmd)
	Root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		ui.Zerotime = *logzerotime

		ll, err := ui.LogLevelString(*loglevel)
		if err != nil {
			return err
		}
		ui.SetLoglevel(ll)

		if *logfile != "" {
			fll, err := ui.LogLevelString(*logfilelevel)
			if err != nil {
				return err
			}
			if err := ui.SetLogFile(*logfile, fll); err != nil {
				return err
			}
		}

		if *embeddedprofiler {
			go func() {
				http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())
				err := http.ListenAndServe("localhost:6060", nil)
				if err != nil {
					ui.Error().Msgf("Profiling listener failed: %v", err)
				}
			}()
		}

		return nil
	}
}

func Run() error {
	return Root.Execute()
}
