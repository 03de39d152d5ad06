package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sjsage522/listingwatcher/config"
)

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"watch":            "watch_interval_seconds",
	"bootstrap":        "bootstrap",
	"mode":             "detector",
	"max-price":        "max_price",
	"verbose":          "verbose",
	"seen":             "seen_path",
	"browser-fallback": "browser_fallback",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listingwatcher [search-url ...]",
		Short: "Watch marketplace search pages and report listings not seen before",
		Long: `Poll one or more marketplace search URLs, record every listing
identifier in a local seen store and report the ones that are new.

Without --watch a single pass is run. With --bootstrap the first pass
records listings without reporting them. --mode gold inspects each new
listing's detail page and reports only solid gold below --max-price.

Every flag can also be set through the environment or a config file
named by WATCH_CONFIG_FILE.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			if len(args) > 0 {
				v.Set("search_urls", args)
			}
			return run(cmd.Context(), config.Load(v))
		},
	}

	cmd.Flags().Int("watch", 0, "poll interval in seconds (0 runs a single pass)")
	cmd.Flags().Bool("bootstrap", false, "record the first pass without reporting")
	cmd.Flags().String("mode", config.DetectorNone, `detector mode: "" or "gold"`)
	cmd.Flags().Float64("max-price", 25, "maximum price accepted by the detector")
	cmd.Flags().BoolP("verbose", "v", false, "debug logging")
	cmd.Flags().String("seen", "seen.json", "path of the seen store")
	cmd.Flags().Bool("browser-fallback", false, "retry hard-blocked pages in headless Chrome")

	return cmd
}

// bindFlags makes explicitly set flags override env and file values
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}
