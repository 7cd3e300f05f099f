// Package cli implements the slsaverify command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/letmehateu/automata-slsa-sigstore-verifier/cmd/slsaverify/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cfgFile is the path to the config file (set via --config flag).
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "slsaverify",
	Short: "Verify Sigstore-attested SLSA build provenance",
	Long: `slsaverify checks a Sigstore bundle's DSSE envelope signature, Fulcio
certificate chain, and RFC 3161 or Rekor timestamp proof against a trust
root, extracts the signer's OIDC identity, and emits the verification
result as a canonical journal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose debug logging")

	//nolint:errcheck // flags are defined above, so Lookup will never return nil
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	viper.SetDefault("verify.require_set", false)
	viper.SetDefault("verify.fulcio_instance", "")
	viper.SetDefault("verify.expected_issuer", "")
	viper.SetDefault("verify.expected_subject", "")

	rootCmd.Version = version
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := config.Dir()
		if err == nil {
			viper.AddConfigPath(configDir)
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables: SLSAVERIFY_VERIFY_REQUIRE_SET, etc.
	viper.SetEnvPrefix("SLSAVERIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Config file is optional - don't fail if missing.
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config:", viper.ConfigFileUsed())
		}
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func logger() *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
