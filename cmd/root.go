/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	loginCmd "github.com/mpapenbr/participant-core-go/pkg/cmd/login"
	logoutCmd "github.com/mpapenbr/participant-core-go/pkg/cmd/logout"
	renewCmd "github.com/mpapenbr/participant-core-go/pkg/cmd/renew"
	signupCmd "github.com/mpapenbr/participant-core-go/pkg/cmd/signup"
	surveyCmd "github.com/mpapenbr/participant-core-go/pkg/cmd/survey"
	"github.com/mpapenbr/participant-core-go/pkg/config"
	"github.com/mpapenbr/participant-core-go/version"
)

const envPrefix = "PCC"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "pcc",
	Short:   "Participant client for study surveys",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.pcc.yml)")

	rootCmd.PersistentFlags().StringVar(&config.APIURL, "api-url",
		"http://localhost:3231",
		"Base URL of the participant API")
	rootCmd.PersistentFlags().StringVar(&config.InstanceID, "instance-id",
		"default",
		"Instance the participant belongs to")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"0s",
		"Duration to wait for the API to be ready")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.StateStore,
		"state-store",
		"file",
		"where the login is kept (file, memory, nats)")
	rootCmd.PersistentFlags().StringVar(&config.StateDir,
		"state-dir",
		defaultStateDir(),
		"directory for the file state store")
	rootCmd.PersistentFlags().StringVar(&config.StateKey,
		"state-key",
		"pcc.state",
		"storage key of the state snapshot")
	rootCmd.PersistentFlags().StringVar(&config.NatsURL,
		"nats-url",
		"nats://localhost:4222",
		"NATS server for the nats state store")
	rootCmd.PersistentFlags().StringVar(&config.NatsBucket,
		"nats-bucket",
		"pcc_state",
		"key value bucket for the nats state store")
	rootCmd.PersistentFlags().StringVar(&config.RenewThreshold,
		"renew-threshold",
		"1m",
		"renew access tokens expiring within this duration")
	rootCmd.PersistentFlags().StringVar(&config.LockTimeout,
		"lock-timeout",
		"60s",
		"max duration to wait for a running token renewal")
	rootCmd.PersistentFlags().StringVar(&config.RequestTimeout,
		"request-timeout",
		"30s",
		"timeout for a single API request")

	// add commands here
	rootCmd.AddCommand(loginCmd.NewLoginCmd())
	rootCmd.AddCommand(logoutCmd.NewLogoutCmd())
	rootCmd.AddCommand(renewCmd.NewRenewCmd())
	rootCmd.AddCommand(signupCmd.NewSignupCmd())
	rootCmd.AddCommand(surveyCmd.NewSurveyCmd())
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".pcc"
	}
	return dir + string(os.PathSeparator) + "pcc"
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pcc" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pcc")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --api-url to PCC_API_URL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
