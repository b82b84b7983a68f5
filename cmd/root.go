/*
	Copyright 2026 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	hostCmd "github.com/mpapenbr/racesim-engine/pkg/cmd/host"
	inspectCmd "github.com/mpapenbr/racesim-engine/pkg/cmd/inspect"
	joinCmd "github.com/mpapenbr/racesim-engine/pkg/cmd/join"
	migrateCmd "github.com/mpapenbr/racesim-engine/pkg/cmd/migrate"
	simulateCmd "github.com/mpapenbr/racesim-engine/pkg/cmd/simulate"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/version"
)

const envPrefix = "RSE"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rse",
	Short: "Two player race simulation engine",
	Long: `rse runs head to head races between two players. The convener hosts the race
and computes the canonical state, the other player joins and predicts locally.`,
	Version:      version.FullVersion,
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.rse.yml)")
	rootCmd.PersistentFlags().StringVar(&config.DB, "db",
		"",
		"Connection string for the database, empty runs without persistence")
	rootCmd.PersistentFlags().StringVar(&config.NatsURL, "nats-url",
		"",
		"URL of the NATS server carrying the race channel")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")

	rootCmd.AddCommand(migrateCmd.NewMigrateCmd())
	rootCmd.AddCommand(hostCmd.NewHostCmd())
	rootCmd.AddCommand(joinCmd.NewJoinCmd())
	rootCmd.AddCommand(simulateCmd.NewSimulateCmd())
	rootCmd.AddCommand(inspectCmd.NewInspectCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rse")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// bindFlags applies config file and env values (RSE_RACE_ID for --race-id) to every flag
// not set on the command line.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
