package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ufcsebrae/Prumo/cmd/prumo/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prumo",
	Short: "Budget execution report tool",
	Long: `Prumo reconciles executed, planned and forecast budget amounts into one
ledger per category and month, and renders the revenue, expense and
surplus/deficit tables of the budget execution report.

Examples:
  prumo report --config report.yaml
  prumo report --config report.yaml --year 2025 --output-format console
  prumo report --config report.yaml -f xlsx -o previa.xlsx --ledger-db ledger.db
  prumo ledger --config report.yaml --ledger-db ledger.db --year 2025
  prumo months
  prumo version`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./prumo.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the dotenv file, the config file and ENV variables.
func initConfig() {
	// A missing .env is normal outside development
	if err := godotenv.Load(envFile); err != nil && viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "No env file loaded from %s\n", envFile)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("prumo")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}
	} else if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	// Read environment variables that match, e.g. PRUMO_OUTPUT_FORMAT
	viper.SetEnvPrefix("PRUMO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "prumo %s (commit %s, built %s)\n", version, commit, date)
	},
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
