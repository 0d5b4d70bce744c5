package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vznh/conviction/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "conviction",
	Short: "A 75-day challenge tracker that lives in your server's threads.",
	Long: `conviction tracks daily completion of a 75-day challenge for a group.
Entry threads in the chat platform are the durable record; conviction
rebuilds everyone's status and history from thread names, reconciles state
at the daily boundaries, and archives an entry once every requirement in
it is satisfied.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.conviction.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".conviction")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.conviction.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.guild", "")
	viper.SetDefault("channels.threads", "")
	viper.SetDefault("channels.statuses", "")
	viper.SetDefault("channels.cheatref", "")
	viper.SetDefault("channels.alarms", "")
	viper.SetDefault("messages.statuses", "")
	viper.SetDefault("messages.history", "")
	viper.SetDefault("messages.cheatref", "")
	viper.SetDefault("campaign.start", "2025-10-04")
	viper.SetDefault("campaign.timezone", "America/Los_Angeles")
	viper.SetDefault("journal.path", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
