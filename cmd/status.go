package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vznh/conviction/pkg/chat/discord"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/tracker"
)

// statusCmd implements: conviction status
//
// One-shot reconstruction: rebuilds everyone's state from the thread
// listing and prints both panels to stdout without publishing anything.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Rebuild and print the status and history panels",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := viper.GetString("discord.token")
		guild := viper.GetString("discord.guild")
		threadsChannel := viper.GetString("channels.threads")
		if token == "" || guild == "" || threadsChannel == "" {
			return fmt.Errorf("discord.token, discord.guild and channels.threads are required in config")
		}

		clock, err := dayclock.New(viper.GetString("campaign.start"), viper.GetString("campaign.timezone"))
		if err != nil {
			return err
		}

		client := discord.New(token, guild, threadsChannel)
		store := tracker.NewStore()
		service := tracker.NewService(store, tracker.Config{
			Client:  client,
			Clock:   clock,
			GuildID: guild,
		})

		ctx := cmd.Context()
		if err := service.ScanMembers(ctx); err != nil {
			return err
		}
		if err := service.Rebuild(ctx); err != nil {
			return err
		}

		snapshot := store.Snapshot()
		fmt.Println(tracker.StatusPanel(snapshot, time.Now(), clock.Location()))
		fmt.Println()
		fmt.Println(tracker.HistoryPanel(snapshot))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
