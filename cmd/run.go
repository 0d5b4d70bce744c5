package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat/discord"
	"github.com/vznh/conviction/pkg/cheat"
	"github.com/vznh/conviction/pkg/dayclock"
	"github.com/vznh/conviction/pkg/entries"
	"github.com/vznh/conviction/pkg/reminders"
	"github.com/vznh/conviction/pkg/storage"
	"github.com/vznh/conviction/pkg/tracker"
)

// runCmd implements: conviction run
//
// Connects to the platform, rebuilds all state from the thread listing,
// then runs the reconciliation scheduler, the reminder loop, and the
// entry-reply sweep until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the challenge tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := viper.GetString("discord.token")
		guild := viper.GetString("discord.guild")
		threadsChannel := viper.GetString("channels.threads")
		statusesChannel := viper.GetString("channels.statuses")
		if token == "" || guild == "" || threadsChannel == "" || statusesChannel == "" {
			return fmt.Errorf("discord.token, discord.guild, channels.threads and channels.statuses are required in config")
		}

		clock, err := dayclock.New(viper.GetString("campaign.start"), viper.GetString("campaign.timezone"))
		if err != nil {
			return err
		}

		var db *storage.DB
		if path := viper.GetString("journal.path"); path != "" {
			db, err = storage.Open(path)
			if err != nil {
				return fmt.Errorf("could not open journal: %w", err)
			}
			defer db.Close()
		}

		client := discord.New(token, guild, threadsChannel)
		store := tracker.NewStore()
		service := tracker.NewService(store, tracker.Config{
			Client:           client,
			Clock:            clock,
			DB:               db,
			GuildID:          guild,
			StatusesChannel:  statusesChannel,
			StatusMessageID:  viper.GetString("messages.statuses"),
			HistoryMessageID: viper.GetString("messages.history"),
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := service.Setup(ctx); err != nil {
			return err
		}

		cheatSvc := cheat.NewService(client, store, clock, viper.GetString("channels.cheatref"), viper.GetString("messages.cheatref"))
		cheatSvc.SetJournal(db)
		var names []string
		for _, p := range store.Snapshot() {
			names = append(names, p.Name)
		}
		if err := cheatSvc.Setup(ctx, names, clock.CurrentDayIndex(time.Now())); err != nil {
			utils.Log.Errorf("Cheat-day setup failed: %v", err)
		}

		reminderSvc := reminders.NewService(client, clock, service, viper.GetString("channels.alarms"))
		if err := reminderSvc.Load(ctx); err != nil {
			utils.Log.Errorf("Reminder setup failed: %v", err)
		}
		go reminderSvc.Run(ctx)

		detector := entries.NewDetector(client)
		detector.OnArchived = func(ctx context.Context, participant string, day int) {
			service.MarkArchived(ctx, service.Resolve(participant), day)
		}
		poller := entries.NewPoller(client, detector)
		go func() {
			poller.Sweep(ctx) // prime high-water marks
			runSweepLoop(ctx, poller)
		}()

		scheduler := tracker.NewScheduler(service)
		scheduler.Run(ctx)

		utils.Log.Info("Shutdown finalized.")
		return nil
	},
}

// runSweepLoop feeds the submission detector on a fixed cadence. The
// sweep itself is skip-and-log, so a platform hiccup only delays replies
// by one pass.
func runSweepLoop(ctx context.Context, poller *entries.Poller) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poller.Sweep(ctx)
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
