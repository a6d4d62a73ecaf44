package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justin-russell/matrix-gptbot/backend/openai"
	"github.com/justin-russell/matrix-gptbot/backend/tracking"
	"github.com/justin-russell/matrix-gptbot/backend/wolfram"
	"github.com/justin-russell/matrix-gptbot/bot"
	"github.com/justin-russell/matrix-gptbot/commands"
	"github.com/justin-russell/matrix-gptbot/guard"
	"github.com/justin-russell/matrix-gptbot/history"
	"github.com/justin-russell/matrix-gptbot/internal/logutil"
	"github.com/justin-russell/matrix-gptbot/internal/tokenutil"
	"github.com/justin-russell/matrix-gptbot/llm"
	"github.com/justin-russell/matrix-gptbot/matrix"
	"github.com/justin-russell/matrix-gptbot/store"
	"github.com/justin-russell/matrix-gptbot/usage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the homeserver and answer room messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			homeserver := strings.TrimSpace(viper.GetString("matrix.homeserver"))
			if homeserver == "" {
				return fmt.Errorf("missing matrix.homeserver (set via config or %s_MATRIX_HOMESERVER)", envPrefix)
			}
			userID := strings.TrimSpace(viper.GetString("matrix.user_id"))
			if userID == "" {
				return fmt.Errorf("missing matrix.user_id")
			}
			accessToken := strings.TrimSpace(viper.GetString("matrix.access_token"))
			if accessToken == "" {
				return fmt.Errorf("missing matrix.access_token (set via config or %s_MATRIX_ACCESS_TOKEN)", envPrefix)
			}
			openaiKey := strings.TrimSpace(viper.GetString("openai.api_key"))
			if openaiKey == "" {
				return fmt.Errorf("missing openai.api_key (set via config or %s_OPENAI_API_KEY)", envPrefix)
			}

			dbPath, err := store.ResolveSQLitePath(viper.GetString("database.path"))
			if err != nil {
				return err
			}
			gdb, err := store.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			db, err := store.NewDB(gdb)
			if err != nil {
				return err
			}
			log.Info("store_opened", "path", dbPath)

			model := viper.GetString("openai.model")
			openaiClient := openai.New("", openaiKey)
			wolframClient := wolfram.New("", viper.GetString("wolfram.api_key"))
			trackingClient := tracking.New("", viper.GetString("tracking.api_key"))

			assembler := &history.Assembler{
				Store:                db,
				Estimator:            tokenutil.NewEstimator(model),
				DefaultSystemMessage: viper.GetString("bot.system_message"),
				ForceSystemMessage:   viper.GetBool("bot.force_system_message"),
				MaxTokens:            viper.GetInt("openai.max_tokens"),
				MaxMessages:          viper.GetInt("openai.max_messages"),
			}
			accountant := usage.NewAccountant(db)
			allowed := guard.New(guard.Config{AllowedUsers: viper.GetStringSlice("bot.allowed_users")})

			registry := commands.NewRegistry()
			registry.Register(&commands.HelpCommand{Registry: registry})
			registry.Register(&commands.NewRoomCommand{DefaultName: viper.GetString("bot.default_room_name")})
			registry.Register(&commands.CalculateCommand{Wolfram: wolframClient})
			registry.Register(&commands.ImagineCommand{OpenAI: openaiClient})
			registry.Register(&commands.ParcelCommand{Tracking: trackingClient})
			registry.Register(&commands.SystemMessageCommand{Store: db})
			registry.Register(&commands.BackendCommand{Store: db, Known: []string{"openai"}, Default: "openai"})
			registry.Register(&commands.StatsCommand{Store: db, Accountant: accountant})
			registry.Register(&commands.IgnoreOlderCommand{Store: db})
			registry.Register(&commands.BotInfoCommand{
				UserID:      userID,
				DisplayName: viper.GetString("matrix.display_name"),
				Model:       model,
				Operator:    viper.GetString("bot.operator"),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// The HTTP client must outwait the 30s sync long-poll.
			client, err := matrix.NewClient(matrix.ClientConfig{
				HomeserverURL: homeserver,
				UserID:        userID,
				AccessToken:   accessToken,
				HTTPClient:    &http.Client{Timeout: 2 * time.Minute},
				Logger:        log,
			})
			if err != nil {
				return err
			}
			if whoami, err := client.WhoAmI(ctx); err != nil {
				return fmt.Errorf("access token validation failed: %w", err)
			} else if whoami != userID {
				return fmt.Errorf("access token belongs to %s, configured matrix.user_id is %s", whoami, userID)
			}

			dispatcher := bot.NewDispatcher(bot.Config{
				BotUserID:      userID,
				CommandPrefix:  viper.GetString("bot.command_prefix"),
				Model:          model,
				DefaultBackend: "openai",
				BackendTimeout: viper.GetDuration("openai.request_timeout"),
				MaxInFlight:    viper.GetInt("bot.max_in_flight"),
			}, log, db, assembler,
				map[string]llm.Client{"openai": openaiClient},
				accountant, registry, allowed, client)
			dispatcher.Start(ctx)

			log.Info("bot_started", "user_id", userID, "homeserver", homeserver)
			err = client.RunSync(ctx, func(ev bot.Event) {
				if err := dispatcher.Enqueue(ctx, ev); err != nil {
					log.Warn("enqueue_error", "room_id", ev.RoomID, "error", err.Error())
				}
			})
			if ctx.Err() != nil {
				log.Info("bot_stopped")
				return nil
			}
			return err
		},
	}
	return cmd
}
