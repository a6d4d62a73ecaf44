package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Matrix
	viper.SetDefault("matrix.homeserver", "")
	viper.SetDefault("matrix.access_token", "")
	viper.SetDefault("matrix.user_id", "")
	viper.SetDefault("matrix.display_name", "GPTBot")

	// OpenAI
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.model", "gpt-3.5-turbo")
	viper.SetDefault("openai.max_tokens", 3000)
	viper.SetDefault("openai.max_messages", 20)
	viper.SetDefault("openai.request_timeout", 2*time.Minute)

	// Auxiliary backends
	viper.SetDefault("wolfram.api_key", "")
	viper.SetDefault("tracking.api_key", "")

	// Bot behavior
	viper.SetDefault("bot.command_prefix", "!gptbot")
	viper.SetDefault("bot.default_room_name", "GPTBot")
	viper.SetDefault("bot.system_message", "You are a helpful assistant.")
	viper.SetDefault("bot.force_system_message", false)
	viper.SetDefault("bot.operator", "")
	viper.SetDefault("bot.allowed_users", []string{})
	viper.SetDefault("bot.max_in_flight", 4)

	// Storage
	viper.SetDefault("database.path", "")

	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("verbose", false)
}
