package discord

// Config holds the Discord surface settings. The surface is disabled when
// Token is empty.
type Config struct {
	Token string `env:"FAUCET_DISCORD_TOKEN"`
	// ActiveChannel is the name of the only text channel the bot listens in.
	ActiveChannel string `env:"FAUCET_DISCORD_CHANNEL" envDefault:"faucet"`
}

// Enabled reports whether a bot token is configured.
func (c Config) Enabled() bool {
	return c.Token != ""
}
