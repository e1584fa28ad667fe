// Package discord is the Discord chat surface of the faucet.
//
// The bot listens in a single text channel (Config.ActiveChannel), runs
// "!faucet", "!balance" and "!drip <address> [strategy]" through a
// channel.Handler, and replies to the author when a command has an
// immediate answer. Register the bot as the faucet.Notifier for Kind so
// successful disbursements are announced in the originating channel:
//
//	session, err := discord.NewSession(cfg.Token)
//	handler, err := channel.NewHandler(discord.Kind, service, messages)
//	bot, err := discord.New(cfg, session, handler, messages)
//	notifications.Register(discord.Kind, bot)
//	g.Go(bot.Run(ctx))
package discord
