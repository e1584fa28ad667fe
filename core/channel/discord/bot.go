package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/dmitrymomot/faucet/core/channel"
	"github.com/dmitrymomot/faucet/core/faucet"
	"github.com/dmitrymomot/faucet/core/logger"
)

// Kind tags requests that arrive through Discord.
const Kind = "discord"

// Channel entry holding the Discord channel a request came from.
const routeChannelID = "channelId"

// Session is the part of *discordgo.Session the bot uses.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler any) func()
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// NewSession creates a bot session that receives guild message content.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenSession, err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return s, nil
}

// Bot relays chat commands from one Discord channel to the faucet and posts
// successful disbursements back where they were requested.
type Bot struct {
	session       Session
	handler       *channel.Handler
	messages      *faucet.Messages
	activeChannel string
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
}

// Option configures the Bot.
type Option func(*Bot)

// WithLogger sets the bot logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bot) {
		if log != nil {
			b.logger = log
		}
	}
}

// New creates the bot. The handler must have been created for Kind.
func New(cfg Config, session Session, handler *channel.Handler, messages *faucet.Messages, opts ...Option) (*Bot, error) {
	if session == nil {
		return nil, ErrSessionNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}
	if messages == nil {
		return nil, ErrMessagesNil
	}

	b := &Bot{
		session:       session,
		handler:       handler,
		messages:      messages,
		activeChannel: cfg.ActiveChannel,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run opens the gateway connection and listens until ctx is cancelled.
// Compatible with errgroup.
func (b *Bot) Run(ctx context.Context) func() error {
	return func() error {
		b.mu.Lock()
		if b.running {
			b.mu.Unlock()
			return ErrAlreadyRunning
		}
		b.running = true
		b.mu.Unlock()

		defer func() {
			b.mu.Lock()
			b.running = false
			b.mu.Unlock()
		}()

		remove := b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			b.HandleMessage(ctx, m)
		})
		defer remove()

		if err := b.session.Open(); err != nil {
			return fmt.Errorf("%w: %w", ErrOpenSession, err)
		}
		b.logger.InfoContext(ctx, "discord bot connected", logger.Key("channel", b.activeChannel))

		<-ctx.Done()

		if err := b.session.Close(); err != nil {
			b.logger.WarnContext(context.Background(), "failed to close discord session", logger.Error(err))
		}
		b.logger.InfoContext(context.Background(), "discord bot stopped")
		return nil
	}
}

// HandleMessage answers one inbound message. Messages from bots and from
// channels other than the active one are ignored.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}

	ch, err := b.session.Channel(m.ChannelID)
	if err != nil {
		b.logger.WarnContext(ctx, "channel lookup failed",
			logger.Key("channel_id", m.ChannelID),
			logger.Error(fmt.Errorf("%w: %w", ErrChannelLookup, err)))
		return
	}
	if ch.Name != b.activeChannel {
		return
	}

	reply, ok := b.handler.Handle(ctx, channel.Message{
		Account: m.Author.ID,
		Text:    m.Content,
		Route:   map[string]string{routeChannelID: m.ChannelID},
	})
	if !ok {
		return
	}

	if _, err := b.session.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
		b.logger.ErrorContext(ctx, "failed to reply",
			logger.Identity(m.Author.ID),
			logger.Error(fmt.Errorf("%w: %w", ErrSendFailed, err)))
	}
}

// Notify posts the success message into the channel the request came from.
// It implements faucet.Notifier for Kind.
func (b *Bot) Notify(ctx context.Context, ch faucet.Channel, amount, txHash string) error {
	channelID := ch[routeChannelID]
	if channelID == "" {
		return ErrMissingRoute
	}

	content := b.messages.Render(faucet.MessageDripSuccess, faucet.MessageData{
		Account: mention(ch["account"]),
		Amount:  amount,
		TxHash:  txHash,
	})
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func mention(userID string) string {
	if userID == "" {
		return "there"
	}
	return "<@" + userID + ">"
}
