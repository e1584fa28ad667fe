package discord_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/core/channel"
	"github.com/dmitrymomot/faucet/core/channel/discord"
	"github.com/dmitrymomot/faucet/core/faucet"
	"github.com/dmitrymomot/faucet/core/ledger"
	"github.com/dmitrymomot/faucet/pkg/async"
)

type sent struct {
	channelID string
	content   string
	replyTo   string
}

type fakeSession struct {
	mu       sync.Mutex
	channels map[string]string
	sent     []sent
	sendErr  error
	opened   bool
	closed   bool
	handlers int
}

func (s *fakeSession) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) AddHandler(handler any) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.handlers--
	}
}

func (s *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	name, ok := s.channels[channelID]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return &discordgo.Channel{ID: channelID, Name: name}, nil
}

func (s *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.record(sent{channelID: channelID, content: content})
}

func (s *fakeSession) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.record(sent{channelID: channelID, content: content, replyTo: ref.MessageID})
}

func (s *fakeSession) record(m sent) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, m)
	return &discordgo.Message{ChannelID: m.channelID, Content: m.content}, nil
}

func (s *fakeSession) Sent() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type MockDispenser struct {
	mock.Mock
}

func (m *MockDispenser) Dispense(ctx context.Context, req faucet.Request) (*async.Future[faucet.Receipt], error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*async.Future[faucet.Receipt]), args.Error(1)
}

func (m *MockDispenser) Balances(ctx context.Context) ([]ledger.Balance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Balance), args.Error(1)
}

func newBot(t *testing.T, d channel.Dispenser) (*discord.Bot, *fakeSession) {
	t.Helper()

	messages, err := faucet.NewMessages(map[string]string{
		faucet.MessageUsage: "usage",
	})
	require.NoError(t, err)

	handler, err := channel.NewHandler(discord.Kind, d, messages)
	require.NoError(t, err)

	session := &fakeSession{channels: map[string]string{"c1": "faucet", "c2": "general"}}
	bot, err := discord.New(discord.Config{ActiveChannel: "faucet"}, session, handler, messages)
	require.NoError(t, err)
	return bot, session
}

func message(channelID, authorID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: channelID,
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
	}}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	messages, err := faucet.NewMessages(nil)
	require.NoError(t, err)
	handler, err := channel.NewHandler(discord.Kind, &MockDispenser{}, messages)
	require.NoError(t, err)

	_, err = discord.New(discord.Config{}, nil, handler, messages)
	assert.ErrorIs(t, err, discord.ErrSessionNil)
	_, err = discord.New(discord.Config{}, &fakeSession{}, nil, messages)
	assert.ErrorIs(t, err, discord.ErrHandlerNil)
	_, err = discord.New(discord.Config{}, &fakeSession{}, handler, nil)
	assert.ErrorIs(t, err, discord.ErrMessagesNil)

	_, err = discord.NewSession("")
	assert.ErrorIs(t, err, discord.ErrMissingToken)
	assert.False(t, discord.Config{}.Enabled())
}

func TestBot_HandleMessage(t *testing.T) {
	t.Parallel()

	t.Run("replies in the active channel", func(t *testing.T) {
		t.Parallel()
		bot, session := newBot(t, &MockDispenser{})

		bot.HandleMessage(context.Background(), message("c1", "u1", "!faucet"))
		assert.Equal(t, []sent{{channelID: "c1", content: "usage", replyTo: "m1"}}, session.Sent())
	})

	t.Run("ignores other channels bots and chatter", func(t *testing.T) {
		t.Parallel()
		bot, session := newBot(t, &MockDispenser{})

		bot.HandleMessage(context.Background(), message("c2", "u1", "!faucet"))
		bot.HandleMessage(context.Background(), message("c404", "u1", "!faucet"))
		bot.HandleMessage(context.Background(), message("c1", "u1", "gm"))
		fromBot := message("c1", "b1", "!faucet")
		fromBot.Author.Bot = true
		bot.HandleMessage(context.Background(), fromBot)
		bot.HandleMessage(context.Background(), nil)

		assert.Empty(t, session.Sent())
	})

	t.Run("drip carries the route", func(t *testing.T) {
		t.Parallel()

		future, _ := async.NewPromise[faucet.Receipt]()
		d := &MockDispenser{}
		d.On("Dispense", mock.Anything, faucet.Request{
			Identity:    "u1",
			Destination: "addr1",
			Strategy:    "normal",
			Channel:     faucet.Channel{"kind": "discord", "account": "u1", "channelId": "c1"},
		}).Return(future, nil).Once()
		bot, session := newBot(t, d)

		bot.HandleMessage(context.Background(), message("c1", "u1", "!drip addr1"))
		assert.Empty(t, session.Sent())
		d.AssertExpectations(t)
	})

	t.Run("rejected drip is answered", func(t *testing.T) {
		t.Parallel()

		d := &MockDispenser{}
		d.On("Dispense", mock.Anything, mock.Anything).
			Return(nil, &faucet.Error{Code: faucet.CodeLimitExceeded, Identity: "u1"}).Once()
		bot, session := newBot(t, d)

		bot.HandleMessage(context.Background(), message("c1", "u1", "!drip addr1"))
		require.Len(t, session.Sent(), 1)
		assert.Equal(t, "u1 has reached the request limit, please try again later.", session.Sent()[0].content)
	})
}

func TestBot_Notify(t *testing.T) {
	t.Parallel()

	bot, session := newBot(t, &MockDispenser{})
	ctx := context.Background()

	err := bot.Notify(ctx, faucet.Channel{"kind": "discord", "channelId": "c1", "account": "u1"}, "10 ACA", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []sent{{
		channelID: "c1",
		content:   "Sent 10 ACA to <@u1>. Transaction: 0xabc",
	}}, session.Sent())

	assert.ErrorIs(t, bot.Notify(ctx, faucet.Channel{"kind": "discord"}, "10 ACA", "0xabc"), discord.ErrMissingRoute)

	session.sendErr = errors.New("rate limited")
	assert.ErrorIs(t, bot.Notify(ctx, faucet.Channel{"channelId": "c1"}, "10 ACA", "0xabc"), discord.ErrSendFailed)
}

func TestBot_NotifiesThroughRegistry(t *testing.T) {
	t.Parallel()

	bot, session := newBot(t, &MockDispenser{})
	n := faucet.NewNotifications(nil)
	n.Register(discord.Kind, bot)

	assert.True(t, n.Notify(context.Background(), faucet.Channel{"kind": "discord", "channelId": "c1", "account": "u1"}, "5 AUSD", "0x1"))
	require.Len(t, session.Sent(), 1)
	assert.Equal(t, "c1", session.Sent()[0].channelID)
}

func TestBot_Run(t *testing.T) {
	t.Parallel()

	bot, session := newBot(t, &MockDispenser{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx)() }()

	require.Eventually(t, func() bool {
		session.mu.Lock()
		defer session.mu.Unlock()
		return session.opened && session.handlers == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, bot.Run(ctx)(), discord.ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)

	session.mu.Lock()
	defer session.mu.Unlock()
	assert.True(t, session.closed)
	assert.Zero(t, session.handlers)
}
