// Package telegram connects the community group to the invite and reel flows:
// it issues per-student invite links, turns joins into invites and delivers
// review notifications.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/visionvansh/clipifypost-sub001/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// botAPI is the subset of *tgbotapi.BotAPI the connector uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Sink receives invite events from the group.
type Sink interface {
	HandleMemberJoined(ctx context.Context, code string, member services.ChatIdentity) (bool, error)
	InviteLinkForChat(ctx context.Context, chat services.ChatIdentity) (string, error)
}

// Directory resolves students to chat accounts.
type Directory interface {
	ChatIDFor(ctx context.Context, studentID string) (int64, bool, error)
}

type Connector struct {
	bot     botAPI
	groupID int64
	sink    Sink
	dir     Directory
	log     *zap.Logger
}

// New logs into the bot API.
func New(token string, groupID int64, sink Sink, dir Directory, log *zap.Logger) (*Connector, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	log.Info("🤖 Telegram bot authorized", zap.String("bot", bot.Self.UserName))
	return newConnector(bot, groupID, sink, dir, log), nil
}

func newConnector(bot botAPI, groupID int64, sink Sink, dir Directory, log *zap.Logger) *Connector {
	return &Connector{bot: bot, groupID: groupID, sink: sink, dir: dir, log: log}
}

// Run consumes updates until ctx is done.
func (c *Connector) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "chat_member"}
	updates := c.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.log.Info("⏹️ Telegram connector stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := c.HandleUpdate(ctx, update); err != nil {
				c.log.Error("❌ Telegram update failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
			}
		}
	}
}

// HandleUpdate dispatches one update.
func (c *Connector) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.ChatMember != nil:
		return c.handleChatMember(ctx, update.ChatMember)
	case update.Message != nil:
		return c.handleMessage(ctx, update.Message)
	}
	return nil
}

func (c *Connector) handleChatMember(ctx context.Context, m *tgbotapi.ChatMemberUpdated) error {
	if m.Chat.ID != c.groupID || m.InviteLink == nil || m.NewChatMember.User == nil {
		return nil
	}
	if !joined(m.OldChatMember.Status, m.NewChatMember.Status) {
		return nil
	}
	user := m.NewChatMember.User
	if user.IsBot {
		return nil
	}
	_, err := c.sink.HandleMemberJoined(ctx, m.InviteLink.InviteLink, identity(user))
	return err
}

func joined(oldStatus, newStatus string) bool {
	if newStatus != "member" {
		return false
	}
	return oldStatus == "" || oldStatus == "left" || oldStatus == "kicked"
}

func (c *Connector) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() || !msg.IsCommand() {
		return nil
	}
	switch msg.Command() {
	case "start", "invite":
		link, err := c.sink.InviteLinkForChat(ctx, identity(msg.From))
		if err != nil {
			return err
		}
		_, err = c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID,
			"🔗 Your personal invite link:\n"+link+"\nEveryone who joins through it counts toward your referral bonus."))
		return err
	}
	return nil
}

func identity(u *tgbotapi.User) services.ChatIdentity {
	return services.ChatIdentity{ID: u.ID, Username: u.UserName}
}

// IssueInviteLink creates a named group invite link for studentID.
func (c *Connector) IssueInviteLink(ctx context.Context, studentID string) (string, error) {
	name := studentID
	if len(name) > 32 {
		name = name[:32]
	}
	resp, err := c.bot.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: c.groupID},
		Name:       name,
	})
	if err != nil {
		return "", err
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if strings.TrimSpace(link.InviteLink) == "" {
		return "", errors.New("telegram returned an empty invite link")
	}
	return link.InviteLink, nil
}

// NotifyStudent sends text to the student's private chat. Students without a
// linked chat account are skipped.
func (c *Connector) NotifyStudent(ctx context.Context, studentID, text string) error {
	chatID, ok, err := c.dir.ChatIDFor(ctx, studentID)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Debug("Student has no chat account, skipping notification", zap.String("student_id", studentID))
		return nil
	}
	_, err = c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
