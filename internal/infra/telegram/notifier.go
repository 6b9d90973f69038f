package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/config"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*BotNotifier)(nil)

// BotNotifier sends user-facing payment messages and operator alerts through
// the storefront bot. It is a pure sender; update handling lives in the bot
// process, not in this core.
type BotNotifier struct {
	bot            *tgbotapi.BotAPI
	operatorChatID int64
	log            *zerolog.Logger
}

func NewBotNotifier(cfg *config.BotConfig, logger *zerolog.Logger) (*BotNotifier, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "notifier").Logger()
	return &BotNotifier{bot: bot, operatorChatID: cfg.OperatorChatID, log: &l}, nil
}

func (n *BotNotifier) NotifyUser(ctx context.Context, externalID int64, text string) error {
	msg := tgbotapi.NewMessage(externalID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Int64("tg_id", externalID).Msg("user notification failed")
		return err
	}
	return nil
}

func (n *BotNotifier) AlertOperator(ctx context.Context, text string) error {
	if n.operatorChatID == 0 {
		n.log.Debug().Msg("operator chat not configured, alert dropped")
		return nil
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.operatorChatID, text)); err != nil {
		n.log.Warn().Err(err).Msg("operator alert failed")
		return err
	}
	return nil
}
