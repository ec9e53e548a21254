package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iurnickita/paymi/internal/telegram/config"
)

// Sender is the outbound chat transport. Inbound updates arrive over the
// webhook and are decoded by the handler; this side only talks back.
type Sender interface {
	SendMessage(chatID int64, text string) error
	// SendPrompt sends text with a forced reply, so the next message in
	// the chat threads back to the prompt.
	SendPrompt(chatID int64, text string) error
	AnswerCallback(callbackID string) error
}

type sender struct {
	api *tgbotapi.BotAPI
}

func NewSender(cfg config.Config) (Sender, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	return &sender{api: api}, nil
}

func (s *sender) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := s.api.Send(msg)
	return err
}

func (s *sender) SendPrompt(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}
	_, err := s.api.Send(msg)
	return err
}

func (s *sender) AnswerCallback(callbackID string) error {
	_, err := s.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}
