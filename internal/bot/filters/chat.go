// Package filters решает, на какие сообщения бот отвечает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает личные сообщения и сообщения из чата сообщества.
type ChatFilter struct {
	groupChatID int64 // 0 — в группах бот молчит
}

func NewChatFilter(groupChatID int64) *ChatFilter {
	return &ChatFilter{groupChatID: groupChatID}
}

func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("nil message.From (service/channel message?)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	if message.From.IsBot {
		logger.Debug("deny: bot sender")
		return false
	}
	if message.Chat.IsPrivate() {
		return true
	}
	if f.groupChatID != 0 && message.Chat.ID == f.groupChatID {
		return true
	}

	logger.Debug("deny: foreign group")
	return false
}
