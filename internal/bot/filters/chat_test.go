package filters

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func msg(chatID int64, chatType string, from *tgbotapi.User) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID, Type: chatType}, From: from}
}

func TestCheckAccess(t *testing.T) {
	user := &tgbotapi.User{ID: 7}
	bot := &tgbotapi.User{ID: 8, IsBot: true}
	f := NewChatFilter(-100)

	cases := []struct {
		name string
		m    *tgbotapi.Message
		want bool
	}{
		{"private", msg(7, "private", user), true},
		{"community group", msg(-100, "supergroup", user), true},
		{"foreign group", msg(-200, "group", user), false},
		{"bot sender", msg(7, "private", bot), false},
		{"channel post", msg(-300, "channel", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := f.CheckAccess(tc.m); got != tc.want {
			t.Fatalf("%s: CheckAccess = %v, want %v", tc.name, got, tc.want)
		}
	}
	if NewChatFilter(0).CheckAccess(msg(-100, "group", user)) {
		t.Fatal("groups allowed without configured chat")
	}
}
