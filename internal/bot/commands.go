package bot

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/models"
	"serotonyl.ru/bear-tycoon/internal/notify"
)

const helpText = `🐻 Bear Tycoon: команды

💰 /balance  баланс
📜 /history  последние операции
🤝 /ref  реферальный заработок
💱 /exchange монеты  обмен на BRC
📤 /withdraw BRC  вывод

🔥 /daily  награда дня, /wheel  колесо, /streak  серия
🐻 /pets  медведи, /shop  магазин, /buy уровень
🍯 /collect  собрать доход, /levelup номер
💎 /tokenize номер  коллекционный токен
🎁 /cases  кейсы, /case уровень, /casestats
🛠 /upgrades, /upgrade ветка
⭐ /sub  подписка
🧬 /fuse уровень  слияние 10 медведей
🛒 /market, /sell номер цена, /purchase лот, /unlist лот
⚔️ /battle код ставка

Команды работают и с ! или . вместо /, например !баланс`

// aliases — русские названия команд.
var aliases = map[string]string{
	"помощь":    "help",
	"баланс":    "balance",
	"история":   "history",
	"рефералы":  "ref",
	"обмен":     "exchange",
	"вывод":     "withdraw",
	"награда":   "daily",
	"колесо":    "wheel",
	"серия":     "streak",
	"медведи":   "pets",
	"магазин":   "shop",
	"купить":    "buy",
	"собрать":   "collect",
	"прокачать": "levelup",
	"токен":     "tokenize",
	"кейсы":     "cases",
	"кейс":      "case",
	"статкейсы": "casestats",
	"улучшения": "upgrades",
	"улучшить":  "upgrade",
	"подписка":  "sub",
	"слияние":   "fuse",
	"маркет":    "market",
	"продать":   "sell",
	"купитьлот": "purchase",
	"снять":     "unlist",
	"бой":       "battle",
}

// routeCommand маршрутизирует команду к нужному обработчику.
// false — команда неизвестна.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, acc *models.Account, created bool, cmd string, args []string) bool {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	h := b.handlers
	switch cmd {
	case "start":
		h.Economy.HandleStart(ctx, chatID, acc, created)
	case "help":
		notify.Text(b.sender, chatID, helpText)

	case "balance":
		h.Economy.HandleBalance(ctx, chatID, acc)
	case "history":
		h.Economy.HandleHistory(ctx, chatID, acc)
	case "ref":
		h.Economy.HandleReferrals(ctx, chatID, acc)
	case "exchange":
		h.Economy.HandleExchange(ctx, chatID, acc, args)
	case "withdraw":
		h.Economy.HandleWithdraw(ctx, chatID, acc, args)

	case "daily":
		h.Streak.HandleDaily(ctx, chatID, acc)
	case "wheel":
		h.Streak.HandleWheel(ctx, chatID, acc)
	case "streak":
		h.Streak.HandleStreak(ctx, chatID, acc)

	case "pets":
		h.Pets.HandleList(ctx, chatID, acc)
	case "shop":
		h.Pets.HandleShop(ctx, chatID)
	case "buy":
		h.Pets.HandleBuy(ctx, chatID, acc, args)
	case "collect":
		h.Pets.HandleCollect(ctx, chatID, acc)
	case "levelup":
		h.Pets.HandleLevelUp(ctx, chatID, acc, args)
	case "tokenize":
		h.Pets.HandleTokenize(ctx, chatID, acc, args)

	case "cases":
		h.Cases.HandleList(ctx, chatID)
	case "case":
		h.Cases.HandleOpen(ctx, chatID, acc, args)
	case "casestats":
		h.Cases.HandleStats(ctx, chatID, acc)

	case "upgrades":
		h.Upgrades.HandleList(ctx, chatID, acc)
	case "upgrade":
		h.Upgrades.HandleBuy(ctx, chatID, acc, args)

	case "sub":
		h.Subscription.HandleSub(ctx, chatID, acc, args)

	case "fuse":
		h.Fusion.HandleFuse(ctx, chatID, acc, args)

	case "market":
		h.Market.HandleList(ctx, chatID)
	case "sell":
		h.Market.HandleSell(ctx, chatID, acc, args)
	case "purchase":
		h.Market.HandleBuy(ctx, chatID, acc, args)
	case "unlist":
		h.Market.HandleCancel(ctx, chatID, acc, args)

	case "battle":
		h.Battle.HandleBattle(ctx, chatID, acc, args)

	default:
		notify.Text(b.sender, chatID, "🐻 Такой команды нет. Список команд: /help")
		return false
	}
	return true
}

// CommandParser парсит команды с префиксами /, ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Русские названия переводятся в английские, суффикс @botname отрезается.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	if alias, ok := aliases[command]; ok {
		command = alias
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
