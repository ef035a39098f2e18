package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Houeta/rival-radar/internal/models"
	"gopkg.in/telebot.v4"
)

// Bot contains the bot API instance and other information.
type Bot struct {
	api  API
	log  *slog.Logger
	repo Repository
}

func NewBot(log *slog.Logger, repo Repository, token string, poller time.Duration) (*Bot, error) {
	tgBot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: poller},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info("Authorized on acount", "account", tgBot.Me.Username)

	botInstance := &Bot{api: tgBot, log: log, repo: repo}

	botInstance.registerRoutes()

	return botInstance, nil
}

// Start launches the bot to listen for updates.
func (b *Bot) Start() {
	b.log.Info("Telegram bot is starting...")
	b.api.Start()
}

// Stop gracefully stops the Telegram bot and logs the action.
func (b *Bot) Stop() {
	b.log.Info("Telegram bot is stopped...")
	b.api.Stop()
}

// registerRoutes configures all routes (commands).
func (b *Bot) registerRoutes() {
	b.api.Handle("/start", b.startHandler)
	b.api.Handle("/subscribe", b.subscribeHandler)
	b.api.Handle("/unsubscribe", b.unsubscribeHandler)
	b.api.Handle("/recent", b.recentHandler)
}

// NotifyChanges pushes all undelivered change events to every subscribed
// chat and flips their delivered flag once at least one send succeeded.
func (b *Bot) NotifyChanges(ctx context.Context) error {
	const opn = "bot.NotifyChanges"

	changes, err := b.repo.UndeliveredChanges(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to get undelivered changes: %w", opn, err)
	}
	if len(changes) == 0 {
		b.log.DebugContext(ctx, "No new changes to notify")
		return nil
	}

	chats, err := b.repo.GetSubscribedChats(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to get subscribed chats: %w", opn, err)
	}
	if len(chats) == 0 {
		b.log.InfoContext(ctx, "No subscribed chats, changes stay undelivered", "changes", len(changes))
		return nil
	}

	pages, err := b.repo.ListPages(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to list pages: %w", opn, err)
	}

	message := formatChanges(changes, pages)

	delivered := false
	for _, chatID := range chats {
		if _, err = b.api.Send(telebot.ChatID(chatID), message); err != nil {
			b.log.ErrorContext(ctx, "Failed to send notification", "chat_id", chatID, "error", err)
			continue
		}
		delivered = true
	}
	if !delivered {
		return fmt.Errorf("%s: no chat accepted the notification", opn)
	}

	ids := make([]int64, len(changes))
	for i, c := range changes {
		ids[i] = c.ID
	}
	if err = b.repo.MarkDelivered(ctx, ids); err != nil {
		return fmt.Errorf("%s: failed to mark changes delivered: %w", opn, err)
	}

	b.log.InfoContext(ctx, "Changes notified", "count", len(changes), "chats", len(chats))

	return nil
}

// formatChanges renders change events grouped by competitor.
func formatChanges(changes []models.ChangeEvent, pages []models.TrackedPage) string {
	pageByID := make(map[int64]models.TrackedPage, len(pages))
	for _, p := range pages {
		pageByID[p.ID] = p
	}

	byCompetitor := make(map[string][]string)
	for _, c := range changes {
		page, ok := pageByID[c.PageID]
		name := page.Competitor
		if !ok {
			name = "Unknown"
		}
		line := fmt.Sprintf("  • %s", c.Description)
		if page.URL != "" {
			line += fmt.Sprintf("\n    %s", page.URL)
		}
		byCompetitor[name] = append(byCompetitor[name], line)
	}

	names := make([]string, 0, len(byCompetitor))
	for name := range byCompetitor {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Competitor changes detected (%d updates)\n", len(changes))
	for _, name := range names {
		fmt.Fprintf(&sb, "\n%s\n", name)
		sb.WriteString(strings.Join(byCompetitor[name], "\n"))
		sb.WriteString("\n")
	}

	return sb.String()
}
