package bot

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v4"
)

const recentDays = 7

// startHandler process command /start.
func (b *Bot) startHandler(ctx telebot.Context) error {
	b.log.Info("User started the bot", "username", ctx.Sender().Username)

	text := "Hello! I watch competitor pages and report changes.\n" +
		"/subscribe - receive change alerts in this chat\n" +
		"/unsubscribe - stop receiving alerts\n" +
		"/recent - changes from the last 7 days"
	if err := ctx.Send(text); err != nil {
		return fmt.Errorf("failed to send greeting message: %w", err)
	}

	return nil
}

// subscribeHandler adds the chat to the alert list.
func (b *Bot) subscribeHandler(ctx telebot.Context) error {
	chatID := ctx.Chat().ID
	if err := b.repo.SubscribeChat(context.Background(), chatID); err != nil {
		b.log.Error("Failed to subscribe chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to subscribe chat: %w", err)
	}

	b.log.Info("Chat subscribed", "chat_id", chatID)

	if err := ctx.Send("Subscribed. You will receive change alerts here."); err != nil {
		return fmt.Errorf("failed to send subscribe confirmation: %w", err)
	}

	return nil
}

// unsubscribeHandler removes the chat from the alert list.
func (b *Bot) unsubscribeHandler(ctx telebot.Context) error {
	chatID := ctx.Chat().ID
	if err := b.repo.UnsubscribeChat(context.Background(), chatID); err != nil {
		b.log.Error("Failed to unsubscribe chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to unsubscribe chat: %w", err)
	}

	b.log.Info("Chat unsubscribed", "chat_id", chatID)

	if err := ctx.Send("Unsubscribed. No more alerts in this chat."); err != nil {
		return fmt.Errorf("failed to send unsubscribe confirmation: %w", err)
	}

	return nil
}

// recentHandler replies with changes from the last week.
func (b *Bot) recentHandler(ctx telebot.Context) error {
	bgCtx := context.Background()

	changes, err := b.repo.RecentChanges(bgCtx, recentDays, 50)
	if err != nil {
		b.log.Error("Failed to get recent changes", "error", err)
		return fmt.Errorf("failed to get recent changes: %w", err)
	}

	if len(changes) == 0 {
		if err = ctx.Send(fmt.Sprintf("No changes detected in the last %d days.", recentDays)); err != nil {
			return fmt.Errorf("failed to send recent changes reply: %w", err)
		}
		return nil
	}

	pages, err := b.repo.ListPages(bgCtx)
	if err != nil {
		b.log.Error("Failed to list pages", "error", err)
		return fmt.Errorf("failed to list pages: %w", err)
	}

	if err = ctx.Send(formatChanges(changes, pages)); err != nil {
		return fmt.Errorf("failed to send recent changes reply: %w", err)
	}

	return nil
}
