package bot

import (
	"context"

	"github.com/Houeta/rival-radar/internal/models"
	"gopkg.in/telebot.v4"
)

type API interface {
	// Handle lets you set the handler for some command name or one of the supported endpoints. It also applies middleware if such passed to the function.
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
	// Start brings bot into motion by consuming incoming updates (see Bot.Updates channel).
	Start()
	// Stop gracefully shuts the poller down.
	Stop()

	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Repository is the storage surface the dispatcher needs: subscriptions,
// recorded changes and the page registry for display names.
type Repository interface {
	SubscribeChat(ctx context.Context, chatID int64) error
	UnsubscribeChat(ctx context.Context, chatID int64) error
	GetSubscribedChats(ctx context.Context) ([]int64, error)
	UndeliveredChanges(ctx context.Context) ([]models.ChangeEvent, error)
	MarkDelivered(ctx context.Context, ids []int64) error
	RecentChanges(ctx context.Context, days, limit int) ([]models.ChangeEvent, error)
	ListPages(ctx context.Context) ([]models.TrackedPage, error)
}
