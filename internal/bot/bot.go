// Package bot provides the Telegram admin bot initialization and handler registration.
package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"saint-devil-lottery/internal/config"
	"saint-devil-lottery/internal/handler"
	"saint-devil-lottery/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot          *tele.Bot
	cfg          *config.Config
	adminHandler *handler.AdminHandler

	mu      sync.Mutex
	running bool
	stopped bool
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config       *config.Config
	AdminService *service.AdminService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	return newBot(deps, tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
}

func newBot(deps *Dependencies, pref tele.Settings) (*Bot, error) {
	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:          teleBot,
		cfg:          deps.Config,
		adminHandler: handler.NewAdminHandler(deps.AdminService),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers. Every lottery command is admin only.
func (b *Bot) registerHandlers() {
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/start", b.adminHandler.HandleHelp)
	adminGroup.Handle("/help", b.adminHandler.HandleHelp)
	adminGroup.Handle("/lottery_stats", b.adminHandler.HandleStats)
	adminGroup.Handle("/lottery_set", b.adminHandler.HandleSet)
	adminGroup.Handle("/lottery_random", b.adminHandler.HandleRandom)
	adminGroup.Handle("/lottery_reset", b.adminHandler.HandleReset)
}

// Start starts the bot polling. It blocks until Stop is called and returns
// immediately if Stop already ran.
func (b *Bot) Start() {
	b.mu.Lock()
	if b.running || b.stopped {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully. It is safe to call before Start and more than once.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	if !b.running {
		log.Debug().Msg("Bot stopped before it started polling")
		return
	}

	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
