// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/model"
	"saint-devil-lottery/internal/service"
)

// commandTimeout bounds the storage work of a single command.
const commandTimeout = 10 * time.Second

// ResetConfirmWord must follow /lottery_reset for the reset to run.
const ResetConfirmWord = "confirm"

// HelpText lists the admin commands.
const HelpText = "🎴 Lotería Sant@ / Diabl@\n\n" +
	"/lottery_stats - estadísticas de hoy\n" +
	"/lottery_set <santo> <diablo> - fijar posiciones ganadoras\n" +
	"/lottery_random - sortear posiciones nuevas\n" +
	"/lottery_reset confirm - borrar todos los datos"

// AdminHandler handles the lottery admin commands.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// HandleHelp handles /start and /help.
func (h *AdminHandler) HandleHelp(c tele.Context) error {
	return c.Reply(HelpText)
}

// HandleStats handles the /lottery_stats command.
func (h *AdminHandler) HandleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	stats, err := h.admin.Stats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load lottery stats")
		return c.Reply("❌ No se pudieron obtener las estadísticas, intenta de nuevo")
	}

	return c.Reply(FormatStats(stats))
}

// HandleSet handles the /lottery_set command.
// Format: /lottery_set <saint> <devil>
func (h *AdminHandler) HandleSet(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	saintPos, devilPos, err := parsePositions(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	stats, err := h.admin.SetPositions(ctx, saintPos, devilPos)
	if errors.Is(err, lottery.ErrInvalidConfiguration) {
		return c.Reply("❌ Posiciones inválidas: deben ser distintas y mayores que 0")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to set winner positions")
		return c.Reply("❌ Operación fallida, intenta de nuevo")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int("saint", saintPos).
		Int("devil", devilPos).
		Str("operation", service.OpSetPositions).
		Msg("Admin operation executed")

	return c.Reply("✅ Posiciones actualizadas\n\n" + FormatStats(stats))
}

// HandleRandom handles the /lottery_random command.
func (h *AdminHandler) HandleRandom(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	stats, err := h.admin.GenerateRandomPair(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to draw winner positions")
		return c.Reply("❌ Operación fallida, intenta de nuevo")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("operation", service.OpRandomPair).
		Msg("Admin operation executed")

	return c.Reply("🎲 Posiciones sorteadas\n\n" + FormatStats(stats))
}

// HandleReset handles the /lottery_reset command.
// Format: /lottery_reset confirm
func (h *AdminHandler) HandleReset(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 || !strings.EqualFold(args[0], ResetConfirmWord) {
		return c.Reply("⚠️ Esto borra todas las jugadas y estadísticas.\nUso: /lottery_reset confirm")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.admin.ResetAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to reset lottery")
		return c.Reply("❌ Operación fallida, intenta de nuevo")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("operation", service.OpResetAll).
		Msg("Admin operation executed")

	return c.Reply("✅ Lotería reiniciada")
}

// FormatStats renders the admin view of a day, winner positions included.
func FormatStats(s *model.DailyStats) string {
	return fmt.Sprintf(
		"📊 Lotería del %s\n"+
			"━━━━━━━━━━━━━━━\n"+
			"👥 Jugadores: %d\n"+
			"😇 Sant@: posición %d (%s)\n"+
			"😈 Diabl@: posición %d (%s)",
		s.Date, s.TotalPlayers,
		s.SaintWinnerPosition, foundLabel(s.SaintWinnerFound),
		s.DevilWinnerPosition, foundLabel(s.DevilWinnerFound),
	)
}

func foundLabel(found bool) string {
	if found {
		return "entregado"
	}
	return "pendiente"
}

// parsePositions parses "<saint> <devil>".
func parsePositions(args []string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("❌ Uso: /lottery_set <santo> <diablo>\nEjemplo: /lottery_set 14 27")
	}

	saintPos, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("❌ La posición del santo debe ser un número entero")
	}

	devilPos, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("❌ La posición del diablo debe ser un número entero")
	}

	return saintPos, devilPos, nil
}
