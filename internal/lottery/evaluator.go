package lottery

import "saint-devil-lottery/internal/model"

// Outcome messages shown to the player.
const (
	MessageSaint   = "¡Eres el/la Sant@! Ganaste 15% de descuento en tu consumo personal."
	MessageDevil   = "¡Eres el/la Diabl@! Ganaste 10% de descuento en consumo grupal."
	MessageNoPrize = "Gracias por jugar. Vuelve mañana para intentarlo de nuevo."
)

// Evaluate maps an allocated position to a play outcome. before must be the
// day's stats as of immediately before the allocation, so a slot claimed by
// an earlier play is never awarded twice. Evaluate has no side effects.
func Evaluate(position int, before *model.DailyStats) *model.PlayOutcome {
	outcome := &model.PlayOutcome{
		Message:  MessageNoPrize,
		Position: position,
		Date:     before.Date,
	}

	switch {
	case !before.SaintWinnerFound && position == before.SaintWinnerPosition:
		outcome.IsWinner = true
		outcome.Type = model.WinnerSaint
		outcome.DiscountPercent = model.SaintDiscountPercent
		outcome.Message = MessageSaint
	case !before.DevilWinnerFound && position == before.DevilWinnerPosition:
		outcome.IsWinner = true
		outcome.Type = model.WinnerDevil
		outcome.DiscountPercent = model.DevilDiscountPercent
		outcome.Message = MessageDevil
	}

	return outcome
}
