package lottery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"saint-devil-lottery/internal/model"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		position   int
		saintFound bool
		devilFound bool
		wantWinner bool
		wantType   model.WinnerType
		wantPct    int
	}{
		{"saint position", 3, false, false, true, model.WinnerSaint, 15},
		{"devil position", 7, false, false, true, model.WinnerDevil, 10},
		{"first player", 1, false, false, false, "", 0},
		{"between winners", 5, false, false, false, "", 0},
		{"after winners", 8, false, false, false, "", 0},
		{"saint already claimed", 3, true, false, false, "", 0},
		{"devil already claimed", 7, false, true, false, "", 0},
		{"devil still open after saint claimed", 7, true, false, true, model.WinnerDevil, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := &model.DailyStats{
				Date:                "2026-03-01",
				TotalPlayers:        tt.position - 1,
				SaintWinnerPosition: 3,
				DevilWinnerPosition: 7,
				SaintWinnerFound:    tt.saintFound,
				DevilWinnerFound:    tt.devilFound,
			}

			outcome := Evaluate(tt.position, before)

			assert.Equal(t, tt.wantWinner, outcome.IsWinner)
			assert.Equal(t, tt.wantType, outcome.Type)
			assert.Equal(t, tt.wantPct, outcome.DiscountPercent)
			assert.Equal(t, tt.position, outcome.Position)
			assert.Equal(t, "2026-03-01", outcome.Date)
			assert.NotEmpty(t, outcome.Message)
		})
	}
}

func TestEvaluateDoesNotMutateStats(t *testing.T) {
	before := &model.DailyStats{Date: "2026-03-01", SaintWinnerPosition: 2, DevilWinnerPosition: 4}
	snapshot := *before

	Evaluate(2, before)

	assert.Equal(t, snapshot, *before)
}

func TestEvaluateMessages(t *testing.T) {
	before := &model.DailyStats{SaintWinnerPosition: 1, DevilWinnerPosition: 2}

	assert.Equal(t, MessageSaint, Evaluate(1, before).Message)
	assert.Equal(t, MessageDevil, Evaluate(2, before).Message)
	assert.Equal(t, MessageNoPrize, Evaluate(3, before).Message)
}
