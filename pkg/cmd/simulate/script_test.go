package simulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

func TestParseScript(t *testing.T) {
	steps, err := parseScript("bob", " 12:line toward; 3:ers overtake ;; 20:ers recharge")
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, 3, steps[0].tick)
	assert.Equal(t, model.StrategyIntent{
		PlayerID: "bob", ErsMode: model.ErsOvertake, RacingLine: model.LineHold,
	}, steps[0].intent)
	// later steps keep the earlier changes
	assert.Equal(t, model.StrategyIntent{
		PlayerID: "bob", ErsMode: model.ErsOvertake, RacingLine: model.LineToward,
	}, steps[1].intent)
	assert.Equal(t, model.ErsRecharge, steps[2].intent.ErsMode)
	assert.Equal(t, model.LineToward, steps[2].intent.RacingLine)

	assert.Len(t, due(steps, 12), 1)
	assert.Empty(t, due(steps, 13))
}

func TestParseScript_Invalid(t *testing.T) {
	for _, script := range []string{"ers overtake", "x:ers overtake", "-1:ers saving", "4:ers boost"} {
		_, err := parseScript("bob", script)
		assert.Error(t, err, script)
	}
	steps, err := parseScript("bob", "")
	assert.NoError(t, err)
	assert.Empty(t, steps)
}
