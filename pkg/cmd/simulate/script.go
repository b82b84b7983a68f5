package simulate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mpapenbr/racesim-engine/pkg/cmd/util"
	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// step is a selection which becomes active at the given tick.
type step struct {
	tick   int
	intent model.StrategyIntent
}

// parseScript parses "tick:command;tick:command" into selections ordered by tick.
// Commands are the ones accepted on stdin by host and join.
func parseScript(player, script string) ([]step, error) {
	var ret []step
	current := model.DefaultIntent(player)
	entries := strings.Split(script, ";")
	type raw struct {
		tick int
		cmd  string
	}
	parsed := make([]raw, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		tickStr, cmd, ok := strings.Cut(e, ":")
		if !ok {
			return nil, fmt.Errorf("script entry %q: expected <tick>:<command>", e)
		}
		tick, err := strconv.Atoi(strings.TrimSpace(tickStr))
		if err != nil || tick < 0 {
			return nil, fmt.Errorf("script entry %q: invalid tick", e)
		}
		parsed = append(parsed, raw{tick, cmd})
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].tick < parsed[j].tick })
	for _, r := range parsed {
		next, err := util.ParseCommand(current, r.cmd)
		if err != nil {
			return nil, fmt.Errorf("script entry at tick %d: %w", r.tick, err)
		}
		current = next
		ret = append(ret, step{tick: r.tick, intent: current})
	}
	return ret, nil
}

// due returns the selections of steps scheduled for tick.
func due(steps []step, tick int) []model.StrategyIntent {
	var ret []model.StrategyIntent
	for _, s := range steps {
		if s.tick == tick {
			ret = append(ret, s.intent)
		}
	}
	return ret
}
