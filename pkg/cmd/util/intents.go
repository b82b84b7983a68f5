package util

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// IntentFunc applies a selection of the local player.
type IntentFunc func(i model.StrategyIntent) error

// ReadIntents reads commands from r until EOF or ctx is done. Commands are
// "ers <mode>" and "line <line>", each changing one part of the current selection.
func ReadIntents(ctx context.Context, r io.Reader, self string, apply IntentFunc) error {
	current := model.DefaultIntent(self)
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			next, err := ParseCommand(current, line)
			if err != nil {
				log.Warn("invalid command", log.String("input", line), log.ErrorField(err))
				continue
			}
			if next == current {
				continue
			}
			if err := apply(next); err != nil {
				log.Warn("selection not applied", log.ErrorField(err))
				continue
			}
			current = next
			log.Info("selection changed",
				log.String("ers", string(current.ErsMode)),
				log.String("line", string(current.RacingLine)))
		}
	}
}

// ParseCommand returns current changed by one command line. Empty lines keep it unchanged.
func ParseCommand(current model.StrategyIntent, line string) (model.StrategyIntent, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return current, nil
	}
	if len(fields) != 2 {
		return current, fmt.Errorf("expected '<ers|line> <value>', got %q", line)
	}
	switch fields[0] {
	case "ers":
		m, err := model.ParseErsMode(fields[1])
		if err != nil {
			return current, err
		}
		current.ErsMode = m
	case "line":
		l, err := model.ParseRacingLine(fields[1])
		if err != nil {
			return current, err
		}
		current.RacingLine = l
	default:
		return current, fmt.Errorf("unknown command %q", fields[0])
	}
	return current, nil
}
