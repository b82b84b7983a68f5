package inspect

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// query evaluates the JSONPath expr on a JSON document.
func query(jsonData []byte, expr string) ([]any, error) {
	obj, err := oj.Parse(jsonData)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	path, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", expr, err)
	}
	return path.Get(obj), nil
}

// storedDocument builds the document queried for a race loaded from the database. It has
// the same shape as a race state written by simulate --out.
func storedDocument(raceID, winnerID string, ticks int, tickLog []model.TickLogEntry) (
	[]byte, error,
) {
	return json.Marshal(struct {
		RaceID   string               `json:"raceId"`
		Tick     int                  `json:"tick"`
		Finished bool                 `json:"finished"`
		WinnerID string               `json:"winnerId"`
		TickLog  []model.TickLogEntry `json:"tickLog"`
	}{raceID, ticks, true, winnerID, tickLog})
}

func format(results []any, indent int) string {
	if len(results) == 1 {
		return oj.JSON(results[0], indent)
	}
	return oj.JSON(results, indent)
}
