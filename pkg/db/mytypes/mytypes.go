package mytypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// TickLog stores the tick log of a race in a jsonb column
type TickLog []model.TickLogEntry

func (h *TickLog) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	case nil:
		*h = nil
		return nil
	}
	return fmt.Errorf("tick log: unsupported value type %T", value)
}

func (h TickLog) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}
