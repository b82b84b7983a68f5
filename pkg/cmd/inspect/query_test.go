package inspect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

func sampleDoc(t *testing.T) []byte {
	t.Helper()
	log := make([]model.TickLogEntry, 0, 3)
	for i := 1; i <= 3; i++ {
		e := model.TickLogEntry{Tick: i, Clock: float64(i)}
		e.Cars[0] = model.TickCar{Distance: float64(i * 80), Speed: 80, ErsMode: model.ErsBalanced}
		e.Cars[1] = model.TickCar{Distance: float64(i * 75), Speed: 75, ErsMode: model.ErsOvertake}
		log = append(log, e)
	}
	data, err := storedDocument("r1", "alice", 3, log)
	require.NoError(t, err)
	return data
}

func TestQuery(t *testing.T) {
	doc := sampleDoc(t)
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"winner", "$.winnerId", `"alice"`},
		{"last tick", "$.tickLog[-1].tick", `3`},
		{"filter", "$.tickLog[?(@.tick > 1)].cars[1].distance", `[150,225]`},
		{"ers", "$.tickLog[0].cars[*].ersMode", `["balanced","overtake"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := query(doc, tt.expr)
			require.NoError(t, err)
			var got, want any
			require.NoError(t, json.Unmarshal([]byte(format(res, 0)), &got))
			require.NoError(t, json.Unmarshal([]byte(tt.want), &want))
			assert.Equal(t, want, got)
		})
	}
}

func TestQuery_Errors(t *testing.T) {
	_, err := query([]byte("{broken"), "$.x")
	assert.Error(t, err)
	_, err = query(sampleDoc(t), "$[?(")
	assert.Error(t, err)
	res, err := query(sampleDoc(t), "$.nothing")
	assert.NoError(t, err)
	assert.Empty(t, res)
}
