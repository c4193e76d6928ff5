package xrayclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xui-fleet/internal/models"
)

func TestDeriveClientsJoinsUUIDByEmail(t *testing.T) {
	payload := `[{
		"id": 1,
		"settings": "{\"clients\":[{\"id\":\"uuid-1\",\"email\":\"5_bob\"}]}",
		"clientStats": [{"email": "5_bob", "up": 100, "down": 200}]
	}]`

	var inbounds []models.InboundRaw
	require.NoError(t, json.Unmarshal([]byte(payload), &inbounds))

	records := DeriveClients(inbounds)
	require.Len(t, records, 1)
	assert.Equal(t, models.ClientRecord{
		UUID:      "uuid-1",
		Email:     "5_bob",
		InboundID: 1,
		Uplink:    100,
		Downlink:  200,
	}, records[0])
}

func TestDeriveClientsTrafficAliases(t *testing.T) {
	tests := []struct {
		name     string
		stat     string
		uplink   int64
		downlink int64
	}{
		{name: "short names", stat: `{"email":"a","up":1,"down":2}`, uplink: 1, downlink: 2},
		{name: "long names", stat: `{"email":"a","uplink":3,"downlink":4}`, uplink: 3, downlink: 4},
		{name: "long names win", stat: `{"email":"a","uplink":5,"up":99,"downlink":6,"down":99}`, uplink: 5, downlink: 6},
		{name: "mixed", stat: `{"email":"a","up":7,"downlink":8}`, uplink: 7, downlink: 8},
		{name: "missing", stat: `{"email":"a"}`, uplink: 0, downlink: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `[{"id":2,"settings":"{}","clientStats":[` + tt.stat + `]}]`
			var inbounds []models.InboundRaw
			require.NoError(t, json.Unmarshal([]byte(payload), &inbounds))

			records := DeriveClients(inbounds)
			require.Len(t, records, 1)
			assert.Equal(t, tt.uplink, records[0].Uplink)
			assert.Equal(t, tt.downlink, records[0].Downlink)
		})
	}
}

func TestDeriveClientsBrokenSettings(t *testing.T) {
	inbounds := []models.InboundRaw{
		{
			ID:          3,
			Settings:    "not json",
			ClientStats: []models.ClientStat{{Email: "7_eve"}},
		},
		{
			ID:       4,
			Settings: `{"clients":[{"id":"u-8","email":"8_max"}]}`,
			ClientStats: []models.ClientStat{
				{Email: "8_max"},
				{Email: "9_orphan"},
			},
		},
	}

	records := DeriveClients(inbounds)
	require.Len(t, records, 3)
	assert.Equal(t, "", records[0].UUID)
	assert.Equal(t, 3, records[0].InboundID)
	assert.Equal(t, "u-8", records[1].UUID)
	assert.Equal(t, "", records[2].UUID)
}

func TestDeriveClientsEmpty(t *testing.T) {
	assert.Empty(t, DeriveClients(nil))
	assert.NotNil(t, DeriveClients(nil))
}
