package xrayclient

import (
	"encoding/json"

	"xui-fleet/internal/models"
)

// DeriveClients flattens the client stats of every inbound into records. The
// uuid of each record comes from the inbound's settings, joined on email; a
// settings blob that does not parse leaves the uuids empty.
func DeriveClients(inbounds []models.InboundRaw) []models.ClientRecord {
	records := make([]models.ClientRecord, 0)

	for _, inbound := range inbounds {
		uuids := make(map[string]string)
		var settings models.InboundSettings
		if err := json.Unmarshal([]byte(inbound.Settings), &settings); err == nil {
			for _, client := range settings.Clients {
				uuids[client.Email] = client.ID
			}
		}

		for _, stat := range inbound.ClientStats {
			sample := stat.Sample()
			records = append(records, models.ClientRecord{
				UUID:      uuids[stat.Email],
				Email:     stat.Email,
				InboundID: inbound.ID,
				Uplink:    sample.Uplink,
				Downlink:  sample.Downlink,
			})
		}
	}

	return records
}
