package helpers

import (
	"fmt"
	"sort"
	"strings"

	"xui-fleet/internal/constants"
	"xui-fleet/internal/models"
)

// FormatGB formats a byte count as gigabytes with two decimals
func FormatGB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/constants.BytesInGB)
}

// FormatTrafficSummary formats the traffic of a single client
func FormatTrafficSummary(sample models.TrafficSample) string {
	var sb strings.Builder
	sb.WriteString("<b>Traffic:</b>\n")
	sb.WriteString(fmt.Sprintf("↑ Upload: %s GB\n", FormatGB(sample.Uplink)))
	sb.WriteString(fmt.Sprintf("↓ Download: %s GB\n", FormatGB(sample.Downlink)))
	sb.WriteString(fmt.Sprintf("Total: %s GB", FormatGB(sample.Total())))
	return sb.String()
}

// FormatClientsReport formats the clients of one server, heaviest first.
// Clients listed in onlines are marked as connected.
func FormatClientsReport(serverID string, records []models.ClientRecord, onlines []string) string {
	if len(records) == 0 {
		return fmt.Sprintf("<b>%s</b>: no clients", serverID)
	}

	online := make(map[string]bool, len(onlines))
	for _, email := range onlines {
		online[email] = true
	}

	sorted := make([]models.ClientRecord, len(records))
	copy(sorted, records)
	// По убыванию трафика, при равенстве по имени
	sort.Slice(sorted, func(i, j int) bool {
		ti := sorted[i].Uplink + sorted[i].Downlink
		tj := sorted[j].Uplink + sorted[j].Downlink
		if ti == tj {
			return sorted[i].Email < sorted[j].Email
		}
		return ti > tj
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>: %d clients\n", serverID, len(records)))
	sb.WriteString("<pre>\n")
	sb.WriteString("   Email             | ↓ (GB) | ↑ (GB)\n")

	var totalDown, totalUp int64
	for _, record := range sorted {
		icon := "🔴"
		if online[record.Email] {
			icon = "🟢"
		}
		sb.WriteString(icon + " " + FormatTableLine(record.Email, record.Downlink, record.Uplink))
		totalDown += record.Downlink
		totalUp += record.Uplink
	}

	sb.WriteString("-----------\n")
	sb.WriteString("📊 " + FormatTableLine("Total:", totalDown, totalUp))
	sb.WriteString("</pre>")

	return sb.String()
}

// FormatTableLine formats a single line of the traffic table
func FormatTableLine(email string, downBytes int64, upBytes int64) string {
	downGB := float64(downBytes) / constants.BytesInGB
	upGB := float64(upBytes) / constants.BytesInGB

	displayEmail := email
	if len(email) > constants.MaxEmailDisplayLength {
		displayEmail = email[:constants.MaxEmailSuffixLength] + "..."
	}

	return fmt.Sprintf("%-17s | %6.2f | %6.2f\n", displayEmail, downGB, upGB)
}
