package models

// InboundRaw is one element of the panel's inbound list
type InboundRaw struct {
	ID          int          `json:"id"`
	Remark      string       `json:"remark"`
	Enable      bool         `json:"enable"`
	Port        int          `json:"port"`
	Protocol    string       `json:"protocol"`
	Settings    string       `json:"settings"`
	ClientStats []ClientStat `json:"clientStats"`
}

// ClientStat carries the traffic counters of one client. Panels disagree on
// the counter names, see Counters.
type ClientStat struct {
	ID        int    `json:"id"`
	InboundID int    `json:"inboundId"`
	Enable    bool   `json:"enable"`
	Email     string `json:"email"`
	Counters
}

// Counters holds both spellings of the traffic fields
type Counters struct {
	Uplink   *int64 `json:"uplink,omitempty"`
	Up       *int64 `json:"up,omitempty"`
	Downlink *int64 `json:"downlink,omitempty"`
	Down     *int64 `json:"down,omitempty"`
}

// Sample resolves the aliases: uplink/downlink win, up/down are the fallback,
// a missing pair reads as zero.
func (c Counters) Sample() TrafficSample {
	return TrafficSample{
		Uplink:   firstOf(c.Uplink, c.Up),
		Downlink: firstOf(c.Downlink, c.Down),
	}
}

// IsEmpty reports whether no counter was present at all
func (c Counters) IsEmpty() bool {
	return c.Uplink == nil && c.Up == nil && c.Downlink == nil && c.Down == nil
}

func firstOf(values ...*int64) int64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// InboundSettings is the JSON document stored as a string in InboundRaw.Settings
type InboundSettings struct {
	Clients []InboundClient `json:"clients"`
}

// InboundClient represents a client entry inside inbound settings
type InboundClient struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Flow  string `json:"flow"`
	SubID string `json:"subId"`
}
