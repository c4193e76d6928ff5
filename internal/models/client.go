package models

import (
	"net/http"
	"time"
)

// Client is the client object posted to addClient
type Client struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Flow       string `json:"flow"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int    `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       int64  `json:"tgId"`
	SubID      string `json:"subId"`
	Reset      int    `json:"reset"`
	SID        string `json:"sid"`
}

// NewClient builds a client with the fixed defaults: no IP limit, no quota,
// no expiry, enabled. The email doubles as the client id.
func NewClient(email, flow string, ownerID int64) Client {
	return Client{
		ID:     email,
		Email:  email,
		Flow:   flow,
		Enable: true,
		TgID:   ownerID,
	}
}

// ClientSettings wraps clients the way the panel expects them in settings
type ClientSettings struct {
	Clients []Client `json:"clients"`
}

// AddClientRequest is the addClient body
type AddClientRequest struct {
	ID       int    `json:"id"`
	Settings string `json:"settings"`
}

// ClientRecord is a client as seen by the rest of the application
type ClientRecord struct {
	UUID      string `json:"uuid"`
	Email     string `json:"email"`
	InboundID int    `json:"inbound_id"`
	Uplink    int64  `json:"uplink"`
	Downlink  int64  `json:"downlink"`
}

// TrafficSample is a pair of traffic counters in bytes
type TrafficSample struct {
	Uplink   int64 `json:"uplink"`
	Downlink int64 `json:"downlink"`
}

// Total returns uplink plus downlink
func (t TrafficSample) Total() int64 {
	return t.Uplink + t.Downlink
}

// Session is an authenticated panel session
type Session struct {
	Cookies   []*http.Cookie
	ExpiresAt time.Time
}

// IsValid reports whether the session carries cookies and has not expired at now
func (s *Session) IsValid(now time.Time) bool {
	return s != nil && len(s.Cookies) > 0 && now.Before(s.ExpiresAt)
}
