package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xui-fleet/internal/config"
	"xui-fleet/internal/constants"
	apperrors "xui-fleet/internal/errors"
	"xui-fleet/internal/metrics"
	"xui-fleet/internal/models"
	"xui-fleet/pkg/xrayclient"
)

// PanelClient is the per-server panel API the manager drives
type PanelClient interface {
	Authenticate(ctx context.Context) (*models.Session, error)
	ListInbounds(ctx context.Context, session *models.Session) ([]models.InboundRaw, error)
	CreateClient(ctx context.Context, session *models.Session, inboundID int, email string, ownerID int64) error
	DeleteClient(ctx context.Context, session *models.Session, inboundID int, clientID string) error
	GetTraffic(ctx context.Context, session *models.Session, client models.ClientRecord) (models.TrafficSample, error)
	GetOnlineClients(ctx context.Context, session *models.Session) ([]string, error)
}

// ServerLoad describes the occupancy of one server
type ServerLoad struct {
	ServerID string `json:"server_id"`
	Clients  int    `json:"clients"`
	Max      int    `json:"max"`
	Full     bool   `json:"full"`
	Alive    bool   `json:"alive"`
	Error    string `json:"error,omitempty"`
}

// ServerManager is the single entry point for all panel operations across
// the configured servers
type ServerManager struct {
	servers  map[string]config.ServerConfig
	order    []string
	clients  map[string]PanelClient
	sessions *SessionCache
	cache    *ResponseCache
	panel    config.PanelConfig
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	pick     func(n int) int
}

// NewServerManager creates a manager with one panel client per configured server
func NewServerManager(cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) *ServerManager {
	clients := make(map[string]PanelClient, len(cfg.Servers))
	for sid, server := range cfg.Servers {
		clients[sid] = xrayclient.NewClient(server, xrayclient.Options{
			MaxConnections: cfg.Panel.MaxConnections,
			Metrics:        m,
		}, logger)
	}
	return NewServerManagerWithClients(cfg, clients, m, logger)
}

// NewServerManagerWithClients creates a manager that drives the given clients
func NewServerManagerWithClients(cfg *config.Config, clients map[string]PanelClient, m *metrics.Metrics, logger *logrus.Logger) *ServerManager {
	auth := make(map[string]Authenticator, len(clients))
	for sid, client := range clients {
		auth[sid] = client
	}

	return &ServerManager{
		servers:  cfg.Servers,
		order:    slices.Clone(cfg.ServerOrder),
		clients:  clients,
		sessions: NewSessionCache(auth, cfg.ServerOrder, m, logger),
		cache:    NewResponseCache(m, logger),
		panel:    cfg.Panel,
		metrics:  m,
		logger:   logger,
		pick:     rand.IntN,
	}
}

// ServerIDs returns the configured server ids in configuration order
func (m *ServerManager) ServerIDs() []string {
	return slices.Clone(m.order)
}

// Server returns the configuration of sid
func (m *ServerManager) Server(sid string) (config.ServerConfig, bool) {
	server, ok := m.servers[sid]
	return server, ok
}

// MaxClients returns the per-server client limit
func (m *ServerManager) MaxClients() int {
	return m.panel.MaxClients
}

// Sessions exposes the session cache, mostly for the refresh loop
func (m *ServerManager) Sessions() *SessionCache {
	return m.sessions
}

// StartSessionRefresh keeps every session fresh until ctx is done
func (m *ServerManager) StartSessionRefresh(ctx context.Context) {
	m.sessions.RefreshLoop(ctx, constants.SessionRefresh*time.Minute)
}

func (m *ServerManager) client(sid string) (PanelClient, error) {
	client, ok := m.clients[sid]
	if !ok {
		return nil, &apperrors.ServerNotFoundError{ServerID: sid}
	}
	return client, nil
}

// isSessionRejected reports whether the panel refused the session cookie
func isSessionRejected(err error) bool {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// withSession runs call with a session for sid. A rejected session is
// replaced once and the call repeated.
func withSession[T any](ctx context.Context, m *ServerManager, sid string, call func(PanelClient, *models.Session) (T, error)) (T, error) {
	var zero T

	client, err := m.client(sid)
	if err != nil {
		return zero, err
	}

	session, err := m.sessions.GetSession(ctx, sid, false)
	if err != nil {
		return zero, err
	}

	result, err := call(client, session)
	if !isSessionRejected(err) {
		return result, err
	}

	m.logger.WithField("server", sid).Warnf("Session rejected, logging in again: %v", err)
	session, err = m.sessions.Refresh(ctx, sid, session)
	if err != nil {
		return zero, err
	}
	return call(client, session)
}

func (m *ServerManager) listInbounds(ctx context.Context, sid string) ([]models.InboundRaw, error) {
	return Load(m.cache, sid, KindInbounds, m.panel.InboundsTTL, func() ([]models.InboundRaw, error) {
		return withSession(ctx, m, sid, func(c PanelClient, s *models.Session) ([]models.InboundRaw, error) {
			return c.ListInbounds(ctx, s)
		})
	})
}

// ListClients returns the clients of sid, served from cache while fresh
func (m *ServerManager) ListClients(ctx context.Context, sid string) ([]models.ClientRecord, error) {
	if _, err := m.client(sid); err != nil {
		return nil, err
	}

	records, err := Load(m.cache, sid, KindClients, m.panel.ClientsTTL, func() ([]models.ClientRecord, error) {
		inbounds, err := m.listInbounds(ctx, sid)
		if err != nil {
			return nil, err
		}
		return xrayclient.DeriveClients(inbounds), nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.SetClients(sid, len(records))
	return slices.Clone(records), nil
}

// freshClients lists the clients of sid bypassing any cached listing
func (m *ServerManager) freshClients(ctx context.Context, sid string) ([]models.ClientRecord, error) {
	m.invalidateListings(sid)
	return m.ListClients(ctx, sid)
}

func (m *ServerManager) invalidateListings(sid string) {
	m.cache.Invalidate(sid, KindClients)
	m.cache.Invalidate(sid, KindInbounds)
}

// InvalidateCache drops one cached kind for sid
func (m *ServerManager) InvalidateCache(sid string, kind CacheKind) {
	m.cache.Invalidate(sid, kind)
}

// PickLeastLoaded queries every server concurrently and returns the id of one
// with the fewest clients. Ties are broken at random; unreachable servers are
// left out.
func (m *ServerManager) PickLeastLoaded(ctx context.Context) (string, error) {
	counts := make([]int, len(m.order))
	failures := make([]error, len(m.order))

	var g errgroup.Group
	for i, sid := range m.order {
		g.Go(func() error {
			clients, err := m.ListClients(ctx, sid)
			if err != nil {
				failures[i] = err
				return nil
			}
			counts[i] = len(clients)
			return nil
		})
	}
	_ = g.Wait()

	var tied []string
	best := -1
	failed := make(map[string]error)
	for i, sid := range m.order {
		if failures[i] != nil {
			m.logger.WithField("server", sid).Warnf("Excluded from selection: %v", failures[i])
			failed[sid] = failures[i]
			continue
		}
		switch {
		case best < 0 || counts[i] < best:
			best = counts[i]
			tied = []string{sid}
		case counts[i] == best:
			tied = append(tied, sid)
		}
	}

	if len(tied) == 0 {
		return "", &apperrors.NoServersAvailableError{Failures: failed}
	}

	chosen := tied[m.pick(len(tied))]
	m.metrics.ObserveSelection(chosen)
	m.logger.WithField("server", chosen).Debugf("Selected with %d clients", best)
	return chosen, nil
}

// IsFull reports whether sid holds at least the configured maximum of clients
func (m *ServerManager) IsFull(ctx context.Context, sid string) (bool, error) {
	clients, err := m.ListClients(ctx, sid)
	if err != nil {
		return false, err
	}
	return len(clients) >= m.panel.MaxClients, nil
}

// CreateClient adds a client named email to inboundID on sid. Unless
// skipLimit is set, a server at capacity is left untouched and a
// CapacityExceededError returned.
func (m *ServerManager) CreateClient(ctx context.Context, sid string, inboundID int, email string, ownerID int64, skipLimit bool) error {
	clients, err := m.freshClients(ctx, sid)
	if err != nil {
		return err
	}

	if !skipLimit && len(clients) >= m.panel.MaxClients {
		return &apperrors.CapacityExceededError{ServerID: sid, Count: len(clients), Max: m.panel.MaxClients}
	}

	_, err = withSession(ctx, m, sid, func(c PanelClient, s *models.Session) (struct{}, error) {
		return struct{}{}, c.CreateClient(ctx, s, inboundID, email, ownerID)
	})
	if err != nil {
		return err
	}

	m.invalidateListings(sid)
	m.logger.WithFields(logrus.Fields{
		"server":  sid,
		"inbound": inboundID,
		"email":   email,
	}).Info("Client created")
	return nil
}

// DeleteClient removes clientID from inboundID on sid
func (m *ServerManager) DeleteClient(ctx context.Context, sid string, inboundID int, clientID string) error {
	_, err := withSession(ctx, m, sid, func(c PanelClient, s *models.Session) (struct{}, error) {
		return struct{}{}, c.DeleteClient(ctx, s, inboundID, clientID)
	})
	if err != nil {
		return err
	}

	m.invalidateListings(sid)
	m.logger.WithFields(logrus.Fields{
		"server":  sid,
		"inbound": inboundID,
		"client":  clientID,
	}).Info("Client deleted")
	return nil
}

// GetTraffic returns the current counters of client. It is never cached.
func (m *ServerManager) GetTraffic(ctx context.Context, sid string, client models.ClientRecord) (models.TrafficSample, error) {
	return withSession(ctx, m, sid, func(c PanelClient, s *models.Session) (models.TrafficSample, error) {
		return c.GetTraffic(ctx, s, client)
	})
}

// GetOnlineClients returns the emails currently connected to sid
func (m *ServerManager) GetOnlineClients(ctx context.Context, sid string) ([]string, error) {
	onlines, err := Load(m.cache, sid, KindOnlines, constants.OnlinesTTL*time.Second, func() ([]string, error) {
		return withSession(ctx, m, sid, func(c PanelClient, s *models.Session) ([]string, error) {
			return c.GetOnlineClients(ctx, s)
		})
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(onlines), nil
}

// FindClientAcrossServers returns the first client, in configuration order,
// whose email starts with prefix. Both results are nil when nobody matches.
func (m *ServerManager) FindClientAcrossServers(ctx context.Context, prefix string) (*config.ServerConfig, *models.ClientRecord, error) {
	for _, sid := range m.order {
		clients, err := m.ListClients(ctx, sid)
		if err != nil {
			return nil, nil, err
		}
		for _, client := range clients {
			if strings.HasPrefix(client.Email, prefix) {
				server := m.servers[sid]
				return &server, &client, nil
			}
		}
	}
	return nil, nil, nil
}

// IsAlive reports whether a session can be obtained for sid
func (m *ServerManager) IsAlive(ctx context.Context, sid string) bool {
	_, err := m.sessions.GetSession(ctx, sid, false)
	return err == nil
}

// LoadReport returns the occupancy of every server in configuration order
func (m *ServerManager) LoadReport(ctx context.Context) []ServerLoad {
	report := make([]ServerLoad, len(m.order))

	var g errgroup.Group
	for i, sid := range m.order {
		g.Go(func() error {
			load := ServerLoad{ServerID: sid, Max: m.panel.MaxClients}
			clients, err := m.ListClients(ctx, sid)
			if err != nil {
				load.Error = err.Error()
			} else {
				load.Alive = true
				load.Clients = len(clients)
				load.Full = len(clients) >= m.panel.MaxClients
			}
			report[i] = load
			return nil
		})
	}
	_ = g.Wait()

	return report
}
