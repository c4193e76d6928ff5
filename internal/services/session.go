package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"xui-fleet/internal/constants"
	apperrors "xui-fleet/internal/errors"
	"xui-fleet/internal/metrics"
	"xui-fleet/internal/models"
)

// Authenticator logs in to one panel server
type Authenticator interface {
	Authenticate(ctx context.Context) (*models.Session, error)
}

type sessionSlot struct {
	mu      sync.Mutex
	session atomic.Pointer[models.Session]
}

// SessionCache keeps at most one live session per server. Logins for one
// server are serialized; logins for different servers never wait on each other.
type SessionCache struct {
	auth     map[string]Authenticator
	slots    map[string]*sessionSlot
	order    []string
	lifetime time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// NewSessionCache creates a session cache for the given servers. order is the
// sequence RefreshLoop walks.
func NewSessionCache(auth map[string]Authenticator, order []string, m *metrics.Metrics, logger *logrus.Logger) *SessionCache {
	slots := make(map[string]*sessionSlot, len(auth))
	for sid := range auth {
		slots[sid] = &sessionSlot{}
	}

	return &SessionCache{
		auth:     auth,
		slots:    slots,
		order:    order,
		lifetime: constants.SessionLifetime * time.Minute,
		now:      time.Now,
		metrics:  m,
		logger:   logger,
	}
}

// GetSession returns a valid session for sid, logging in when none is cached,
// the cached one expired, or force is set.
func (s *SessionCache) GetSession(ctx context.Context, sid string, force bool) (*models.Session, error) {
	slot, ok := s.slots[sid]
	if !ok {
		return nil, &apperrors.ServerNotFoundError{ServerID: sid}
	}

	observed := slot.session.Load()
	if !force && observed.IsValid(s.now()) {
		return observed, nil
	}

	return s.login(ctx, sid, slot, observed, force)
}

// Refresh replaces stale with a fresh session. When another caller already
// replaced it, their session is returned without a second login.
func (s *SessionCache) Refresh(ctx context.Context, sid string, stale *models.Session) (*models.Session, error) {
	slot, ok := s.slots[sid]
	if !ok {
		return nil, &apperrors.ServerNotFoundError{ServerID: sid}
	}
	return s.login(ctx, sid, slot, stale, true)
}

func (s *SessionCache) login(ctx context.Context, sid string, slot *sessionSlot, observed *models.Session, force bool) (*models.Session, error) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	current := slot.session.Load()
	if current.IsValid(s.now()) && (!force || current != observed) {
		return current, nil
	}

	session, err := s.auth[sid].Authenticate(ctx)
	s.metrics.ObserveAuth(sid, err)
	if err != nil {
		s.logger.WithField("server", sid).Errorf("Login failed: %v", err)
		return nil, err
	}

	fresh := &models.Session{
		Cookies:   session.Cookies,
		ExpiresAt: s.now().Add(s.lifetime),
	}
	slot.session.Store(fresh)
	s.logger.WithField("server", sid).Debugf("Logged in, session valid until %s", fresh.ExpiresAt.Format(constants.TimestampFormat))

	return fresh, nil
}

// Invalidate drops the cached session of sid
func (s *SessionCache) Invalidate(sid string) {
	if slot, ok := s.slots[sid]; ok {
		slot.session.Store(nil)
	}
}

// RefreshAll forces a new login on every server in order. Failures are
// logged and do not stop the sweep.
func (s *SessionCache) RefreshAll(ctx context.Context) int {
	alive := 0
	for _, sid := range s.order {
		if ctx.Err() != nil {
			return alive
		}
		if _, err := s.GetSession(ctx, sid, true); err != nil {
			s.logger.WithField("server", sid).Warnf("Session refresh failed: %v", err)
			continue
		}
		alive++
	}
	return alive
}

// RefreshLoop forces a new login on every server once per interval until ctx
// is done. Sessions live longer than the interval, so callers never see one expire.
func (s *SessionCache) RefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		alive := s.RefreshAll(ctx)
		s.logger.Infof("Sessions refreshed: %d of %d servers reachable", alive, len(s.order))
	}
}
