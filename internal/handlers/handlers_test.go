package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"xui-fleet/internal/commands"
	"xui-fleet/internal/config"
	"xui-fleet/internal/models"
	"xui-fleet/internal/permissions"
	"xui-fleet/internal/services"
)

// chatContext records what handlers send. Methods handlers do not use panic
// through the nil embedded interface.
type chatContext struct {
	telebot.Context
	sender *telebot.User
	text   string
	sent   []interface{}
}

func (c *chatContext) Sender() *telebot.User { return c.sender }

func (c *chatContext) Text() string { return c.text }

func (c *chatContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, what)
	return nil
}

func (c *chatContext) texts() []string {
	var out []string
	for _, s := range c.sent {
		if text, ok := s.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

func (c *chatContext) photos() int {
	n := 0
	for _, s := range c.sent {
		if _, ok := s.(*telebot.Photo); ok {
			n++
		}
	}
	return n
}

// memoryPanel is an in-memory panel holding clients of one inbound
type memoryPanel struct {
	mu      sync.Mutex
	emails  []string
	onlines []string
}

func (p *memoryPanel) Authenticate(ctx context.Context) (*models.Session, error) {
	return &models.Session{Cookies: []*http.Cookie{{Name: "3x-ui", Value: "ok"}}}, nil
}

func (p *memoryPanel) ListInbounds(ctx context.Context, session *models.Session) ([]models.InboundRaw, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var clients []string
	stats := make([]models.ClientStat, 0, len(p.emails))
	for _, email := range p.emails {
		clients = append(clients, `{"id":"`+email+`","email":"`+email+`"}`)
		stats = append(stats, models.ClientStat{Email: email})
	}
	settings := `{"clients":[` + strings.Join(clients, ",") + `]}`
	return []models.InboundRaw{{ID: 1, Settings: settings, ClientStats: stats}}, nil
}

func (p *memoryPanel) CreateClient(ctx context.Context, session *models.Session, inboundID int, email string, ownerID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emails = append(p.emails, email)
	return nil
}

func (p *memoryPanel) DeleteClient(ctx context.Context, session *models.Session, inboundID int, clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, email := range p.emails {
		if email == clientID {
			p.emails = append(p.emails[:i], p.emails[i+1:]...)
			break
		}
	}
	return nil
}

func (p *memoryPanel) GetTraffic(ctx context.Context, session *models.Session, client models.ClientRecord) (models.TrafficSample, error) {
	return models.TrafficSample{Uplink: 1024 * 1024 * 1024, Downlink: 1024 * 1024 * 1024}, nil
}

func (p *memoryPanel) GetOnlineClients(ctx context.Context, session *models.Session) ([]string, error) {
	return p.onlines, nil
}

func newTestDeps(t *testing.T, maxClients int, panels map[string]*memoryPanel, order ...string) Deps {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Panel: config.PanelConfig{
			MaxClients:  maxClients,
			InboundsTTL: time.Minute,
			ClientsTTL:  time.Minute,
		},
		Servers:     map[string]config.ServerConfig{},
		ServerOrder: order,
		LinkRemark:  "Vneseti",
	}
	clients := map[string]services.PanelClient{}
	for _, sid := range order {
		cfg.Servers[sid] = config.ServerConfig{
			ID: sid, Inbounds: []int{1}, Domain: sid + ".example.com", Port: 443,
			PBK: "pbk", SNI: "sni", SID: "ab", Flow: "xtls-rprx-vision",
		}
		clients[sid] = panels[sid]
	}

	manager := services.NewServerManagerWithClients(cfg, clients, nil, logger)
	return Deps{
		Manager:  manager,
		Profiles: services.NewProfileService(manager, logger),
		States:   services.NewUserStateService(logger),
		QR:       services.NewQRService(logger),
		Config:   cfg,
		Logger:   logger,
	}
}

func send(t *testing.T, h MessageHandler, userID int64, text string) *chatContext {
	t.Helper()
	c := &chatContext{sender: &telebot.User{ID: userID}, text: text}
	require.NoError(t, h.Handle(context.Background(), c))
	return c
}

func TestStartCreatesKey(t *testing.T) {
	panel := &memoryPanel{}
	deps := newTestDeps(t, 5, map[string]*memoryPanel{"nl": panel}, "nl")
	h := NewUserHandler(deps)

	c := send(t, h, 42, commands.Start)
	require.Len(t, c.texts(), 1)
	assert.Contains(t, c.texts()[0], "Send a name")
	assert.Equal(t, models.AwaitingName, deps.States.GetState(42))

	c = send(t, h, 42, "a1")
	assert.Contains(t, c.texts()[0], "must be 3-20")
	assert.Equal(t, models.AwaitingName, deps.States.GetState(42))

	c = send(t, h, 42, "Alice")
	texts := c.texts()
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "<code>alice</code>")
	assert.Contains(t, texts[1], "ready")
	assert.Contains(t, texts[2], "vless://42_alice@nl.example.com:443?")
	assert.Equal(t, 1, c.photos())
	assert.Equal(t, models.Default, deps.States.GetState(42))
	assert.Equal(t, []string{"42_alice"}, panel.emails)

	c = send(t, h, 42, commands.Start)
	require.Len(t, c.texts(), 1)
	assert.Contains(t, c.texts()[0], "vless://42_alice@")
	assert.Equal(t, 1, c.photos())
	assert.Len(t, panel.emails, 1)
}

func TestStartAllServersFull(t *testing.T) {
	panel := &memoryPanel{emails: []string{"1_ann"}}
	deps := newTestDeps(t, 1, map[string]*memoryPanel{"nl": panel}, "nl")

	c := send(t, NewUserHandler(deps), 42, commands.Start)
	assert.Contains(t, c.texts()[0], "All servers are full")
	assert.Equal(t, models.Default, deps.States.GetState(42))
}

func TestTrafficAndDelete(t *testing.T) {
	panel := &memoryPanel{emails: []string{"42_alice", "1_ann"}}
	deps := newTestDeps(t, 5, map[string]*memoryPanel{"nl": panel}, "nl")
	h := NewUserHandler(deps)

	c := send(t, h, 42, commands.Traffic)
	assert.Contains(t, c.texts()[0], "Total: 2.00 GB")

	c = send(t, h, 7, commands.Traffic)
	assert.Contains(t, c.texts()[0], "Profile not found")

	c = send(t, h, 42, commands.Delete)
	assert.Contains(t, c.texts()[0], "42_alice")
	assert.Equal(t, models.AwaitConfirmDeletion, deps.States.GetState(42))

	c = send(t, h, 42, commands.Confirm)
	assert.Contains(t, c.texts()[0], "Profile deleted")
	assert.Equal(t, []string{"1_ann"}, panel.emails)
}

func TestDeleteCancelled(t *testing.T) {
	panel := &memoryPanel{emails: []string{"42_alice"}}
	deps := newTestDeps(t, 5, map[string]*memoryPanel{"nl": panel}, "nl")
	h := NewUserHandler(deps)

	send(t, h, 42, commands.Delete)
	c := send(t, h, 42, commands.Cancel)
	assert.Contains(t, c.texts()[0], "Cancelled")
	assert.Equal(t, []string{"42_alice"}, panel.emails)
}

func TestAdminServersAndOnline(t *testing.T) {
	nl := &memoryPanel{emails: []string{"1_ann", "2_bob"}, onlines: []string{"1_ann"}}
	de := &memoryPanel{}
	deps := newTestDeps(t, 2, map[string]*memoryPanel{"nl": nl, "de": de}, "nl", "de")
	h := NewHandlerFactory(deps).CreateHandler(permissions.Admin)

	c := send(t, h, 1, commands.Servers)
	report := c.texts()[0]
	assert.Contains(t, report, "nl: 2/2 (full)")
	assert.Contains(t, report, "de: 0/2")

	c = send(t, h, 1, commands.Online)
	assert.Contains(t, c.texts()[0], "🟢 1_ann")
	assert.Contains(t, c.texts()[0], "<b>de</b>: no clients")

	c = send(t, h, 1, commands.Traffic)
	assert.Contains(t, c.texts()[0], "Profile not found")
}

func TestUserCannotUseAdminCommands(t *testing.T) {
	deps := newTestDeps(t, 2, map[string]*memoryPanel{"nl": {}}, "nl")
	h := NewHandlerFactory(deps).CreateHandler(permissions.User)

	c := send(t, h, 5, commands.Servers)
	assert.Contains(t, c.texts()[0], "/start")
}
