package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"xui-fleet/internal/config"
	"xui-fleet/internal/helpers"
	"xui-fleet/internal/models"
)

// Profile is the client a chat user owns, with the server it lives on
type Profile struct {
	Server  config.ServerConfig
	Client  models.ClientRecord
	Created bool
}

// OwnedClient is a client whose email carries a chat owner id
type OwnedClient struct {
	OwnerID  int64
	ServerID string
	Client   models.ClientRecord
}

// ProfileService binds chat users to panel clients through the owner prefix of the email
type ProfileService struct {
	manager *ServerManager
	logger  *logrus.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(manager *ServerManager, logger *logrus.Logger) *ProfileService {
	return &ProfileService{
		manager: manager,
		logger:  logger,
	}
}

// Find returns the profile of ownerID, nil when the owner has none
func (s *ProfileService) Find(ctx context.Context, ownerID int64) (*Profile, error) {
	server, client, err := s.manager.FindClientAcrossServers(ctx, helpers.OwnerPrefix(ownerID))
	if err != nil || client == nil {
		return nil, err
	}
	return &Profile{Server: *server, Client: *client}, nil
}

// EnsureProfile returns the existing profile of ownerID or creates one named
// name on the least loaded server
func (s *ProfileService) EnsureProfile(ctx context.Context, ownerID int64, name string) (*Profile, error) {
	existing, err := s.Find(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sid, err := s.manager.PickLeastLoaded(ctx)
	if err != nil {
		return nil, err
	}

	server, _ := s.manager.Server(sid)
	inboundID := server.DefaultInbound()
	email := helpers.FormatClientEmail(ownerID, name)

	if err := s.manager.CreateClient(ctx, sid, inboundID, email, ownerID, false); err != nil {
		return nil, err
	}

	s.logger.WithField("server", sid).Infof("Created profile %s for user %d", email, ownerID)
	return &Profile{
		Server: server,
		Client: models.ClientRecord{
			UUID:      email,
			Email:     email,
			InboundID: inboundID,
		},
		Created: true,
	}, nil
}

// Traffic returns the counters of ownerID's client, nil when the owner has no profile
func (s *ProfileService) Traffic(ctx context.Context, ownerID int64) (*models.TrafficSample, error) {
	profile, err := s.Find(ctx, ownerID)
	if err != nil || profile == nil {
		return nil, err
	}

	sample, err := s.manager.GetTraffic(ctx, profile.Server.ID, profile.Client)
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// DeleteProfile removes every client owned by ownerID from its home server
// and returns how many were removed
func (s *ProfileService) DeleteProfile(ctx context.Context, ownerID int64) (int, error) {
	profile, err := s.Find(ctx, ownerID)
	if err != nil || profile == nil {
		return 0, err
	}

	sid := profile.Server.ID
	clients, err := s.manager.ListClients(ctx, sid)
	if err != nil {
		return 0, err
	}

	prefix := helpers.OwnerPrefix(ownerID)
	deleted := 0
	for _, client := range clients {
		if !strings.HasPrefix(client.Email, prefix) {
			continue
		}
		clientID := client.UUID
		if clientID == "" {
			clientID = client.Email
		}
		if err := s.manager.DeleteClient(ctx, sid, client.InboundID, clientID); err != nil {
			return deleted, err
		}
		deleted++
	}

	s.logger.WithField("server", sid).Infof("Deleted %d clients of user %d", deleted, ownerID)
	return deleted, nil
}

// HasFreeServer reports whether any server can take another client.
// Servers that cannot be queried count as full.
func (s *ProfileService) HasFreeServer(ctx context.Context) bool {
	for _, sid := range s.manager.ServerIDs() {
		full, err := s.manager.IsFull(ctx, sid)
		if err != nil {
			s.logger.WithField("server", sid).Warnf("Capacity check failed: %v", err)
			continue
		}
		if !full {
			return true
		}
	}
	return false
}

// ListOwners returns every client bound to a chat owner across all servers
func (s *ProfileService) ListOwners(ctx context.Context) ([]OwnedClient, error) {
	var owned []OwnedClient
	for _, sid := range s.manager.ServerIDs() {
		clients, err := s.manager.ListClients(ctx, sid)
		if err != nil {
			return nil, err
		}
		for _, client := range clients {
			ownerID, _, ok := helpers.ParseClientEmail(client.Email)
			if !ok {
				continue
			}
			owned = append(owned, OwnedClient{OwnerID: ownerID, ServerID: sid, Client: client})
		}
	}
	return owned, nil
}
