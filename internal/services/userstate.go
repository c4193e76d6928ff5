package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-fleet/internal/models"
)

// UserStateService keeps the conversation state of each chat. States expire
// on their own so an abandoned dialog does not linger.
type UserStateService struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewUserStateService creates a new user state service
func NewUserStateService(logger *logrus.Logger) *UserStateService {
	return &UserStateService{
		cache:  cache.New(30*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("user_state_%d", userID)
}

// GetState returns the state of userID, Default when none is stored
func (s *UserStateService) GetState(userID int64) models.ConversationState {
	if data, found := s.cache.Get(stateKey(userID)); found {
		if state, ok := data.(models.UserState); ok {
			return state.State
		}
		s.logger.Warnf("Invalid state type for user %d", userID)
	}
	return models.Default
}

// SetState moves userID to state
func (s *UserStateService) SetState(userID int64, state models.ConversationState) {
	if state == models.Default {
		s.ClearState(userID)
		return
	}
	s.cache.Set(stateKey(userID), models.UserState{State: state}, cache.DefaultExpiration)
	s.logger.Debugf("Set state for user %d: %d", userID, state)
}

// ClearState resets userID to Default
func (s *UserStateService) ClearState(userID int64) {
	s.cache.Delete(stateKey(userID))
	s.logger.Debugf("Cleared state for user %d", userID)
}
