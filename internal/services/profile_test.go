package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "xui-fleet/internal/errors"
)

func newTestProfiles(panels map[string]*fakePanel, order ...string) (*ProfileService, *ServerManager) {
	m := newTestManager(panels, order...)
	return NewProfileService(m, quietLogger()), m
}

func TestEnsureProfileReturnsExisting(t *testing.T) {
	a := newFakePanel(1, "1_ann")
	b := newFakePanel(2, "42_alice")
	profiles, _ := newTestProfiles(map[string]*fakePanel{"a": a, "b": b}, "a", "b")

	profile, err := profiles.EnsureProfile(context.Background(), 42, "other")
	require.NoError(t, err)
	assert.False(t, profile.Created)
	assert.Equal(t, "b", profile.Server.ID)
	assert.Equal(t, "42_alice", profile.Client.Email)
	assert.Equal(t, 0, a.count("create")+b.count("create"))
}

func TestEnsureProfileCreatesOnLeastLoaded(t *testing.T) {
	a := newFakePanel(1, "1_ann", "2_bob")
	b := newFakePanel(1, "3_cid")
	profiles, m := newTestProfiles(map[string]*fakePanel{"a": a, "b": b}, "a", "b")

	profile, err := profiles.EnsureProfile(context.Background(), 42, "alice")
	require.NoError(t, err)
	assert.True(t, profile.Created)
	assert.Equal(t, "b", profile.Server.ID)
	assert.Equal(t, "42_alice", profile.Client.Email)
	assert.Equal(t, 1, profile.Client.InboundID)
	assert.Equal(t, 1, b.count("create"))

	again, err := profiles.EnsureProfile(context.Background(), 42, "alice")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, 1, b.count("create"))

	clients, err := m.ListClients(context.Background(), "b")
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestEnsureProfileAllFull(t *testing.T) {
	a := newFakePanel(1, "1_a", "2_a", "3_a")
	profiles, _ := newTestProfiles(map[string]*fakePanel{"a": a}, "a")

	assert.False(t, profiles.HasFreeServer(context.Background()))

	_, err := profiles.EnsureProfile(context.Background(), 42, "alice")
	var full *apperrors.CapacityExceededError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 0, a.count("create"))
}

func TestTrafficWithoutProfile(t *testing.T) {
	profiles, _ := newTestProfiles(map[string]*fakePanel{"a": newFakePanel(1, "1_ann")}, "a")

	sample, err := profiles.Traffic(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, sample)
}

func TestDeleteProfile(t *testing.T) {
	a := newFakePanel(1, "1_ann", "42_alice", "42_spare")
	profiles, m := newTestProfiles(map[string]*fakePanel{"a": a}, "a")

	deleted, err := profiles.DeleteProfile(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	clients, err := m.ListClients(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "1_ann", clients[0].Email)

	deleted, err = profiles.DeleteProfile(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestHasFreeServerSkipsUnreachable(t *testing.T) {
	broken := newFakePanel(1)
	broken.listErr = errors.New("refused")
	profiles, _ := newTestProfiles(map[string]*fakePanel{
		"a": broken,
		"b": newFakePanel(1, "1_b"),
	}, "a", "b")

	assert.True(t, profiles.HasFreeServer(context.Background()))
}

func TestListOwners(t *testing.T) {
	profiles, _ := newTestProfiles(map[string]*fakePanel{
		"a": newFakePanel(1, "1_ann", "admin"),
		"b": newFakePanel(1, "42_alice"),
	}, "a", "b")

	owned, err := profiles.ListOwners(context.Background())
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, int64(1), owned[0].OwnerID)
	assert.Equal(t, "a", owned[0].ServerID)
	assert.Equal(t, int64(42), owned[1].OwnerID)
	assert.Equal(t, "b", owned[1].ServerID)
}
