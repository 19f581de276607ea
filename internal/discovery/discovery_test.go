package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mm-swarm/internal/models"
)

func TestDiscover_OrdinalsAndPorts(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"livingroom", "kitchen", ".git"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), nil, 0o644))

	instances, err := Discover(root, Options{BoundIP: "192.168.1.10"})
	require.NoError(t, err)
	require.Len(t, instances, 2)

	kitchen, living := instances[0], instances[1]
	assert.Equal(t, "kitchen", kitchen.Name)
	assert.Equal(t, 0, kitchen.Ordinal)
	assert.Equal(t, 8080, kitchen.Port(models.PortMM))
	assert.Equal(t, 7890, kitchen.Port(models.PortMMPMUI))

	assert.Equal(t, "livingroom", living.Name)
	assert.Equal(t, 8081, living.Port(models.PortMM))
	assert.Equal(t, 7894, living.Port(models.PortMMPMUI))
	assert.Equal(t, 7895, living.Port(models.PortMMPMAPI))
	assert.Equal(t, 6793, living.Port(models.PortMMPMLog))
	assert.Equal(t, 8911, living.Port(models.PortMMPMRepeater))
	assert.Equal(t, "192.168.1.10", living.BoundIP)
}

func TestDiscover_MissingRoot(t *testing.T) {
	instances, err := Discover(filepath.Join(t.TempDir(), "absent"), Options{})
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestDiscover_ListingOrderKeepsEveryDirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0o755))
	}

	instances, err := Discover(root, Options{Order: OrderListing})
	require.NoError(t, err)
	require.Len(t, instances, 3)
	names := map[string]int{}
	for _, in := range instances {
		names[in.Name] = in.Ordinal
	}
	assert.Len(t, names, 3)
}

func TestRenumbered(t *testing.T) {
	assert.Empty(t, Renumbered(nil))
	assert.Empty(t, Renumbered([]string{"bathroom", "kitchen", "livingroom"}))
	assert.Equal(t, []string{"livingroom", "kitchen"}, Renumbered([]string{"bathroom", "livingroom", "kitchen"}))
	assert.Equal(t, []string{"b", "a"}, Renumbered([]string{"b", "a"}))
}

func TestListingDrift(t *testing.T) {
	moved, err := ListingDrift(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, moved)

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "kitchen"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".hidden"), 0o755))
	moved, err = ListingDrift(root)
	require.NoError(t, err)
	assert.Empty(t, moved)
}

func TestPortPlan_NoCollisionsForPracticalCounts(t *testing.T) {
	require.NoError(t, DefaultPlan.Validate(48))

	seen := map[int]bool{}
	for i := 0; i < 48; i++ {
		for _, port := range DefaultPlan.Assign(i) {
			assert.False(t, seen[port], "port %d assigned twice", port)
			seen[port] = true
		}
	}
}

func TestPortPlan_DetectsCollision(t *testing.T) {
	plan := PortPlan{
		{Name: "a", Base: 1000, Stride: 1},
		{Name: "b", Base: 1002, Stride: 1},
	}
	assert.NoError(t, plan.Validate(2))
	assert.ErrorIs(t, plan.Validate(3), ErrPortCollision)
	assert.ErrorIs(t, DefaultPlan.Validate(49), ErrPortCollision)
}

func TestSelectCandidate(t *testing.T) {
	got, err := SelectCandidate([]Candidate{
		{Interface: "wlan0", Address: "10.0.0.3"},
		{Interface: "eth1", Address: "10.0.0.2"},
		{Interface: "eth0", Address: "10.0.0.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "eth0", got.Interface)
	assert.Equal(t, "10.0.0.1", got.Address)

	_, err = SelectCandidate(nil)
	assert.ErrorIs(t, err, ErrNoLANInterface)
}

func TestIsLANInterface(t *testing.T) {
	assert.True(t, isLANInterface("eth0"))
	assert.True(t, isLANInterface("wlan1"))
	assert.True(t, isLANInterface("enp3s0"))
	assert.False(t, isLANInterface("docker0"))
	assert.False(t, isLANInterface("lo"))
}
