package config

import (
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// currentUserAndGroup resolves the names of the user/group running the test
// process, so ownership checks exercise real os/user lookups without
// depending on system accounts (vdsm/kvm) that won't exist in CI.
func currentUserAndGroup(t *testing.T) (userName, groupName string) {
	t.Helper()

	u, err := user.Current()
	if err != nil {
		t.Skipf("user.Current unavailable: %v", err)
	}

	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		t.Skipf("user.LookupGroupId unavailable: %v", err)
	}

	return u.Username, g.Name
}

func TestConfigurator_CheckExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.db")

	userName, groupName := currentUserAndGroup(t)
	c := NewConfigurator(Config{DBPath: path, OwnerUser: userName, OwnerGrp: groupName})

	require.Equal(t, StatusNo, c.CheckExists(), "CheckExists before Create")
	require.NoError(t, c.Create())
	require.Equal(t, StatusYes, c.CheckExists(), "CheckExists after Create")
}

func TestConfigurator_CheckOwnership(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.db")

	userName, groupName := currentUserAndGroup(t)
	c := NewConfigurator(Config{DBPath: path, OwnerUser: userName, OwnerGrp: groupName})

	require.NoError(t, c.Create())
	require.Equal(t, StatusYes, c.CheckOwnership(), "CheckOwnership after Create with matching owner")
}

func TestConfigurator_CheckOwnership_UnresolvableOwnerIsMaybe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.db")

	userName, groupName := currentUserAndGroup(t)
	require.NoError(t, NewConfigurator(Config{DBPath: path, OwnerUser: userName, OwnerGrp: groupName}).Create())

	c := NewConfigurator(Config{DBPath: path, OwnerUser: "definitely-not-a-real-user", OwnerGrp: "nope"})

	require.Equal(t, StatusMaybe, c.CheckOwnership(), "CheckOwnership with unresolvable owner")
}

func TestConfigurator_CheckVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.db")

	userName, groupName := currentUserAndGroup(t)
	c := NewConfigurator(Config{DBPath: path, OwnerUser: userName, OwnerGrp: groupName})

	require.Equal(t, StatusNo, c.CheckVersion(), "CheckVersion before Create")
	require.NoError(t, c.Create())
	require.Equal(t, StatusYes, c.CheckVersion(), "CheckVersion after Create")
}

func TestConfigurator_Fix_CreatesIfMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volumes.db")

	userName, groupName := currentUserAndGroup(t)
	c := NewConfigurator(Config{DBPath: path, OwnerUser: userName, OwnerGrp: groupName})

	require.NoError(t, c.Fix())
	require.Equal(t, StatusYes, c.CheckExists(), "CheckExists after Fix")
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{StatusYes: "YES", StatusNo: "NO", StatusMaybe: "MAYBE"}
	for status, want := range cases {
		require.Equal(t, want, status.String())
	}
}
