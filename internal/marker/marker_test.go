package marker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
)

func TestStore_RoundTripAndIdleClears(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	_, ok, err := s.Load("wlan0")
	require.NoError(t, err)
	assert.False(t, ok, "no marker yet")

	require.NoError(t, s.Save(Record{Interface: "wlan0", State: consts.StatePrepared, DhcpClientPrepared: true}))

	rec, ok, err := s.Load("wlan0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, consts.StatePrepared, rec.State)
	assert.True(t, rec.DhcpClientPrepared)
	assert.False(t, rec.UpdatedAt.IsZero())

	require.NoError(t, s.Save(Record{Interface: "wlan0", State: consts.StateIdle}))
	_, err = os.Stat(filepath.Join(dir, "wlan0.state"))
	assert.True(t, os.IsNotExist(err), "idle must remove the marker")
}

func TestStore_CorruptMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wlan0.state"), []byte("state: [oops"), 0o644))

	_, _, err := NewStore(dir).Load("wlan0")
	assert.Error(t, err)
}

func TestStore_MarkerForOtherInterface(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wlan0.state"), []byte("interface: wlan1\nstate: ACTIVE\n"), 0o644))

	_, ok, err := NewStore(dir).Load("wlan0")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStore_ClearMissing(t *testing.T) {
	assert.NoError(t, NewStore(t.TempDir()).Clear("wlan9"))
}

func TestLock_Exclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "wlan0")
	require.NoError(t, err)

	_, err = Acquire(dir, "wlan0")
	require.Error(t, err)
	assert.Equal(t, apperr.ErrCodeLockHeld, apperr.CodeOf(err))

	other, err := Acquire(dir, "wlan1")
	require.NoError(t, err, "locks are per interface")
	require.NoError(t, other.Release())

	require.NoError(t, first.Release())
	again, err := Acquire(dir, "wlan0")
	require.NoError(t, err)
	require.NoError(t, again.Release())
	assert.NoError(t, again.Release(), "double release is harmless")
}
