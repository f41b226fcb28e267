package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amerhub/amerhub/internal/protocol"
)

func newTestRegistry(t *testing.T, maxPerIdentity int) *SessionRegistry {
	t.Helper()
	r := NewSessionRegistry(maxPerIdentity, testLogger())
	t.Cleanup(r.Stop)
	return r
}

func newTestSession(identity, role, name string) (*Session, *fakeConn) {
	conn := &fakeConn{}
	return NewSession(conn, identity, role, name, "127.0.0.1:1000", testLogger()), conn
}

func TestRegistry_ConnectionCapRejectsNewSession(t *testing.T) {
	r := newTestRegistry(t, 2)

	first, _ := newTestSession("u1", RoleApplicant, "")
	second, _ := newTestSession("u1", RoleApplicant, "")
	third, _ := newTestSession("u1", RoleApplicant, "")

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	err := r.Register(third)
	require.ErrorIs(t, err, ErrConnectionLimit)

	// established sessions are untouched
	assert.Equal(t, 2, r.Count())
	_, ok := r.Get(first.ID)
	assert.True(t, ok)
	_, ok = r.Get(second.ID)
	assert.True(t, ok)
}

func TestRegistry_CapIsPerIdentity(t *testing.T) {
	r := newTestRegistry(t, 1)

	a, _ := newTestSession("u1", RoleApplicant, "")
	b, _ := newTestSession("u2", RoleApplicant, "")

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_DeregisterTwice(t *testing.T) {
	r := newTestRegistry(t, 3)
	sess, _ := newTestSession("u1", RoleApplicant, "")
	require.NoError(t, r.Register(sess))

	got, ok := r.Deregister(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)

	_, ok = r.Deregister(sess.ID)
	assert.False(t, ok)
}

func TestRegistry_DeregisterFreesCapSlot(t *testing.T) {
	r := newTestRegistry(t, 1)
	first, _ := newTestSession("u1", RoleApplicant, "")
	require.NoError(t, r.Register(first))

	replacement, _ := newTestSession("u1", RoleApplicant, "")
	require.ErrorIs(t, r.Register(replacement), ErrConnectionLimit)

	r.Deregister(first.ID)
	require.NoError(t, r.Register(replacement))
}

func TestRegistry_SendIsBestEffort(t *testing.T) {
	r := newTestRegistry(t, 3)
	sess, conn := newTestSession("u1", RoleApplicant, "")
	require.NoError(t, r.Register(sess))

	ok := r.Send(sess.ID, protocol.Errorf("TEST", "hello"))
	require.True(t, ok)
	conn.waitFor(t, protocol.KindError)

	// unknown session: no error, no delivery
	assert.False(t, r.Send("nope", protocol.Errorf("TEST", "hello")))

	// closed session: delivery refused, registry unaffected
	sess.close()
	assert.False(t, r.Send(sess.ID, protocol.Errorf("TEST", "hello")))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_PresenceDefaultsOnline(t *testing.T) {
	r := newTestRegistry(t, 3)
	sess, _ := newTestSession("o1", RoleOfficer, "")
	require.NoError(t, r.Register(sess))

	status, ok := r.Presence(sess.ID)
	require.True(t, ok)
	assert.Equal(t, StatusOnline, status)

	require.True(t, r.SetPresence(sess.ID, StatusAway))
	status, _ = r.Presence(sess.ID)
	assert.Equal(t, StatusAway, status)
}

func TestRegistry_ByRole(t *testing.T) {
	r := newTestRegistry(t, 3)
	officer, _ := newTestSession("o1", RoleOfficer, "Officer One")
	applicant, _ := newTestSession("a1", RoleApplicant, "")
	require.NoError(t, r.Register(officer))
	require.NoError(t, r.Register(applicant))

	officers := r.ByRole(RoleOfficer)
	require.Len(t, officers, 1)
	assert.Equal(t, "o1", officers[0].Identity)
	assert.Equal(t, "Officer One", officers[0].DisplayName)
	assert.Equal(t, StatusOnline, officers[0].Presence)
}

func TestRegistry_StalePartitions(t *testing.T) {
	r := newTestRegistry(t, 3)
	fresh, _ := newTestSession("u1", RoleApplicant, "")
	idle, _ := newTestSession("u2", RoleApplicant, "")
	dead, _ := newTestSession("u3", RoleApplicant, "")
	require.NoError(t, r.Register(fresh))
	require.NoError(t, r.Register(idle))
	require.NoError(t, r.Register(dead))

	// backdate activity through the owner loop
	r.do(func() {
		idle.lastActive = time.Now().Add(-2 * time.Minute)
		dead.lastActive = time.Now().Add(-10 * time.Minute)
	})

	probe, drop := r.Stale(time.Minute, 5*time.Minute)
	assert.Equal(t, []string{idle.ID}, probe)
	assert.Equal(t, []string{dead.ID}, drop)
}

func TestRegistry_TouchResetsStaleness(t *testing.T) {
	r := newTestRegistry(t, 3)
	sess, _ := newTestSession("u1", RoleApplicant, "")
	require.NoError(t, r.Register(sess))

	r.do(func() { sess.lastActive = time.Now().Add(-10 * time.Minute) })
	_, drop := r.Stale(time.Minute, 5*time.Minute)
	require.Len(t, drop, 1)

	r.Touch(sess.ID)
	probe, drop := r.Stale(time.Minute, 5*time.Minute)
	assert.Empty(t, probe)
	assert.Empty(t, drop)
}
