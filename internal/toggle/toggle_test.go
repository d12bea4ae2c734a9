package toggle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateInitiallyDisabled(t *testing.T) {
	t.Parallel()
	st := NewState("/srv/files")

	assert.False(t, st.IsEnabled())
	assert.False(t, st.IsExpired())
	assert.Nil(t, st.Credentials())
	assert.Equal(t, "/srv/files", st.RootDir())

	_, ok := st.ExpiresAt()
	assert.False(t, ok)
}

func TestEnableDisableCycle(t *testing.T) {
	t.Parallel()
	st := NewState("/srv/files")
	expires := time.Now().Add(time.Hour)

	st.Enable(Credentials{Username: "u1", Password: "p1"}, expires)
	require.True(t, st.IsEnabled())
	creds := st.Credentials()
	require.NotNil(t, creds)
	assert.Equal(t, "u1", creds.Username)
	got, ok := st.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, expires, got)

	st.Disable()
	assert.False(t, st.IsEnabled())
	assert.Nil(t, st.Credentials())
	_, ok = st.ExpiresAt()
	assert.False(t, ok)
	assert.Equal(t, "/srv/files", st.RootDir(), "root survives disable")
}

func TestEnableReplacesCredentials(t *testing.T) {
	t.Parallel()
	st := NewState("/srv/files")

	st.Enable(Credentials{Username: "old", Password: "old"}, time.Now().Add(time.Hour))
	st.Disable()
	st.Enable(Credentials{Username: "new", Password: "new"}, time.Now().Add(time.Hour))

	creds := st.Credentials()
	require.NotNil(t, creds)
	assert.Equal(t, "new", creds.Username)
}

func TestIsExpired(t *testing.T) {
	t.Parallel()
	st := NewState("/srv/files")

	st.Enable(Credentials{Username: "u", Password: "p"}, time.Now().Add(time.Hour))
	assert.False(t, st.IsExpired())

	st.Enable(Credentials{Username: "u", Password: "p"}, time.Now().Add(-time.Second))
	assert.True(t, st.IsExpired())

	// zero expiration means no limit
	st.Enable(Credentials{Username: "u", Password: "p"}, time.Time{})
	assert.False(t, st.IsExpired())
}

func TestCredentialsReturnsCopy(t *testing.T) {
	t.Parallel()
	st := NewState("/srv/files")
	st.Enable(Credentials{Username: "u", Password: "p"}, time.Time{})

	creds := st.Credentials()
	creds.Username = "mutated"

	assert.Equal(t, "u", st.Credentials().Username)
}

func TestSnapshotConsistentUnderConcurrency(t *testing.T) {
	t.Parallel()
	st := NewState("/srv/files")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				st.Enable(Credentials{Username: "u", Password: "p"}, time.Now().Add(time.Hour))
			} else {
				st.Disable()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		snap := st.Snapshot()
		if snap.Enabled {
			assert.NotNil(t, snap.Credentials, "enabled snapshot must carry credentials")
		} else {
			assert.Nil(t, snap.Credentials)
		}
	}
	close(stop)
	wg.Wait()
}
