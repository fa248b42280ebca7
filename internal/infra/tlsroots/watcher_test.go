package tlsroots

import (
	"crypto/x509/pkix"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/infra/tlsroots/tlstest"
)

// countingReloader records reload calls.
type countingReloader struct {
	mu    sync.Mutex
	calls []domain.ChannelType
	err   error
}

func (r *countingReloader) Reload(ch domain.ChannelType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ch)
	return r.err
}

func (r *countingReloader) Calls() []domain.ChannelType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChannelType(nil), r.calls...)
}

func TestWatcher_ChannelsFor(t *testing.T) {
	w := NewWatcher(&countingReloader{}, map[domain.ChannelType]ChannelFiles{
		domain.ChannelHTTP:      {CertFile: "/etc/tlsmesh/http.crt", KeyFile: "/etc/tlsmesh/http.key", CAFile: "/etc/tlsmesh/ca"},
		domain.ChannelTransport: {CertFile: "/etc/tlsmesh/node.crt", KeyFile: "/etc/tlsmesh/node.key", CAFile: "/etc/tlsmesh/ca"},
	})

	assert.Equal(t, []domain.ChannelType{domain.ChannelHTTP}, w.channelsFor("/etc/tlsmesh/http.key"))
	assert.Len(t, w.channelsFor("/etc/tlsmesh/ca/root.pem"), 2, "a CA directory maps to both channels")
	assert.Empty(t, w.channelsFor("/etc/tlsmesh/unrelated.txt"))
}

func TestWatcher_DebounceCoalescesPerChannel(t *testing.T) {
	r := &countingReloader{}
	w := NewWatcher(r, nil, WithDebounce(50*time.Millisecond))
	defer w.Stop()

	w.debouncedReload(domain.ChannelTransport)
	w.debouncedReload(domain.ChannelTransport)
	w.debouncedReload(domain.ChannelHTTP)

	require.Eventually(t, func() bool { return len(r.Calls()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.ElementsMatch(t, []domain.ChannelType{domain.ChannelTransport, domain.ChannelHTTP}, r.Calls())
}

func TestWatcher_DebounceRestartsOnEachEvent(t *testing.T) {
	r := &countingReloader{}
	w := NewWatcher(r, nil, WithDebounce(200*time.Millisecond))
	defer w.Stop()

	w.debouncedReload(domain.ChannelTransport)
	time.Sleep(120 * time.Millisecond)
	w.debouncedReload(domain.ChannelTransport)
	time.Sleep(120 * time.Millisecond)

	assert.Empty(t, r.Calls(), "reload must wait for the files to settle")

	require.Eventually(t, func() bool { return len(r.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopCancelsPendingReload(t *testing.T) {
	r := &countingReloader{}
	w := NewWatcher(r, nil, WithDebounce(50*time.Millisecond))

	w.debouncedReload(domain.ChannelHTTP)
	w.Stop()
	w.debouncedReload(domain.ChannelHTTP)

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, r.Calls())
}

func TestWatcher_OnReloadReportsError(t *testing.T) {
	r := &countingReloader{err: errors.New("broken")}

	got := make(chan error, 1)
	w := NewWatcher(r, nil,
		WithDebounce(time.Millisecond),
		WithOnReload(func(_ domain.ChannelType, err error) { got <- err }))
	defer w.Stop()

	w.debouncedReload(domain.ChannelHTTP)
	select {
	case err := <-got:
		assert.EqualError(t, err, "broken")
	case <-time.After(2 * time.Second):
		t.Fatal("OnReload not called")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher(&countingReloader{}, nil)
	w.Stop()
	w.Stop()
}

// startWatching runs a watcher for files on store and returns a channel of
// reload results.
func startWatching(t *testing.T, store *Store, files map[domain.ChannelType]ChannelFiles, debounce time.Duration) <-chan error {
	t.Helper()

	reloaded := make(chan error, 16)
	w := NewWatcher(store, files,
		WithDebounce(debounce),
		WithOnReload(func(_ domain.ChannelType, err error) { reloaded <- err }))

	go func() {
		assert.NoError(t, w.Start())
	}()
	t.Cleanup(w.Stop)

	// Give the watcher time to register its directories.
	time.Sleep(200 * time.Millisecond)
	return reloaded
}

func transportSubject(store *Store) string {
	m, ok := store.Material(domain.ChannelTransport)
	if !ok {
		return ""
	}
	return m.Leaf.Subject.CommonName
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fsnotify test in short mode")
	}

	ca := tlstest.NewCA(t, "test-ca")
	f := ca.WriteFiles(t, t.TempDir(), "transport", pkix.Name{CommonName: "node-a"})
	files := map[domain.ChannelType]ChannelFiles{domain.ChannelTransport: channelFiles(f)}

	store, err := NewStore(files)
	require.NoError(t, err)

	reloaded := startWatching(t, store, files, 10*time.Millisecond)
	ca.Rotate(t, f, pkix.Name{CommonName: "node-a-v2"})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
			if transportSubject(store) == "node-a-v2" {
				return
			}
		case <-deadline:
			t.Fatal("certificate was not reloaded after file change")
		}
	}
}

func TestWatcher_KeyPairWrittenInTwoSteps(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fsnotify test in short mode")
	}

	ca := tlstest.NewCA(t, "test-ca")
	f := ca.WriteFiles(t, t.TempDir(), "transport", pkix.Name{CommonName: "old"})
	files := map[domain.ChannelType]ChannelFiles{domain.ChannelTransport: channelFiles(f)}

	store, err := NewStore(files)
	require.NoError(t, err)

	reloaded := startWatching(t, store, files, 500*time.Millisecond)

	certPEM, keyPEM := ca.Issue(t, pkix.Name{CommonName: "new"})
	require.NoError(t, os.WriteFile(f.CertFile, certPEM, 0o644))
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, os.WriteFile(f.KeyFile, keyPEM, 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err, "reload must see the matching key pair")
	case <-time.After(5 * time.Second):
		t.Fatal("certificate was not reloaded")
	}
	assert.Equal(t, "new", transportSubject(store))
}
