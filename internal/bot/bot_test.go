package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"saint-devil-lottery/internal/config"
)

// idlePoller delivers no updates and returns when told to stop.
type idlePoller struct{}

func (idlePoller) Poll(_ *tele.Bot, _ chan tele.Update, stop chan struct{}) {
	<-stop
}

func newOfflineBot(t *testing.T) *Bot {
	t.Helper()
	b, err := newBot(&Dependencies{Config: &config.Config{}}, tele.Settings{
		Token:   "test",
		Offline: true,
		Poller:  idlePoller{},
	})
	require.NoError(t, err)
	return b
}

// within fails the test if fn does not return in time.
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s did not return within %s", what, d)
	}
}

func TestBot_StopBeforeStart(t *testing.T) {
	b := newOfflineBot(t)

	within(t, time.Second, "Stop before Start", b.Stop)
	within(t, time.Second, "Start after Stop", b.Start)
	within(t, time.Second, "second Stop", b.Stop)
}

func TestBot_StartThenStop(t *testing.T) {
	b := newOfflineBot(t)

	started := make(chan struct{})
	go func() {
		defer close(started)
		b.Start()
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.running
	}, time.Second, 5*time.Millisecond)

	within(t, time.Second, "Stop", b.Stop)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
