package farm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu     sync.Mutex
	sends  []string
	clicks []string

	// onSend simulates the game answering, usually by signaling the ack
	onSend  func()
	sendErr error
}

func (c *fakeChannel) Send(_ context.Context, command string) error {
	c.mu.Lock()
	err := c.sendErr
	if err == nil {
		c.sends = append(c.sends, command)
	}
	onSend := c.onSend
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if onSend != nil {
		onSend()
	}
	return nil
}

func (c *fakeChannel) Click(_ context.Context, _ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks = append(c.clicks, string(data))
	return nil
}

func (c *fakeChannel) Sends() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sends...)
}

func (c *fakeChannel) Clicks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.clicks...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, text)
}

func (n *fakeNotifier) Notes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notes...)
}

type fakeSettings struct {
	pearlLimit  int
	ticketLimit int
}

func (s *fakeSettings) PriceLimits(context.Context, int64) (int, int) {
	return s.pearlLimit, s.ticketLimit
}

func testPacing() Pacing {
	return Pacing{
		JitterMin:       time.Millisecond,
		JitterMax:       2 * time.Millisecond,
		ExploreCooldown: time.Millisecond,
		AckTimeout:      25 * time.Millisecond,
	}
}

func newTestRunner(t *testing.T, ch *fakeChannel, pacing Pacing) (*Runner, *fakeNotifier) {
	t.Helper()

	notifier := &fakeNotifier{}
	settings := &fakeSettings{pearlLimit: 250, ticketLimit: 500}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(NewRegistry(), notifier, settings, log, pacing)
	runner := engine.StartRunner(context.Background(), 42, ch)
	t.Cleanup(runner.Close)

	// pretend the game answers every command so ack waits resolve instantly
	ch.onSend = runner.Session().SignalAck

	return runner, notifier
}

func TestRunnerDisabledEmitsNothing(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	ctx := context.Background()

	engage := [][]Button{{{Label: "Engage", Data: []byte("engage")}}}

	r.handle(ctx, Message{ID: 1, Text: "While exploring you earned 20 gold"})
	r.handle(ctx, Message{ID: 2, Text: "You run into a Threat Level 2 encounter", Buttons: engage})
	r.handle(ctx, Message{ID: 3, Text: "The Trader offers you:\n20 pearls for 15"})

	assert.Empty(t, ch.Sends())
	assert.Empty(t, ch.Clicks())
	assert.Empty(t, notifier.Notes())

	// notifications still escape the toggle
	r.handle(ctx, Message{ID: 4, Text: "You found a village in the distance."})
	assert.Len(t, notifier.Notes(), 1)
	assert.Empty(t, ch.Sends())
}

func TestCaptchaBlocksFollowingDispatch(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{ID: 1, Text: "You found a village in the distance."})
	require.Len(t, notifier.Notes(), 1)
	assert.Empty(t, ch.Sends())
	assert.True(t, r.Session().CaptchaActive())

	// the challenge was outstanding, so this dispatch only clears flags
	r.handle(ctx, Message{ID: 2, Text: "While exploring you earned 20 gold"})
	assert.Empty(t, ch.Sends())
	assert.False(t, r.Session().CaptchaActive())

	// with the challenge resolved the loop resumes
	r.handle(ctx, Message{ID: 3, Text: "While exploring you earned 5 gold"})
	require.Eventually(t, func() bool {
		return len(ch.Sends()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/explore"}, ch.Sends())
}

func TestEngageClicksOncePerMessage(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	msg := Message{
		ID:   7,
		Text: "You run into a Threat Level 2 encounter",
		Buttons: [][]Button{
			{{Label: "Run", Data: []byte("run")}, {Label: "εñgαge", Data: []byte("engage")}},
		},
	}

	r.handle(ctx, msg)
	require.Equal(t, []string{"engage"}, ch.Clicks())

	// edit redelivery of the same message id must not click again
	edited := msg
	edited.Edited = true
	r.handle(ctx, edited)
	assert.Equal(t, []string{"engage"}, ch.Clicks())
}

func TestExploreRetryEmitsAtMostTwo(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	r.Session().SetEnabled(true)

	// the game never answers
	ch.onSend = nil

	r.SendExploreWithTimeout(context.Background(), true)

	sends := ch.Sends()
	require.NotEmpty(t, sends)
	assert.LessOrEqual(t, len(sends), 2)
	for _, cmd := range sends {
		assert.Equal(t, "/explore", cmd)
	}
}

func TestExploreSendFailureRetriesOnce(t *testing.T) {
	ch := &fakeChannel{sendErr: errors.New("flood wait")}
	r, _ := newTestRunner(t, ch, testPacing())
	r.Session().SetEnabled(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.SendExploreWithTimeout(context.Background(), true)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("explore retry did not terminate")
	}
	assert.Empty(t, ch.Sends())
}

func TestExploreMinimumSpacing(t *testing.T) {
	pacing := testPacing()
	pacing.ExploreCooldown = time.Second

	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, pacing)
	r.Session().SetEnabled(true)
	ctx := context.Background()

	r.SendExploreWithTimeout(ctx, true)
	r.SendExploreWithTimeout(ctx, true)

	assert.Equal(t, []string{"/explore"}, ch.Sends())
}

func TestTradeOfferAccepted(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{
		ID:   10,
		Text: "The Trader offers you:\n20 pearls for 15",
		Buttons: [][]Button{
			{{Label: "Accept", Data: []byte("accept")}, {Label: "Decline", Data: []byte("decline")}},
		},
	})

	assert.Equal(t, []string{"accept"}, ch.Clicks())
	assert.Empty(t, ch.Sends(), "no explore while the offer is taken")
}

func TestTradeOfferDeclined(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{
		ID:   11,
		Text: "The Trader offers you:\n999 pearls for 900",
		Buttons: [][]Button{
			{{Label: "Accept", Data: []byte("accept")}, {Label: "Decline", Data: []byte("decline")}},
		},
	})

	assert.Empty(t, ch.Clicks())
	assert.Equal(t, []string{"/explore"}, ch.Sends())
}

func TestTraderEncounterOpensOffers(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{
		ID:   12,
		Text: "You explore and find a Trader!",
		Buttons: [][]Button{
			{{Label: "Check Out Offers", Data: []byte("offers")}},
		},
	})

	assert.Equal(t, []string{"offers"}, ch.Clicks())
	assert.Empty(t, ch.Sends())
}

func TestSpecialRarityPausesAndNotifies(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{ID: 13, Text: "Rarity : Epic\nA dazzling pet appears!"})

	assert.False(t, r.Session().Enabled())
	assert.Len(t, notifier.Notes(), 1)
	assert.Empty(t, ch.Sends())
	assert.Empty(t, ch.Clicks())

	// still exactly one notification per message, prior state notwithstanding
	r.handle(ctx, Message{ID: 14, Text: "Rarity : Exotic\nAnother one!"})
	assert.Len(t, notifier.Notes(), 2)
}

func TestSpecialRarityOverridesCaptcha(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{ID: 23, Text: "You found a village in the distance."})
	require.True(t, r.Session().CaptchaActive())
	require.Len(t, notifier.Notes(), 1)

	// the pause must win even while the challenge is outstanding
	r.handle(ctx, Message{ID: 24, Text: "Rarity : Epic\nA dazzling pet appears!"})
	assert.False(t, r.Session().Enabled())
	assert.Len(t, notifier.Notes(), 2)
	assert.Empty(t, ch.Clicks())
	assert.Empty(t, ch.Sends())
}

func TestEssencesPauseFarming(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	r.handle(ctx, Message{ID: 15, Text: "You also found 3 Essences!"})

	assert.False(t, r.Session().Enabled())
	assert.Len(t, notifier.Notes(), 1)
	assert.Empty(t, ch.Sends())
}

func TestAlsoFoundDeduplicatesOnEdit(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	msg := Message{ID: 16, Text: "You get 12 gold from the chest"}
	r.handle(ctx, msg)
	require.Eventually(t, func() bool {
		return len(ch.Sends()) == 1
	}, time.Second, 5*time.Millisecond)

	edited := msg
	edited.Edited = true
	r.handle(ctx, edited)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"/explore"}, ch.Sends())

	// a later distinct message continues the loop
	r.handle(ctx, Message{ID: 17, Text: "You get 3 gold from the chest"})
	require.Eventually(t, func() bool {
		return len(ch.Sends()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/explore", "/explore"}, ch.Sends())
}

func TestDuelPromptFightsThenExplores(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	msg := Message{ID: 18, Text: "A rival blocks your path! Defeat before you can continue exploring."}
	r.handle(ctx, msg)
	require.Equal(t, []string{"/fight"}, ch.Sends())
	assert.Len(t, notifier.Notes(), 1)
	assert.True(t, r.Session().CaptchaActive())

	edited := msg
	edited.Edited = true
	r.handle(ctx, edited)
	assert.Equal(t, []string{"/fight", "/explore"}, ch.Sends())
	assert.False(t, r.Session().CaptchaActive())
}

func TestCombatClicksFollowBattleFlow(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, testPacing())
	ctx := context.Background()
	r.Session().SetEnabled(true)

	buttons := [][]Button{
		{{Label: "Attack", Data: []byte("attack")}},
		{{Label: "Pick Up", Data: []byte("pickup")}, {Label: "Status", Data: []byte("status")}},
	}

	r.handle(ctx, Message{ID: 19, Text: "You dealt 42 damage! The beast moves back.", Buttons: buttons})
	assert.Equal(t, []string{"attack"}, ch.Clicks())

	r.handle(ctx, Message{ID: 20, Text: "The beast moves and drops a Cursed Sword!", Buttons: buttons})
	assert.Equal(t, []string{"attack", "pickup"}, ch.Clicks())

	r.handle(ctx, Message{ID: 21, Text: "Battle Status: your foe moves sluggishly.", Buttons: buttons})
	assert.Equal(t, []string{"attack", "pickup", "status"}, ch.Clicks())
}

func TestRunnerQueueDelivery(t *testing.T) {
	ch := &fakeChannel{}
	r, notifier := newTestRunner(t, ch, testPacing())
	r.Session().SetEnabled(true)

	r.Enqueue(Message{ID: 22, Text: "You found a village in the distance."})

	assert.Eventually(t, func() bool {
		return len(notifier.Notes()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestQueuedAckStopsTimeoutRetry(t *testing.T) {
	pacing := testPacing()
	pacing.AckTimeout = 400 * time.Millisecond

	ch := &fakeChannel{}
	r, _ := newTestRunner(t, ch, pacing)
	r.Session().SetEnabled(true)

	// the game answers through the message queue, never inside Send
	ch.onSend = nil

	r.Enqueue(Message{ID: 30, Text: "While exploring you earned 20 gold"})
	require.Eventually(t, func() bool {
		return len(ch.Sends()) == 1
	}, time.Second, 5*time.Millisecond)

	// the answer arrives while the explore cycle is still waiting, and the
	// consumer must be free to classify it
	r.Enqueue(Message{ID: 31, Text: "You run into a Threat Level 2 encounter"})

	time.Sleep(pacing.AckTimeout + 100*time.Millisecond)
	assert.Equal(t, []string{"/explore"}, ch.Sends(),
		"a queued answer must settle the explore before the timeout retry fires")
}

func TestPacingHotReload(t *testing.T) {
	notifier := &fakeNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(NewRegistry(), notifier, &fakeSettings{}, log, DefaultPacing())

	updated := testPacing()
	engine.SetPacing(updated)

	assert.Equal(t, updated, engine.pacingSnapshot())
}
