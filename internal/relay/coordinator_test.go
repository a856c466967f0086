package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/relay-service/internal/crypto"
	"github.com/fathima-sithara/relay-service/internal/presence"
	"github.com/fathima-sithara/relay-service/internal/queue"
	"github.com/fathima-sithara/relay-service/internal/store"
)

const (
	alice = "alice@example.com"
	bob   = "bob@example.com"
)

type pushed struct {
	event   string
	payload any
}

// captureConn records every push; flipping failing simulates a socket
// that died under the registry's feet.
type captureConn struct {
	mu      sync.Mutex
	pushes  []pushed
	failing bool
}

func (c *captureConn) Push(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("connection closed")
	}
	c.pushes = append(c.pushes, pushed{event: event, payload: payload})
	return nil
}

func (c *captureConn) fail() {
	c.mu.Lock()
	c.failing = true
	c.mu.Unlock()
}

func (c *captureConn) of(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, p := range c.pushes {
		if p.event == event {
			out = append(out, p.payload)
		}
	}
	return out
}

type fixture struct {
	coord *Coordinator
	store *store.MemoryMessageStore
	queue *queue.MemoryQueue
	codec *crypto.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := crypto.NewCodec("test-secret")
	require.NoError(t, err)
	st := store.NewMemoryMessageStore()
	q := queue.NewMemoryQueue()
	coord := NewCoordinator(st, q, codec, presence.NewRegistry(), nil, zap.NewNop().Sugar())
	return &fixture{coord: coord, store: st, queue: q, codec: codec}
}

func (f *fixture) connect(t *testing.T, userID string) (*Session, *captureConn) {
	t.Helper()
	conn := &captureConn{}
	sess := &Session{UserID: userID, Conn: conn}
	f.coord.Dispatch(context.Background(), sess, Envelope{Type: EventRegister})
	return sess, conn
}

func (f *fixture) send(sess *Session, message, chatID, senderID, receiverID string) {
	raw, _ := json.Marshal(SendRequest{
		Message:    message,
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
	})
	f.coord.Dispatch(context.Background(), sess, Envelope{Type: EventSendMessage, Payload: raw})
}

func (f *fixture) seen(sess *Session, messageID string) {
	raw, _ := json.Marshal(SeenRequest{MessageID: messageID})
	f.coord.Dispatch(context.Background(), sess, Envelope{Type: EventMessageSeen, Payload: raw})
}

func TestSendToOnlineRecipient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	senderSess, senderConn := f.connect(t, alice)
	_, bobConn := f.connect(t, bob)

	f.send(senderSess, "hello bob", "alice@example.com_bob@example.com", alice, bob)

	received := bobConn.of(EventReceiveMessage)
	req.Len(received, 1)
	payload := received[0].(MessagePayload)
	req.Equal("hello bob", payload.Body)
	req.Equal(alice, payload.SenderID)
	req.Equal(bob, payload.ReceiverID)
	req.NotEmpty(payload.ID)
	req.False(payload.Timestamp.IsZero())

	stored, err := f.store.FindByID(context.Background(), payload.ID)
	req.NoError(err)
	req.Equal([]string{bob}, stored.Status.DeliveredTo)
	req.Empty(stored.Status.SeenBy)

	// body is ciphertext at rest, plaintext only on the wire
	req.NotEqual("hello bob", stored.Body.Content)
	plain, err := f.codec.Decrypt(stored.Body)
	req.NoError(err)
	req.Equal("hello bob", plain)

	acks := senderConn.of(EventMessageDelivered)
	req.Len(acks, 1)
	ack := acks[0].(DeliveredPayload)
	req.Equal(payload.ID, ack.MessageID)
	req.Equal([]string{bob}, ack.DeliveredTo)

	req.Equal(0, f.queue.Len(bob))
}

func TestSendToOfflineRecipientQueues(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	senderSess, senderConn := f.connect(t, alice)
	f.send(senderSess, "hi", "a_b", alice, bob)

	req.Equal(1, f.queue.Len(bob))
	req.Equal(1, f.store.Count())
	req.Empty(senderConn.of(EventMessageDelivered))
	req.Empty(senderConn.of(EventError))

	entries, err := f.queue.DrainAll(context.Background(), bob)
	req.NoError(err)
	var queued MessagePayload
	req.NoError(json.Unmarshal(entries[0], &queued))
	req.Equal("hi", queued.Body)

	stored, err := f.store.FindByID(context.Background(), queued.ID)
	req.NoError(err)
	req.Empty(stored.Status.DeliveredTo)
}

func TestSendMissingFieldHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	senderSess, senderConn := f.connect(t, alice)

	for _, tt := range []struct {
		name string
		r    SendRequest
	}{
		{"no message", SendRequest{ChatID: "a_b", SenderID: alice, ReceiverID: bob}},
		{"no chatId", SendRequest{Message: "hi", SenderID: alice, ReceiverID: bob}},
		{"no senderId", SendRequest{Message: "hi", ChatID: "a_b", ReceiverID: bob}},
		{"no receiverId", SendRequest{Message: "hi", ChatID: "a_b", SenderID: alice}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			before := len(senderConn.of(EventError))
			raw, _ := json.Marshal(tt.r)
			f.coord.Dispatch(context.Background(), senderSess, Envelope{Type: EventSendMessage, Payload: raw})

			require.Equal(t, 0, f.store.Count())
			require.Equal(t, 0, f.queue.Len(bob))
			require.Len(t, senderConn.of(EventError), before+1)
		})
	}
}

func TestRegisterDrainsQueueInFIFOOrder(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	senderSess, _ := f.connect(t, alice)
	for i := 1; i <= 3; i++ {
		f.send(senderSess, fmt.Sprintf("msg-%d", i), "a_b", alice, bob)
	}
	req.Equal(3, f.queue.Len(bob))

	_, bobConn := f.connect(t, bob)

	received := bobConn.of(EventReceiveMessage)
	req.Len(received, 3)
	for i, got := range received {
		req.Equal(fmt.Sprintf("msg-%d", i+1), got.(MessagePayload).Body)
	}
	req.Equal(0, f.queue.Len(bob))

	// drain hands the payloads over but does not mark them delivered
	for _, got := range received {
		stored, err := f.store.FindByID(context.Background(), got.(MessagePayload).ID)
		req.NoError(err)
		req.Empty(stored.Status.DeliveredTo)
	}
}

// raceQueue injects an enqueue between the coordinator's read and its
// conditional clear, the enqueue-vs-drain race from a concurrent send.
type raceQueue struct {
	*queue.MemoryQueue
	once  sync.Once
	raced []byte
	user  string
}

func (q *raceQueue) DrainAll(ctx context.Context, userID string) ([][]byte, error) {
	out, err := q.MemoryQueue.DrainAll(ctx, userID)
	q.once.Do(func() {
		_ = q.MemoryQueue.Enqueue(ctx, q.user, q.raced)
	})
	return out, err
}

func TestDrainDoesNotLoseConcurrentlyEnqueuedEntry(t *testing.T) {
	req := require.New(t)
	codec, err := crypto.NewCodec("test-secret")
	req.NoError(err)
	st := store.NewMemoryMessageStore()

	racedPayload, _ := json.Marshal(MessagePayload{ID: "raced", Body: "raced", ReceiverID: bob})
	q := &raceQueue{MemoryQueue: queue.NewMemoryQueue(), raced: racedPayload, user: bob}
	coord := NewCoordinator(st, q, codec, presence.NewRegistry(), nil, zap.NewNop().Sugar())

	queuedPayload, _ := json.Marshal(MessagePayload{ID: "queued", Body: "queued", ReceiverID: bob})
	req.NoError(q.MemoryQueue.Enqueue(context.Background(), bob, queuedPayload))

	conn := &captureConn{}
	coord.Dispatch(context.Background(), &Session{UserID: bob, Conn: conn}, Envelope{Type: EventRegister})

	// the pre-existing entry was replayed, the racing one is still queued
	received := conn.of(EventReceiveMessage)
	req.Len(received, 1)
	req.Equal("queued", received[0].(MessagePayload).Body)
	req.Equal(1, q.Len(bob))

	remaining, err := q.MemoryQueue.DrainAll(context.Background(), bob)
	req.NoError(err)
	var got MessagePayload
	req.NoError(json.Unmarshal(remaining[0], &got))
	req.Equal("raced", got.Body)
}

func TestDeadSocketPushFallsBackToQueue(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	senderSess, senderConn := f.connect(t, alice)
	_, bobConn := f.connect(t, bob)
	bobConn.fail()

	f.send(senderSess, "hi", "a_b", alice, bob)

	req.Equal(1, f.queue.Len(bob))
	req.Empty(senderConn.of(EventMessageDelivered))

	entries, err := f.queue.DrainAll(context.Background(), bob)
	req.NoError(err)
	var queued MessagePayload
	req.NoError(json.Unmarshal(entries[0], &queued))

	stored, err := f.store.FindByID(context.Background(), queued.ID)
	req.NoError(err)
	req.Empty(stored.Status.DeliveredTo)
}

func TestSeenReportsAreIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	senderSess, senderConn := f.connect(t, alice)
	bobSess, bobConn := f.connect(t, bob)
	f.send(senderSess, "hi", "a_b", alice, bob)

	msgID := bobConn.of(EventReceiveMessage)[0].(MessagePayload).ID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.seen(bobSess, msgID)
		}()
	}
	wg.Wait()

	stored, err := f.store.FindByID(context.Background(), msgID)
	req.NoError(err)
	req.Equal([]string{bob}, stored.Status.SeenBy)

	updates := senderConn.of(EventSeenUpdate)
	req.NotEmpty(updates)
	for _, u := range updates {
		req.Equal([]string{bob}, u.(SeenUpdatePayload).SeenBy)
	}
}

func TestSeenOnUnknownMessageIsSwallowed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	bobSess, bobConn := f.connect(t, bob)

	f.seen(bobSess, "no-such-message")

	req.Empty(bobConn.of(EventError))
	req.Empty(bobConn.of(EventSeenUpdate))
}

func TestUnknownEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	sess, conn := f.connect(t, alice)

	f.coord.Dispatch(context.Background(), sess, Envelope{Type: "typing"})
	require.Empty(t, conn.of(EventError))
}

func TestStaleDisconnectKeepsNewRegistration(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	oldSess, _ := f.connect(t, bob)
	_, newConn := f.connect(t, bob)

	// the superseded connection's disconnect fires late
	f.coord.HandleDisconnect(context.Background(), oldSess)

	senderSess, _ := f.connect(t, alice)
	f.send(senderSess, "still here", "a_b", alice, bob)

	received := newConn.of(EventReceiveMessage)
	req.Len(received, 1)
	req.Equal("still here", received[0].(MessagePayload).Body)
	req.Equal(0, f.queue.Len(bob))
}

// TestOfflineDeliveryScenario walks the full story: A online sends to B
// offline, B registers and drains, B reports seen, A gets the update.
func TestOfflineDeliveryScenario(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceSess, aliceConn := f.connect(t, alice)
	f.send(aliceSess, "hi", "alice@example.com_bob@example.com", alice, bob)

	req.Equal(1, f.store.Count())
	req.Equal(1, f.queue.Len(bob))
	req.Empty(aliceConn.of(EventMessageDelivered))

	bobSess, bobConn := f.connect(t, bob)
	received := bobConn.of(EventReceiveMessage)
	req.Len(received, 1)
	payload := received[0].(MessagePayload)
	req.Equal("hi", payload.Body)
	req.Equal(0, f.queue.Len(bob))

	f.seen(bobSess, payload.ID)

	stored, err := f.store.FindByID(context.Background(), payload.ID)
	req.NoError(err)
	req.Equal([]string{bob}, stored.Status.SeenBy)

	updates := aliceConn.of(EventSeenUpdate)
	req.Len(updates, 1)
	update := updates[0].(SeenUpdatePayload)
	req.Equal(payload.ID, update.MessageID)
	req.Equal([]string{bob}, update.SeenBy)
}
