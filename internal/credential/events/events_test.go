package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "edureg/pkg/domain"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, Event{
		Kind:         KindCredentialIssued,
		CredentialID: 1,
		StudentName:  "Alice",
		CourseName:   "CS101",
		Identity:     "owner",
	}, CredentialIssued(1, "Alice", "CS101", "owner"))
	assert.Equal(t, Event{Kind: KindCredentialRevoked, CredentialID: 2}, CredentialRevoked(2))
	assert.Equal(t, Event{Kind: KindInstitutionAuthorized, Identity: "uni"}, InstitutionAuthorized("uni"))
	assert.Equal(t, Event{Kind: KindInstitutionRevoked, Identity: "uni"}, InstitutionRevoked("uni"))
}

func TestRecorderKeepsOrder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, CredentialIssued(1, "a", "b", "o")))
	require.NoError(t, r.Publish(ctx, InstitutionAuthorized("uni")))
	require.NoError(t, r.Publish(ctx, CredentialRevoked(1)))

	assert.Equal(t, []Kind{KindCredentialIssued, KindInstitutionAuthorized, KindCredentialRevoked}, r.Kinds())

	events := r.Events()
	events[0].StudentName = "mutated"
	assert.Equal(t, "a", r.Events()[0].StudentName, "Events returns a copy")

	r.Clear()
	assert.Empty(t, r.Events())
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	first, second := NewRecorder(), NewRecorder()
	boom := errors.New("boom")
	failing := PublisherFunc(func(context.Context, Event) error { return boom })

	err := Fanout{first, failing, nil, second}.Publish(ctx, CredentialRevoked(3))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1, "delivery continues after a failure")
	assert.NoError(t, Fanout{}.Publish(ctx, CredentialRevoked(3)))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	p := NewLogPublisher(logger)

	event := CredentialIssued(1, "Alice", "CS101", "did:example:owner")
	event.OccurredAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event.RequestID = "req-1"
	require.NoError(t, p.Publish(context.Background(), event))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "credential_issued", line["msg"])
	assert.Equal(t, "credential_issued", line["event"])
	assert.Equal(t, "audit", line["log_type"])
	assert.Equal(t, float64(1), line["credential_id"])
	assert.Equal(t, "did:example:owner", line["identity"])
	assert.Equal(t, "Alice", line["student_name"])
	assert.Equal(t, "req-1", line["request_id"])
}

func TestLogPublisherOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Publish(context.Background(), InstitutionRevoked("uni")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "credential_id")
	assert.NotContains(t, line, "student_name")
	assert.NotContains(t, line, "request_id")

	assert.NoError(t, NewLogPublisher(nil).Publish(context.Background(), InstitutionRevoked("uni")))
}

func TestAsyncDeliversInOrder(t *testing.T) {
	r := NewRecorder()
	a := NewAsync(r, 16)

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		require.NoError(t, a.Publish(ctx, CredentialRevoked(idOf(i))))
	}
	a.Close()

	events := r.Events()
	require.Len(t, events, 10)
	for i, e := range events {
		assert.Equal(t, idOf(i+1), e.CredentialID)
	}

	assert.ErrorIs(t, a.Publish(ctx, CredentialRevoked(11)), ErrPublisherClosed)
	a.Close()
}

func TestAsyncDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0
	blocking := PublisherFunc(func(context.Context, Event) error {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	a := NewAsync(blocking, 1)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Publish(ctx, CredentialRevoked(1)))
	}
	close(release)
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, delivered, 1)
	assert.Less(t, delivered, 5)
}

func idOf(i int) id.CredentialID { return id.CredentialID(i) }
