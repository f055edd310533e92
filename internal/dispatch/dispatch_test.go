// ABOUTME: Tests for dispatcher correlation, timeouts and failure replies
// ABOUTME: Runs client and server over an in-process pipe and checks for leaked goroutines

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// startServer serves s on a fresh pipe and returns the client end plus a stop func
// that waits for Serve to return.
func startServer(t *testing.T, s *Server) (Conn, ServerConn, func()) {
	t.Helper()
	client, server := NewPipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.Serve(ctx, server))
	}()
	return client, server, func() {
		cancel()
		_ = server.Close()
		<-done
	}
}

func explainServer() *Server {
	s := NewServer(nil)
	s.Handle(TypeExplain, func(_ context.Context, env Envelope) (string, error) {
		var p ExplainPayload
		if err := env.Decode(&p); err != nil {
			return "", err
		}
		switch p.Text {
		case "serendipity":
			return "A happy accident.", nil
		case "fail":
			return "", errors.New("bad key")
		case "panic":
			panic("boom")
		}
		return p.Lang + ":" + p.Text, nil
	})
	return s
}

func TestClient_Explain(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn, _, stop := startServer(t, explainServer())
	defer stop()
	c := NewClient(conn)
	defer c.Close()

	answer, err := c.Explain(context.Background(), "serendipity", "en")
	require.NoError(t, err)
	assert.Equal(t, "A happy accident.", answer)
	assert.Zero(t, c.Pending())
}

func TestClient_FailureReplyIsRemoteError(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn, _, stop := startServer(t, explainServer())
	defer stop()
	c := NewClient(conn)
	defer c.Close()

	_, err := c.Explain(context.Background(), "fail", "en")

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "bad key", rerr.Message)

	var terr *TransportError
	assert.False(t, errors.As(err, &terr))
}

func TestServer_UnknownTypeIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn, _, stop := startServer(t, explainServer())
	defer stop()
	c := NewClient(conn)
	defer c.Close()

	_, err := c.QuickAction(context.Background(), "ennui", "synonyms", "en")

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "unknown message type")
}

func TestServer_PanicIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn, _, stop := startServer(t, explainServer())
	defer stop()
	c := NewClient(conn)
	defer c.Close()

	_, err := c.Explain(context.Background(), "panic", "en")

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "internal error")

	// The server keeps serving after a panic
	answer, err := c.Explain(context.Background(), "serendipity", "en")
	require.NoError(t, err)
	assert.Equal(t, "A happy accident.", answer)
}

func TestClient_TimeoutDoesNotHang(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewServer(nil)
	s.Handle(TypeExplain, func(ctx context.Context, _ Envelope) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	conn, _, stop := startServer(t, s)
	defer stop()
	c := NewClient(conn, WithTimeout(50*time.Millisecond))
	defer c.Close()

	start := time.Now()
	_, err := c.Explain(context.Background(), "slow", "en")
	elapsed := time.Since(start)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Zero(t, c.Pending(), "timed out call must not stay pending")
}

func TestClient_CallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewServer(nil)
	s.Handle(TypeExplain, func(ctx context.Context, _ Envelope) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	conn, _, stop := startServer(t, s)
	defer stop()
	c := NewClient(conn)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Explain(ctx, "slow", "en")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestClient_ConnCloseFailsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	s := NewServer(nil)
	s.Handle(TypeExplain, func(ctx context.Context, _ Envelope) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "too late", nil
	})
	conn, server, stop := startServer(t, s)
	defer stop()
	defer close(release)
	c := NewClient(conn)
	defer c.Close()

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			_, err := c.Explain(context.Background(), fmt.Sprintf("t%d", i), "en")
			errs <- err
		}(i)
	}

	require.Eventually(t, func() bool { return c.Pending() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, server.Close())

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			var terr *TransportError
			require.ErrorAs(t, err, &terr)
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("pending call was not failed on close")
		}
	}

	// Calls after close fail immediately
	_, err := c.Explain(context.Background(), "after", "en")
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestClient_ConcurrentCallsAreCorrelated(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewServer(nil)
	s.Handle(TypeExplain, func(_ context.Context, env Envelope) (string, error) {
		var p ExplainPayload
		if err := env.Decode(&p); err != nil {
			return "", err
		}
		// Finish out of arrival order
		time.Sleep(time.Duration(rand.Intn(15)) * time.Millisecond)
		return "answer for " + p.Text, nil
	})
	conn, _, stop := startServer(t, s)
	defer stop()
	c := NewClient(conn)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("term-%02d", i)
			answer, err := c.Explain(context.Background(), text, "en")
			assert.NoError(t, err)
			assert.Equal(t, "answer for "+text, answer)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, c.Pending())
}

func TestClient_LateReplyIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn, server := NewPipe()
	c := NewClient(conn, WithTimeout(30*time.Millisecond))
	defer c.Close()
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := c.Explain(ctx, "slow", "en")
		first <- err
	}()

	env1, err := server.Next(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, <-first, ErrTimeout)

	require.NoError(t, server.Reply(ctx, Reply{ID: env1.ID, OK: true, Answer: "late"}))

	second := make(chan string, 1)
	go func() {
		answer, err := c.Explain(ctx, "fresh", "en")
		assert.NoError(t, err)
		second <- answer
	}()

	env2, err := server.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, env1.ID, env2.ID)
	require.NoError(t, server.Reply(ctx, Reply{ID: env2.ID, OK: true, Answer: "fresh answer"}))

	assert.Equal(t, "fresh answer", <-second)
}

func TestServer_ServeReturnsWhenConnCloses(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, server := NewPipe()
	done := make(chan error, 1)
	go func() { done <- NewServer(nil).Serve(context.Background(), server) }()

	require.NoError(t, server.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after close")
	}
}

func TestServer_Dispatch(t *testing.T) {
	s := explainServer()

	env, err := NewEnvelope("id-1", TypeExplain, ExplainPayload{Text: "serendipity", Lang: "en"})
	require.NoError(t, err)

	r := s.Dispatch(context.Background(), env)
	assert.Equal(t, Reply{ID: "id-1", OK: true, Answer: "A happy accident."}, r)

	r = s.Dispatch(context.Background(), Envelope{ID: "id-2", Type: TypeExplain})
	assert.False(t, r.OK)
	assert.Equal(t, "id-2", r.ID)
	assert.Contains(t, r.Error, "empty payload")
}

func TestEnvelope_WireShape(t *testing.T) {
	env, err := NewEnvelope("abc", TypeQuickAction, QuickActionPayload{Text: "ennui", Action: "examples", Lang: "en"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","type":"QUICK_ACTION","payload":{"text":"ennui","action":"examples","lang":"en"}}`, string(raw))

	raw, err = json.Marshal(Reply{ID: "abc", OK: false, Error: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","ok":false,"error":"nope"}`, string(raw))
}

func TestHTTPConn_RoundTrip(t *testing.T) {
	s := explainServer()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DispatchPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "bad envelope", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(s.Dispatch(r.Context(), env))
	}))
	defer srv.Close()

	c := NewClient(NewHTTPConn(srv.URL+"/", nil))
	defer c.Close()

	answer, err := c.Explain(context.Background(), "serendipity", "en")
	require.NoError(t, err)
	assert.Equal(t, "A happy accident.", answer)

	_, err = c.Explain(context.Background(), "fail", "en")
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "bad key", rerr.Message)
}

func TestHTTPConn_GatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(NewHTTPConn(url, nil), WithTimeout(time.Second))
	defer c.Close()

	_, err := c.Explain(context.Background(), "serendipity", "en")
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestHTTPConn_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad envelope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(NewHTTPConn(srv.URL, nil))
	defer c.Close()

	_, err := c.Explain(context.Background(), "x", "en")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), "400")
}
