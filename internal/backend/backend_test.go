// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-overlay/internal/config"
)

func sseServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(config.BackendConfig{URL: url, APIKey: "secret-key"}, false)
}

func TestParseEvent(t *testing.T) {
	cases := []struct {
		data string
		want EventType
	}{
		{`{"message":"thinking"}`, EventMessage},
		{`{"step_number":2,"reasoning":"check"}`, EventStep},
		{`{"token":"Hel"}`, EventToken},
		{`{"final_response":"","steps":[]}`, EventFinal},
		{`{"error":"boom"}`, EventError},
	}
	for _, tc := range cases {
		ev, err := ParseEvent([]byte(tc.data))
		require.NoError(t, err, tc.data)
		require.Equal(t, tc.want, ev.Type, tc.data)
	}

	_, err := ParseEvent([]byte(`{"other":1}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
	_, err = ParseEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestEventWireRoundTrip(t *testing.T) {
	data, err := json.Marshal(FinalEvent(Final{Response: "done", Facts: []string{"a"}, ExecutionTime: 1.5}))
	require.NoError(t, err)
	ev, err := ParseEvent(data)
	require.NoError(t, err)
	require.Equal(t, "done", ev.Final.Response)
	require.Equal(t, []string{"a"}, ev.Final.Facts)
}

func TestClientStreamsEvents(t *testing.T) {
	body := strings.Join([]string{
		`data: {"message":"thinking"}`, ``,
		`data: {"step_number":1,"reasoning":"look"}`, ``,
		`: keepalive`, ``,
		`data: garbage`, ``,
		`data: {"token":"Hi"}`, ``,
		`data: {"final_response":"Hi","facts_extracted":["f"],"execution_time":0.2}`, ``,
		`data: {"token":"ignored"}`, ``,
	}, "\n")

	var gotReq Request
	srv := sseServer(t, http.StatusOK, body, func(r *http.Request) {
		require.Equal(t, ChatPath, r.URL.Path)
		require.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
	})

	var events []Event
	err := newTestClient(srv.URL).Send(context.Background(), Request{Message: "hello"}, func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Equal(t, "hello", gotReq.Message)
	require.Len(t, events, 4)
	require.Equal(t, EventFinal, events[3].Type)
	require.Equal(t, []string{"f"}, events[3].Final.Facts)
}

func TestClientErrorEvent(t *testing.T) {
	srv := sseServer(t, http.StatusOK, "data: {\"error\":\"model overloaded\"}\n\n", nil)
	err := newTestClient(srv.URL).Send(context.Background(), Request{Message: "x"}, func(Event) {})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, KindServer, Classify(err))
}

func TestClientStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   Kind
	}{
		{http.StatusUnauthorized, `{"error":{"message":"bad token"}}`, KindAuth},
		{http.StatusTooManyRequests, ``, KindRateLimit},
		{http.StatusBadGateway, `upstream`, KindServer},
		{http.StatusGatewayTimeout, ``, KindTimeout},
		{http.StatusBadRequest, ``, KindUnknown},
	}
	for _, tc := range cases {
		srv := sseServer(t, tc.status, tc.body, nil)
		err := newTestClient(srv.URL).Send(context.Background(), Request{Message: "x"}, func(Event) {})
		require.Error(t, err)
		require.Equal(t, tc.kind, Classify(err), "status %d", tc.status)
	}
}

func TestClientNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	err = newTestClient("http://"+addr).Send(context.Background(), Request{Message: "x"}, func(Event) {})
	require.Error(t, err)
	require.Equal(t, KindNetwork, Classify(err))
}

func TestClientCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"message\":\"a\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	err := newTestClient(srv.URL).Send(ctx, Request{Message: "x"}, func(Event) { cancel() })
	require.True(t, IsAbort(err), "got %v", err)
}

func TestContinueUnsupported(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	err := c.Continue(context.Background(), ContinueRequest{Message: "x"}, func(Event) {})
	require.ErrorIs(t, err, ErrContinueUnsupported)
	require.False(t, c.SupportsContinue())
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.BackendConfig{}, false)
	require.ErrorIs(t, c.Send(context.Background(), Request{}, func(Event) {}), ErrNotConfigured)
}

func TestClassify(t *testing.T) {
	require.Equal(t, KindTimeout, Classify(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	require.Equal(t, KindUnknown, Classify(errors.New("odd")))
	require.Equal(t, KindUnknown, Classify(nil))
	require.True(t, IsAbort(fmt.Errorf("stop: %w", context.Canceled)))

	seen := map[string]bool{}
	for k := KindUnknown; k <= KindServer; k++ {
		require.False(t, seen[k.Message()], "duplicate message for %s", k)
		seen[k.Message()] = true
	}
}

func TestSSEReaderTrailingEvent(t *testing.T) {
	r := NewSSEReader(strings.NewReader("event: x\ndata: {\"token\":\"a\"}"))
	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "x", typ)
	require.Equal(t, `{"token":"a"}`, string(data))
	_, _, err = r.ReadEvent()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEReaderLineLimit(t *testing.T) {
	fits := "data: " + strings.Repeat("a", MaxChunkSize-len("data: ")-1) + "\n\n"
	r := NewSSEReader(strings.NewReader(fits))
	_, data, err := r.ReadEvent()
	require.NoError(t, err)
	require.Len(t, data, MaxChunkSize-len("data: ")-1)

	long := "data: " + strings.Repeat("a", MaxChunkSize) + "\n\n"
	r = NewSSEReader(strings.NewReader(long))
	_, _, err = r.ReadEvent()
	require.ErrorIs(t, err, ErrLineTooLong)
}

func TestScriptedEcho(t *testing.T) {
	s := &Scripted{}
	var final *Final
	err := s.Send(context.Background(), Request{Message: "hello there"}, func(ev Event) {
		if ev.Type == EventFinal {
			final = ev.Final
		}
	})
	require.NoError(t, err)
	require.NotNil(t, final)
	require.Equal(t, "You said: hello there", final.Response)
	require.Len(t, s.Requests(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Delay = time.Millisecond
	require.ErrorIs(t, s.Send(ctx, Request{Message: "x"}, func(Event) {}), context.Canceled)
}
