package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

type fakeChat struct {
	reply string
	err   error
	got   []Message
}

func (f *fakeChat) ChatJSON(_ context.Context, msgs []Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

func quiet() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		want   domain.CommandType
		kind   domain.ProgressKind
		meters float64
	}{
		{"remaining", `{"command":"progress","remaining_m":1000,"elapsed_m":null}`, domain.CommandProgress, domain.ProgressRemaining, 1000},
		{"elapsed", `{"command":"progress","elapsed_m":650}`, domain.CommandProgress, domain.ProgressElapsed, 650},
		{"fenced", "```json\n{\"command\":\"status\"}\n```", domain.CommandStatus, 0, 0},
		{"mute", `{"command":"Mute"}`, domain.CommandMute, 0, 0},
		{"both distances", `{"command":"progress","remaining_m":10,"elapsed_m":20}`, domain.CommandUnknown, 0, 0},
		{"no distance", `{"command":"progress"}`, domain.CommandUnknown, 0, 0},
		{"negative", `{"command":"progress","remaining_m":-5}`, domain.CommandUnknown, 0, 0},
		{"not json", `sure! you're halfway`, domain.CommandUnknown, 0, 0},
		{"unknown name", `{"command":"dance"}`, domain.CommandUnknown, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeChat{reply: tt.reply}, quiet())
			cmd, err := c.Classify(context.Background(), "halfway there I think", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Type)
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.meters, cmd.Meters)
			assert.Equal(t, "halfway there I think", cmd.Payload)
		})
	}
}

func TestClassifyIncludesRouteContext(t *testing.T) {
	chat := &fakeChat{reply: `{"command":"progress","remaining_m":1000}`}
	sess := &domain.Session{
		Target:   domain.Target{Distance: 2000},
		Pacing:   domain.PacingState{Remaining: 1400},
		Accepted: 3,
	}

	_, err := NewClassifier(chat, quiet()).Classify(context.Background(), "halfway", sess)
	require.NoError(t, err)

	require.Len(t, chat.got, 4)
	assert.Equal(t, RoleSystem, chat.got[0].Role)
	assert.Contains(t, chat.got[1].Content, "Route length: 2000 m.")
	assert.Contains(t, chat.got[1].Content, "remaining distance: 1400 m.")
	assert.Equal(t, "halfway", chat.got[3].Content)
}

func TestClassifyTransportError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewClassifier(&fakeChat{err: boom}, quiet()).Classify(context.Background(), "x", nil)
	assert.ErrorIs(t, err, boom)
}

func TestClientChatJSON(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"command\":\"help\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", quiet(), WithModel("small"))
	reply, err := c.ChatJSON(context.Background(), []Message{{Role: RoleUser, Content: "what can I say"}})
	require.NoError(t, err)

	assert.Equal(t, `{"command":"help"}`, reply)
	assert.Equal(t, "small", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusUnauthorized, `{"error":"bad key"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", quiet()).ChatJSON(context.Background(), nil)
			assert.Error(t, err)
		})
	}
}
