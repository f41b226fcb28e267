package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	env, err := New(KindChatMessage, ChatMessageData{RoomID: "r1", Content: "hello"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, KindChatMessage, decoded.Kind)

	var data ChatMessageData
	require.NoError(t, decoded.Decode(&data))
	assert.Equal(t, "r1", data.RoomID)
	assert.Equal(t, "hello", data.Content)
}

func TestEnvelope_NilPayloadOmitsData(t *testing.T) {
	env, err := New(KindPing, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"ping"}`, string(raw))
}

func TestEnvelope_DecodeEmptyData(t *testing.T) {
	env := Envelope{Kind: KindPing}
	var data ChatMessageData
	require.NoError(t, env.Decode(&data))
	assert.Empty(t, data.RoomID)
}

func TestEnvelope_WireShape(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"join_room","data":{"roomId":"lobby"}}`), &env))
	assert.Equal(t, "join_room", env.Kind)

	var data JoinRoomData
	require.NoError(t, env.Decode(&data))
	assert.Equal(t, "lobby", data.RoomID)
}

func TestErrorf(t *testing.T) {
	env := Errorf(CodeMissingFields, "roomId is required")
	assert.Equal(t, KindError, env.Kind)

	var data ErrorData
	require.NoError(t, env.Decode(&data))
	assert.Equal(t, CodeMissingFields, data.Code)
	assert.Equal(t, "roomId is required", data.Message)
}

func TestMustNew_PanicsOnUnmarshalable(t *testing.T) {
	assert.Panics(t, func() {
		MustNew("bad", map[string]any{"fn": func() {}})
	})
}

func TestVoiceSignal_PayloadIsOpaque(t *testing.T) {
	payload := json.RawMessage(`{"sdp":"v=0","candidates":[1,2,3]}`)
	env := MustNew(KindVoiceSignal, VoiceSignalData{CallID: "c1", Payload: payload})

	var data VoiceSignalData
	require.NoError(t, env.Decode(&data))
	assert.Equal(t, payload, data.Payload)
}
