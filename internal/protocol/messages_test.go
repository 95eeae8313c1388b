package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessage_HelloWireFormat(t *testing.T) {
	msg := NewClientHello(HelloRequest{Port: 0})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Hello":[0,null,null]}`, string(raw))

	var decoded ClientMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Hello)
	assert.Equal(t, uint16(0), decoded.Hello.Port)
	assert.Nil(t, decoded.Hello.Identity)
	assert.Nil(t, decoded.Hello.StaticPort)
}

func TestClientMessage_HelloWithIdentityAndStaticPort(t *testing.T) {
	port := uint16(443)
	msg := NewClientHello(HelloRequest{
		Port:       0,
		Identity:   &Identity{Username: "ada", Token: "tok"},
		StaticPort: &port,
	})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded ClientMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Hello)
	require.NotNil(t, decoded.Hello.Identity)
	assert.Equal(t, "ada", decoded.Hello.Identity.Username)
	require.NotNil(t, decoded.Hello.StaticPort)
	assert.Equal(t, uint16(443), *decoded.Hello.StaticPort)
}

func TestClientMessage_AcceptRoundTrip(t *testing.T) {
	id := uuid.New()
	msg := NewAccept(id)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded ClientMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Accept)
	assert.Equal(t, id, *decoded.Accept)
}

func TestServerMessage_HeartbeatIsBareString(t *testing.T) {
	raw, err := json.Marshal(NewHeartbeat())
	require.NoError(t, err)
	assert.Equal(t, `"Heartbeat"`, string(raw))

	var decoded ServerMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Heartbeat)
}

func TestServerMessage_HelloRoundTrip(t *testing.T) {
	msg := NewServerHello("0.0.0.0", 20005)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Hello":["0.0.0.0",20005]}`, string(raw))

	var decoded ServerMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Hello)
	assert.Equal(t, "0.0.0.0", decoded.Hello.Addr)
	assert.Equal(t, uint16(20005), decoded.Hello.Port)
}

func TestServerMessage_ErrorRoundTrip(t *testing.T) {
	msg := NewError("something went wrong")

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded ServerMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "something went wrong", *decoded.Error)
}

func TestServerMessage_ConnectionRoundTrip(t *testing.T) {
	id := uuid.New()
	raw, err := json.Marshal(NewConnection(id))
	require.NoError(t, err)

	var decoded ServerMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NotNil(t, decoded.Connection)
	assert.Equal(t, id, *decoded.Connection)
}

func TestClientMessage_UnknownVariantRejected(t *testing.T) {
	var decoded ClientMessage
	err := json.Unmarshal([]byte(`{"Bogus":1}`), &decoded)
	assert.Error(t, err)
}

func TestClientMessage_MultipleVariantsRejected(t *testing.T) {
	var decoded ClientMessage
	err := json.Unmarshal([]byte(`{"Authenticate":"x","Accept":"`+uuid.New().String()+`"}`), &decoded)
	assert.Error(t, err)
}
