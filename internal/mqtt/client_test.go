package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/errors"
)

func testClient() *Client {
	return NewClient(&conf.Settings{
		MQTT: conf.MQTTSettings{
			Enabled:  true,
			Broker:   "tcp://127.0.0.1:1883",
			Topic:    "dronewatch/detections",
			ClientID: "dronewatch-test",
		},
	})
}

func TestPublish_RequiresConnection(t *testing.T) {
	c := testClient()
	err := c.Publish(context.Background(), "dronewatch/detections", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryMQTTPublish))
}

func TestConnect_CooldownRejectsRapidRetries(t *testing.T) {
	c := testClient()
	c.lastConnAttempt = time.Now()

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
	assert.True(t, errors.HasCategory(err, errors.CategoryMQTTConnection))
}

func TestConnect_InvalidBrokerURL(t *testing.T) {
	c := testClient()
	c.settings.Broker = "://not-a-url"

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryMQTTConnection))
}

func TestIsConnected_FalseBeforeConnect(t *testing.T) {
	assert.False(t, testClient().IsConnected())
}

func TestDisconnect_SafeWithoutConnection(t *testing.T) {
	c := testClient()
	c.Disconnect()
	assert.False(t, c.IsConnected())
}
