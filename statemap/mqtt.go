package statemap

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTClient owns the broker connection used by the snapshot publisher.
// The dashboard only publishes; it never subscribes.
type MQTTClient struct {
	client      mqtt.Client
	broker      string
	isConnected bool
	mu          sync.RWMutex
	log         *zap.Logger
}

// NewMQTTClient builds a client for cfg. It returns nil, nil when no broker
// is configured, which disables publishing.
func NewMQTTClient(cfg MQTTConfig) (*MQTTClient, error) {
	if cfg.Broker == "" {
		zap.L().Info("MQTT disabled: no broker configured", zap.String("component", "mqtt"))
		return nil, nil
	}

	c := &MQTTClient{
		broker: cfg.Broker,
		log:    zap.L().With(zap.String("component", "mqtt"), zap.String("broker", cfg.Broker)),
	}
	c.client = mqtt.NewClient(c.clientOptions(cfg))
	return c, nil
}

func (c *MQTTClient) clientOptions(cfg MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "stateboard"
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)
	return opts
}

// Start connects in the background, retrying with exponential backoff until
// it succeeds or ctx is cancelled.
func (c *MQTTClient) Start(ctx context.Context) {
	go c.connectWithRetry(ctx)
}

func (c *MQTTClient) connectWithRetry(ctx context.Context) {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.log.Info("connecting to MQTT broker")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.log.Info("connected to MQTT broker")
				c.setConnected(true)
				return
			}
			c.log.Warn("MQTT connection failed", zap.Error(token.Error()))
		} else {
			c.log.Warn("MQTT connection timeout")
		}

		c.log.Info("retrying MQTT connection", zap.Duration("delay", retryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

func (c *MQTTClient) onConnect(mqtt.Client) {
	c.log.Info("MQTT connected")
	c.setConnected(true)
}

// Auto-reconnect is enabled, so a lost connection is usually transient.
func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("MQTT connection interrupted, auto-reconnect will retry", zap.Error(err))
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.log.Debug("MQTT reconnecting")
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.log.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// Client returns the underlying paho client for publishing.
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock wraps an existing mqtt.Client, for tests.
func newMQTTClientWithMock(client mqtt.Client) *MQTTClient {
	return &MQTTClient{client: client, log: zap.NewNop()}
}
