// Package mqtt provides a receive-only MQTT client for consuming the raw
// output of the random number generator under test. Devices publish their
// byte stream to one or more broker topics; the client decodes payloads and
// feeds them to the bitstream assembler. It wraps the Eclipse Paho library,
// handles automatic reconnection and resubscription, and supports optional
// TLS transport.
package mqtt

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"entropy-sts-engine/internal/clock"
	"entropy-sts-engine/internal/config"
	"entropy-sts-engine/internal/metrics"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives decoded MQTT messages. Implementations should return
// promptly; the broker callback runs them inline.
type Handler interface {
	OnMessage(topic string, payload []byte)
}

// Client subscribes to the configured topics on connect and automatically
// resubscribes after reconnections.
type Client struct {
	config          config.MQTT
	pahoClient      paho.Client
	handler         Handler
	firstSubOnce    sync.Once
	firstSubResult  chan error
	connectAttempts int32
	clockSource     clock.Clock
}

// NewClient validates the configuration and constructs an MQTT client. The
// broker connection is not opened until Connect is called. When ClientID is
// empty a random identifier is generated.
func NewClient(cfg config.MQTT, handler Handler) (*Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt: BrokerURL required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("mqtt: at least one Topic required")
	}
	if cfg.ClientID == "" {
		generated, err := generateClientID()
		if err != nil {
			return nil, fmt.Errorf("mqtt: generate client id: %w", err)
		}
		cfg.ClientID = generated
	}
	if cfg.QoS > 1 {
		cfg.QoS = 1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	client := &Client{
		config:         cfg,
		handler:        handler,
		firstSubResult: make(chan error, 1),
		clockSource:    clock.RealClock{},
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetKeepAlive(20 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetDefaultPublishHandler(func(_ paho.Client, msg paho.Message) {
			if handler != nil {
				handler.OnMessage(msg.Topic(), msg.Payload())
			}
		}).
		SetOnConnectHandler(func(pc paho.Client) {
			client.handleConnect(pc)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			metrics.SetMQTTConnected(false)
			if err != nil {
				log.Printf("mqtt: connection lost: %v", err)
			} else {
				log.Printf("mqtt: connection lost (reason unknown)")
			}
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	if isTLSBroker(cfg.BrokerURL) {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("mqtt: TLS configuration failed: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	client.pahoClient = paho.NewClient(opts)
	return client, nil
}

// Connect opens the broker connection and blocks until the initial topic
// subscription completes or the configured timeout elapses.
func (c *Client) Connect() error {
	if c.pahoClient == nil {
		return errors.New("mqtt: client not initialized")
	}

	token := c.pahoClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		metrics.SetMQTTConnected(false)
		return errors.New("mqtt: connect timeout")
	}
	if err := token.Error(); err != nil {
		metrics.SetMQTTConnected(false)
		return fmt.Errorf("mqtt: connect failed: %w", err)
	}

	select {
	case err, ok := <-c.firstSubResult:
		if !ok || err == nil {
			return nil
		}
		metrics.SetMQTTConnected(false)
		return err
	case <-c.clockSource.After(c.config.ConnectTimeout):
		metrics.SetMQTTConnected(false)
		return errors.New("mqtt: initial subscribe timeout")
	}
}

// Close disconnects from the broker with a 250 ms quiesce period.
func (c *Client) Close() {
	metrics.SetMQTTConnected(false)
	if c.pahoClient != nil && c.pahoClient.IsConnectionOpen() {
		c.pahoClient.Disconnect(250) // ms
	}
}

// handleConnect resubscribes to all configured topics on every connection
// (including reconnections) and signals completion of the initial
// subscription.
func (c *Client) handleConnect(pahoClient paho.Client) {
	if err := c.subscribe(pahoClient); err != nil {
		metrics.SetMQTTConnected(false)
		log.Printf("mqtt: subscribe failed: %v", err)
		c.completeFirstSubscription(fmt.Errorf("mqtt: subscribe failed: %w", err))
		return
	}

	if atomic.AddInt32(&c.connectAttempts, 1) > 1 {
		metrics.RecordMQTTReconnect()
		log.Printf("mqtt: re-subscribed to %v (QoS=%d)", c.config.Topics, c.config.QoS)
	} else {
		log.Printf("mqtt: subscribed to %v (QoS=%d)", c.config.Topics, c.config.QoS)
	}

	metrics.SetMQTTConnected(true)
	c.completeFirstSubscription(nil)
}

// subscribe issues one subscription per configured topic and blocks until
// each is acknowledged or times out.
func (c *Client) subscribe(pahoClient paho.Client) error {
	for _, topic := range c.config.Topics {
		token := pahoClient.Subscribe(topic, c.config.QoS, nil)
		if !token.WaitTimeout(c.config.ConnectTimeout) {
			return fmt.Errorf("subscribe to %s: timeout", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
	}
	return nil
}

// completeFirstSubscription delivers the result of the first subscription
// attempt exactly once, unblocking the Connect caller.
func (c *Client) completeFirstSubscription(err error) {
	c.firstSubOnce.Do(func() {
		c.firstSubResult <- err
		close(c.firstSubResult)
	})
}

// isTLSBroker reports whether the broker URL scheme implies a TLS transport.
func isTLSBroker(brokerURL string) bool {
	lower := strings.ToLower(brokerURL)
	return strings.HasPrefix(lower, "ssl://") ||
		strings.HasPrefix(lower, "tls://") ||
		strings.HasPrefix(lower, "mqtts://") ||
		strings.HasPrefix(lower, "tcps://")
}

// newTLSConfig builds a tls.Config using either the custom CA certificate
// from the configuration or the system certificate pool.
func newTLSConfig(cfg config.MQTT) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
		log.Printf("mqtt: using custom CA certificate from %s", cfg.TLSCAFile)
	} else {
		systemCAs, err := x509.SystemCertPool()
		if err != nil {
			log.Printf("mqtt: warning, failed to load system CA pool: %v, using empty pool", err)
			systemCAs = x509.NewCertPool()
		}
		tlsConfig.RootCAs = systemCAs
	}

	return tlsConfig, nil
}

// generateClientID produces a cryptographically random client identifier in
// the form "sts-rx-<hex>".
func generateClientID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return "sts-rx-" + hex.EncodeToString(raw[:]), nil
}
