// Package mpd mirrors a room's current track into an MPD server.
package mpd

import (
	"fmt"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// Client wraps the gompd client with reconnection logic.
type Client struct {
	mu       sync.Mutex
	client   *mpd.Client
	host     string
	port     int
	password string
}

// NewClient creates a new MPD client wrapper. It does not dial.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

// Addr returns the MPD address.
func (c *Client) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// Connect establishes connection to MPD.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

// connectLocked establishes connection (must hold lock).
func (c *Client) connectLocked() error {
	log.Info().Str("addr", c.Addr()).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if c.password != "" {
		if err := client.Command("password %s", c.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	c.client = client
	log.Info().Msg("Connected to MPD")
	return nil
}

// liveLocked returns a working connection, redialing a dead one (must hold lock).
func (c *Client) liveLocked() (*mpd.Client, error) {
	if c.client == nil {
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
		return c.client, nil
	}

	if err := c.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		c.client.Close()
		c.client = nil
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
	}
	return c.client, nil
}

// Close closes the MPD connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Ping checks if the connection is alive without redialing.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	return c.client.Ping()
}

// Load replaces the MPD playlist with uri and starts playing it.
func (c *Client) Load(uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.liveLocked()
	if err != nil {
		return err
	}
	if err := client.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := client.Add(uri); err != nil {
		return fmt.Errorf("add %s: %w", uri, err)
	}
	if err := client.Play(0); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Pause sets the pause state.
func (c *Client) Pause(pause bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.liveLocked()
	if err != nil {
		return err
	}
	return client.Pause(pause)
}

// Stop stops playback and empties the MPD playlist.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.liveLocked()
	if err != nil {
		return err
	}
	if err := client.Stop(); err != nil {
		return err
	}
	return client.Clear()
}
