package client

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"github.com/wwqgtxx/obfstunnel/common"
	"github.com/wwqgtxx/obfstunnel/config"
	"github.com/wwqgtxx/obfstunnel/frame"
	"github.com/wwqgtxx/obfstunnel/obfs"
	"github.com/wwqgtxx/obfstunnel/proxy"
	"github.com/wwqgtxx/obfstunnel/tunnel"
)

var log = logging.MustGetLogger("obfstunnel/client")

const DialTimeout = 10 * time.Second

// Client accepts plain TCP connections and forwards each one to the server
// over its own obfuscated connection.
type Client struct {
	bindAddress   string
	serverAddress string
	secret        [obfs.SecretSize]byte
	dialer        proxy.ContextDialer
	proxy         string
	lifetime      time.Duration

	ln     net.Listener
	closed atomic.Bool
}

var _ common.Service = (*Client)(nil)

func New(clientConfig config.ClientConfig, lifetime time.Duration) (*Client, error) {
	secret, err := clientConfig.SharedSecret()
	if err != nil {
		return nil, err
	}
	dialer, proxyStr := proxy.FromProxyString(clientConfig.Proxy)
	return &Client{
		bindAddress:   clientConfig.BindAddress,
		serverAddress: clientConfig.ServerAddress,
		secret:        secret,
		dialer:        dialer,
		proxy:         proxyStr,
		lifetime:      lifetime,
	}, nil
}

func (c *Client) Start() error {
	ln, err := net.Listen("tcp", c.bindAddress)
	if err != nil {
		return errors.Wrapf(err, "client listen %s", c.bindAddress)
	}
	c.ln = ln
	log.Infof("New Client Listening on: %s --> %s %s", c.Addr(), c.serverAddress, c.proxy)
	go func() {
		for {
			tcp, err := ln.Accept()
			if err != nil {
				if c.closed.Load() {
					return
				}
				log.Warning(err)
				<-time.After(3 * time.Second)
				continue
			}
			go c.Handle(tcp)
		}
	}()
	return nil
}

func (c *Client) Addr() string {
	if c.ln != nil {
		return c.ln.Addr().String()
	}
	return c.bindAddress
}

func (c *Client) Close() error {
	if c.closed.Swap(true) || c.ln == nil {
		return nil
	}
	return c.ln.Close()
}

func (c *Client) Handle(tcp net.Conn) {
	defer tcp.Close()
	log.Infof("Incoming --> %s --> %s %s", tcp.RemoteAddr(), c.serverAddress, c.proxy)

	conn, err := c.Dial(context.Background())
	if err != nil {
		log.Warning(err)
		return
	}
	defer conn.Close()
	tunnel.Tunnel(tcp, conn, c.lifetime)
}

// Dial opens an obfuscated connection to the server in the client role.
func (c *Client) Dial(ctx context.Context) (*frame.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	raw, err := c.dialer.DialContext(ctx, "tcp", c.serverAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "dial server %s", c.serverAddress)
	}
	return frame.New(obfs.New(raw, c.secret, false)), nil
}
