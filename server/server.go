package server

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
	"github.com/wwqgtxx/obfstunnel/tunnel"
)

var log = logging.MustGetLogger("obfstunnel/server")

const DialTimeout = 10 * time.Second

// Server accepts obfuscated connections and forwards each one to the target.
type Server struct {
	bindAddress   string
	targetAddress string
	secret        [obfs.SecretSize]byte
	lifetime      time.Duration
	dialer        net.Dialer

	ln     net.Listener
	closed atomic.Bool
}

var _ common.Service = (*Server)(nil)

func New(serverConfig config.ServerConfig, lifetime time.Duration) (*Server, error) {
	secret, err := serverConfig.SharedSecret()
	if err != nil {
		return nil, err
	}
	return &Server{
		bindAddress:   serverConfig.BindAddress,
		targetAddress: serverConfig.TargetAddress,
		secret:        secret,
		lifetime:      lifetime,
	}, nil
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return errors.Wrapf(err, "server listen %s", s.bindAddress)
	}
	s.ln = ln
	log.Infof("New Server Listening on: %s --> %s", s.Addr(), s.targetAddress)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if s.closed.Load() {
					return
				}
				log.Warning(err)
				<-time.After(3 * time.Second)
				continue
			}
			go s.Handle(conn)
		}
	}()
	return nil
}

func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.bindAddress
}

func (s *Server) Close() error {
	if s.closed.Swap(true) || s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// Handle serves one accepted connection in the server role.
func (s *Server) Handle(raw net.Conn) {
	conn := frame.New(obfs.New(raw, s.secret, true))
	defer conn.Close()
	log.Infof("Incoming --> %s --> %s", raw.RemoteAddr(), s.targetAddress)

	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()
	target, err := s.dialer.DialContext(ctx, "tcp", s.targetAddress)
	if err != nil {
		log.Warningf("dial target %s: %v", s.targetAddress, err)
		return
	}
	defer target.Close()
	tunnel.Tunnel(target, conn, s.lifetime)
}
