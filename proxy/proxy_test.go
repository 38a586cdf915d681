package proxy

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type connectRequest struct {
	host string
	auth string
}

// fakeHTTPProxy answers one CONNECT with status and then echoes.
func fakeHTTPProxy(t *testing.T, status string) (string, <-chan connectRequest) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	requests := make(chan connectRequest, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		requests <- connectRequest{host: req.Host, auth: req.Header.Get("Proxy-Authorization")}
		_, _ = io.WriteString(conn, "HTTP/1.1 "+status+"\r\n\r\n")
		_, _ = io.Copy(conn, br)
	}()
	return ln.Addr().String(), requests
}

func TestFromProxyString_HTTP(t *testing.T) {
	addr, requests := fakeHTTPProxy(t, "200 Connection established")

	dialer, proxyStr := FromProxyString("http://user:pass@" + addr)
	assert.Equal(t, "http://"+addr, proxyStr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", "target.example:8443")
	require.NoError(t, err)
	defer conn.Close()

	req := <-requests
	assert.Equal(t, "target.example:8443", req.host)
	assert.Equal(t, "Basic dXNlcjpwYXNz", req.auth)

	_, err = conn.Write([]byte("through"))
	require.NoError(t, err)
	buf := make([]byte, 7)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "through", string(buf))
}

func TestFromProxyString_HTTPRefused(t *testing.T) {
	addr, _ := fakeHTTPProxy(t, "403 Forbidden")

	dialer, _ := FromProxyString("http://" + addr)
	_, err := dialer.DialContext(context.Background(), "tcp", "target.example:8443")
	require.Error(t, err)
	assert.Equal(t, "Forbidden", err.Error())
}

func TestFromProxyString_Direct(t *testing.T) {
	dialer, proxyStr := FromProxyString("")
	assert.Empty(t, proxyStr)
	_, ok := dialer.(*net.Dialer)
	assert.True(t, ok)
}

func TestFromProxyString_UnknownScheme(t *testing.T) {
	dialer, proxyStr := FromProxyString("gopher://127.0.0.1:70")
	assert.Equal(t, "gopher://127.0.0.1:70", proxyStr)
	_, ok := dialer.(*net.Dialer)
	assert.True(t, ok)
}

func TestHostPortNoPort(t *testing.T) {
	u := mustParse(t, "http://proxy.example")
	hostPort, hostNoPort := hostPortNoPort(u)
	assert.Equal(t, "proxy.example:80", hostPort)
	assert.Equal(t, "proxy.example", hostNoPort)

	u = mustParse(t, "http://[::1]:3128")
	hostPort, hostNoPort = hostPortNoPort(u)
	assert.Equal(t, "[::1]:3128", hostPort)
	assert.Equal(t, "[::1]", hostNoPort)
}

func mustParse(t *testing.T, s string) *url.URL {
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}
