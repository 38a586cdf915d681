package tunnel

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/op/go-logging"

	"github.com/wwqgtxx/obfstunnel/frame"
)

var log = logging.MustGetLogger("obfstunnel/tunnel")

const (
	// BufSize matches one record so every read from a plain socket becomes
	// a single obfuscated write.
	BufSize = frame.MaxPayloadSize
)

var (
	BufPool = sync.Pool{New: func() any { return make([]byte, BufSize) }}
)

// Tunnel relays bytes between local and remote in both directions until
// either side ends. A positive lifetime puts an absolute deadline on both
// connections.
func Tunnel(local net.Conn, remote net.Conn, lifetime time.Duration) {
	setKeepAlive(local)
	setKeepAlive(remote)

	if lifetime > 0 {
		deadline := time.Now().Add(lifetime)
		_ = local.SetDeadline(deadline)
		_ = remote.SetDeadline(deadline)
	}

	exit := make(chan struct{}, 1)

	go func() {
		_, err := Copy(remote, local)
		logCopyError("local -> remote", err)
		_ = remote.SetReadDeadline(time.Now())
		exit <- struct{}{}
	}()

	_, err := Copy(local, remote)
	logCopyError("remote -> local", err)
	_ = local.SetReadDeadline(time.Now())

	<-exit
}

func logCopyError(direction string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, os.ErrDeadlineExceeded):
		log.Debugf("%s: %v", direction, err)
	default:
		log.Infof("%s: %v", direction, err)
	}
}

func Copy(dst io.Writer, src io.Reader) (written int64, err error) {
	if srcSyscall, ok := src.(syscall.Conn); ok {
		if srcRaw, sErr := srcSyscall.SyscallConn(); sErr == nil {
			var handed bool
			var n int64
			handed, n, err = syscallCopy(src, srcRaw, dst)
			written += n
			if handed {
				return
			}
		}
	}
	var n int64
	n, err = stdCopy(dst, src)
	written += n
	return
}

func setKeepAlive(c net.Conn) {
	if wrapped, ok := c.(interface{ Raw() net.Conn }); ok {
		c = wrapped.Raw()
	}
	if conn, ok := c.(interface{ SetKeepAlive(keepalive bool) error }); ok {
		_ = conn.SetKeepAlive(true)
	}
	if conn, ok := c.(interface{ SetKeepAlivePeriod(d time.Duration) error }); ok {
		_ = conn.SetKeepAlivePeriod(30 * time.Second)
	}
}
