//go:build unix

package tunnel

import (
	"io"
	"syscall"
)

// syscallCopy reads straight from the source descriptor so that a plain
// socket feeding an obfuscated one skips the net.Conn read path.
func syscallCopy(src io.Reader, srcRaw syscall.RawConn, dst io.Writer) (handed bool, written int64, err error) {
	log.Debugf("syscallCopy %T %T", src, dst)
	handed = true
	buf := BufPool.Get().([]byte)
	defer BufPool.Put(buf)

	for {
		var rn int
		var readErr error
		err = srcRaw.Read(func(fd uintptr) (done bool) {
			rn, readErr = syscall.Read(int(fd), buf)
			switch {
			case readErr == syscall.EAGAIN || readErr == syscall.EWOULDBLOCK || readErr == syscall.EINTR:
				return false
			case rn == 0 && readErr == nil:
				readErr = io.EOF
			}
			return true
		})
		if err == nil {
			err = readErr
		}
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			return
		}

		var wn int
		wn, err = dst.Write(buf[:rn])
		written += int64(wn)
		if err != nil {
			return
		}
		if rn != wn {
			err = io.ErrShortWrite
			return
		}
	}
}
