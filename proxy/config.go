package proxy

import (
	"net"
	"net/url"

	"github.com/op/go-logging"
	"golang.org/x/net/proxy"
)

var log = logging.MustGetLogger("obfstunnel/proxy")

// FromProxyString returns a dialer for the given proxy URL (empty means
// direct, still honoring ALL_PROXY) and the URL with credentials removed.
func FromProxyString(proxyString string) (ContextDialer, string) {
	proxyUrl, proxyStr := parseProxy(proxyString)
	dialer := getDialer(proxyUrl)
	return dialer, proxyStr
}

func parseProxy(proxyString string) (proxyUrl *url.URL, proxyStr string) {
	if len(proxyString) > 0 {
		u, err := url.Parse(proxyString)
		if err != nil {
			log.Warningf("ignoring proxy %q: %v", proxyString, err)
			return
		}
		proxyUrl = u

		ru := *u
		ru.User = nil
		proxyStr = ru.String()
	}
	return
}

func getDialer(proxyUrl *url.URL) ContextDialer {
	tcpDialer := &net.Dialer{}

	proxyDialer := proxy.FromEnvironmentUsing(tcpDialer)
	if proxyUrl != nil {
		dialer, err := proxy.FromURL(proxyUrl, tcpDialer)
		if err != nil {
			log.Warningf("ignoring proxy %s: %v", proxyUrl.Redacted(), err)
		} else {
			proxyDialer = dialer
		}
	}
	if proxyDialer != proxy.Dialer(tcpDialer) {
		return NewContextDialer(proxyDialer)
	} else {
		return tcpDialer
	}
}
