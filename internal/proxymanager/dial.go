package proxymanager

import (
	"context"
	"fmt"
	"net"
	"time"

	M "github.com/sagernet/sing/common/metadata"
	xproxy "golang.org/x/net/proxy"

	"github.com/bentham/bentham/internal/bentherr"
	"github.com/bentham/bentham/internal/manifest"
)

// Endpoint returns cfg's dial address as a sing Socksaddr, the value type
// adapters use elsewhere in this codebase to address an outbound leg.
func Endpoint(cfg manifest.ProxyConfig) M.Socksaddr {
	return M.ParseSocksaddr(net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)))
}

// ValidateCredentials dials cfg and confirms the proxy accepts a TCP
// connection through it, per spec §4.E's provider credential check. Only
// SOCKS4/SOCKS5 configs are dialed here, and both are dialed with the SOCKS5
// handshake; HTTP/HTTPS proxies are validated
// by the provider implementation itself (a CONNECT round-trip needs a
// target URL the manager does not have).
func ValidateCredentials(ctx context.Context, cfg manifest.ProxyConfig, probeTarget string) error {
	switch cfg.Protocol {
	case manifest.ProtocolSOCKS4, manifest.ProtocolSOCKS5:
	default:
		return bentherr.New(bentherr.InvalidRequest, fmt.Sprintf("proxymanager: ValidateCredentials does not dial protocol %s", cfg.Protocol))
	}

	var auth *xproxy.Auth
	if cfg.Username != "" {
		auth = &xproxy.Auth{User: cfg.Username, Password: cfg.Password}
	}

	dialer, err := xproxy.SOCKS5("tcp", net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)), auth, xproxy.Direct)
	if err != nil {
		return bentherr.Wrap(bentherr.ProxyError, "proxymanager: build SOCKS dialer", err)
	}

	type contextDialer interface {
		DialContext(ctx context.Context, network, addr string) (net.Conn, error)
	}

	var conn net.Conn
	if cd, ok := dialer.(contextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", probeTarget)
	} else {
		conn, err = dialer.Dial("tcp", probeTarget)
	}
	if err != nil {
		return bentherr.Wrap(bentherr.ProxyError, "proxymanager: credential validation dial failed", err)
	}
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn.Close()
}
