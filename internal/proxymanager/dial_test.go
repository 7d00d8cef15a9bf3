package proxymanager

import (
	"context"
	"net"
	"testing"

	"github.com/bentham/bentham/internal/manifest"
)

func TestEndpoint_FormatsHostPort(t *testing.T) {
	cfg := manifest.ProxyConfig{Host: "proxy.example.com", Port: 1080}
	ep := Endpoint(cfg)
	if ep.AddrString() != "proxy.example.com" || ep.Port != 1080 {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestValidateCredentials_RejectsNonSocksProtocol(t *testing.T) {
	cfg := manifest.ProxyConfig{Protocol: manifest.ProtocolHTTP, Host: "proxy.example.com", Port: 8080}
	if err := ValidateCredentials(context.Background(), cfg, "example.com:443"); err == nil {
		t.Fatal("expected an error for non-SOCKS protocol")
	}
}

func TestValidateCredentials_DialFailureIsWrapped(t *testing.T) {
	// A loopback port that was just bound and closed refuses immediately,
	// giving a deterministic dial error without reaching the network.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	l.Close() // nothing listening now, so the dial to it will be refused

	cfg := manifest.ProxyConfig{Protocol: manifest.ProtocolSOCKS5, Host: addr.IP.String(), Port: addr.Port}
	if err := ValidateCredentials(context.Background(), cfg, "example.com:443"); err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
}
