package fingerprint

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names the TLS client hello presented to provider APIs.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// ParseProfile validates a profile name; empty selects ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return ProfileGo, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return p, nil
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

// Transport returns an http.RoundTripper presenting the client hello of p.
// ProfileGo uses the standard library TLS stack. proxyFunc, if non-nil,
// becomes the transport's Proxy.
func Transport(p Profile, proxyFunc func(*http.Request) (*url.URL, error)) (http.RoundTripper, error) {
	return newTransport(p, proxyFunc, nil)
}

// newTransport verifies servers against roots, or the system pool when nil.
func newTransport(p Profile, proxyFunc func(*http.Request) (*url.URL, error), roots *x509.CertPool) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyFunc != nil {
		transport.Proxy = proxyFunc
	}
	// every adapter hits a handful of hosts repeatedly
	transport.MaxIdleConnsPerHost = 8

	if p == ProfileGo || p == "" {
		if roots != nil {
			transport.TLSClientConfig = &tls.Config{RootCAs: roots}
		}
		return transport, nil
	}

	var id utls.ClientHelloID
	switch p {
	case ProfileChrome:
		id = utls.HelloChrome_Auto
	case ProfileFirefox:
		id = utls.HelloFirefox_Auto
	case ProfileSafari:
		id = utls.HelloIOS_Auto
	case ProfileRandom:
		// randomized hellos cannot be rewritten, so this one never offers h2
		id = utls.HelloRandomizedNoALPN
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}
	if _, err := helloSpec(id); err != nil {
		return nil, fmt.Errorf("fingerprint: %s: %w", p, err)
	}

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		cfg := &utls.Config{ServerName: host, RootCAs: roots}
		var uConn *utls.UConn
		if id == utls.HelloRandomizedNoALPN {
			uConn = utls.UClient(tcpConn, cfg, id)
		} else {
			spec, _ := helloSpec(id)
			uConn = utls.UClient(tcpConn, cfg, utls.HelloCustom)
			if err := uConn.ApplyPreset(spec); err != nil {
				_ = tcpConn.Close()
				return nil, fmt.Errorf("fingerprint: apply %s preset: %w", p, err)
			}
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake with %s failed: %w", host, err)
		}
		return uConn, nil
	}

	return transport, nil
}

// helloSpec returns a fresh copy of id's client hello offering only
// http/1.1, since http.Transport cannot speak h2 over a custom TLS dialer.
func helloSpec(id utls.ClientHelloID) (*utls.ClientHelloSpec, error) {
	if id == utls.HelloRandomizedNoALPN {
		return nil, nil
	}
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}
