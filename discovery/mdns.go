// Package discovery advertises a room server on the local network via mDNS
// and lets clients find one without typing a URL. It is entirely optional;
// both binaries accept an explicit server URL.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultService is the mDNS service name without domain suffix.
	DefaultService = "_roomchat._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultVersion is the TXT record protocol version.
	DefaultVersion = 1
	// DefaultScanTimeout bounds each lookup scan.
	DefaultScanTimeout = 3 * time.Second
	// DefaultInstanceName identifies the advertised server instance.
	DefaultInstanceName = "roomchat"
)

// ErrNoServerFound indicates a lookup scan finished without results.
var ErrNoServerFound = errors.New("discovery: no room server found")

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Config controls mDNS advertisement and lookup behavior.
type Config struct {
	Service     string
	Domain      string
	Version     int
	ScanTimeout time.Duration

	InstanceName string
	Port         int
	APIPath      string

	registerFn registerFunc
	browseFn   browseFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.Version == 0 {
		out.Version = DefaultVersion
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = DefaultScanTimeout
	}
	if out.InstanceName == "" {
		out.InstanceName = DefaultInstanceName
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	if out.browseFn == nil {
		out.browseFn = func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return err
			}
			return resolver.Browse(ctx, service, domain, entries)
		}
	}
	return out
}

// Broadcaster advertises a running room server via mDNS.
type Broadcaster struct {
	server *zeroconf.Server
}

// StartBroadcast registers and starts mDNS advertisement for a server
// listening on cfg.Port.
func StartBroadcast(config Config) (*Broadcaster, error) {
	cfg := config.withDefaults()
	if cfg.Port <= 0 {
		return nil, errors.New("discovery: listening port must be > 0")
	}

	txt := []string{
		"version=" + strconv.Itoa(cfg.Version),
		"api=" + cfg.APIPath,
	}

	server, err := cfg.registerFn(cfg.InstanceName, cfg.Service, cfg.Domain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}

	return &Broadcaster{server: server}, nil
}

// Stop stops mDNS advertisement.
func (b *Broadcaster) Stop() {
	if b == nil || b.server == nil {
		return
	}
	b.server.Shutdown()
}

// Lookup scans for an advertised room server and returns its base URL, or
// ErrNoServerFound when the scan window closes empty.
func Lookup(ctx context.Context, config Config) (string, error) {
	cfg := config.withDefaults()

	scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := cfg.browseFn(scanCtx, cfg.Service, cfg.Domain, entries); err != nil {
		return "", fmt.Errorf("browse mDNS service: %w", err)
	}

	for {
		select {
		case <-scanCtx.Done():
			return "", ErrNoServerFound
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoServerFound
			}
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			return serverURL(entry), nil
		}
	}
}

func serverURL(entry *zeroconf.ServiceEntry) string {
	host := entry.AddrIPv4[0].String()
	return "http://" + net.JoinHostPort(host, strconv.Itoa(entry.Port))
}

// TXTValue extracts one key from an entry's TXT records.
func TXTValue(entry *zeroconf.ServiceEntry, key string) string {
	prefix := key + "="
	for _, record := range entry.Text {
		if strings.HasPrefix(record, prefix) {
			return strings.TrimPrefix(record, prefix)
		}
	}
	return ""
}
