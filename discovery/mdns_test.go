package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestStartBroadcastRequiresPort(t *testing.T) {
	if _, err := StartBroadcast(Config{}); err == nil {
		t.Fatal("expected error for missing port")
	}
}

func TestStartBroadcastPassesConfig(t *testing.T) {
	var gotInstance, gotService, gotDomain string
	var gotPort int
	var gotText []string

	cfg := Config{
		Port: 8787,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance = instance
			gotService = service
			gotDomain = domain
			gotPort = port
			gotText = text
			return nil, nil
		},
	}

	broadcaster, err := StartBroadcast(cfg)
	if err != nil {
		t.Fatalf("StartBroadcast failed: %v", err)
	}
	defer broadcaster.Stop()

	if gotInstance != DefaultInstanceName {
		t.Errorf("instance = %q, want %q", gotInstance, DefaultInstanceName)
	}
	if gotService != DefaultService {
		t.Errorf("service = %q, want %q", gotService, DefaultService)
	}
	if gotDomain != DefaultDomain {
		t.Errorf("domain = %q, want %q", gotDomain, DefaultDomain)
	}
	if gotPort != 8787 {
		t.Errorf("port = %d, want 8787", gotPort)
	}
	if len(gotText) != 2 || gotText[0] != "version=1" {
		t.Errorf("unexpected TXT records: %v", gotText)
	}
}

func TestStartBroadcastRegisterError(t *testing.T) {
	cfg := Config{
		Port: 8787,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, errors.New("bind failed")
		},
	}

	if _, err := StartBroadcast(cfg); err == nil {
		t.Fatal("expected register error to propagate")
	}
}

func TestLookupReturnsFirstServer(t *testing.T) {
	cfg := Config{
		ScanTimeout: time.Second,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			go func() {
				entries <- &zeroconf.ServiceEntry{
					AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
					Port:     8787,
				}
			}()
			return nil
		},
	}

	url, err := Lookup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if url != "http://192.168.1.20:8787" {
		t.Errorf("url = %q", url)
	}
}

func TestLookupSkipsEntriesWithoutAddress(t *testing.T) {
	cfg := Config{
		ScanTimeout: time.Second,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			go func() {
				entries <- &zeroconf.ServiceEntry{Port: 8787}
				entries <- &zeroconf.ServiceEntry{
					AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
					Port:     9000,
				}
			}()
			return nil
		},
	}

	url, err := Lookup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if url != "http://10.0.0.5:9000" {
		t.Errorf("url = %q", url)
	}
}

func TestLookupTimesOutEmpty(t *testing.T) {
	cfg := Config{
		ScanTimeout: 50 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			return nil
		},
	}

	if _, err := Lookup(context.Background(), cfg); !errors.Is(err, ErrNoServerFound) {
		t.Fatalf("expected ErrNoServerFound, got %v", err)
	}
}

func TestTXTValue(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.Text = []string{"version=1", "api=/api/chat"}

	if got := TXTValue(entry, "api"); got != "/api/chat" {
		t.Errorf("api = %q", got)
	}
	if got := TXTValue(entry, "missing"); got != "" {
		t.Errorf("missing = %q", got)
	}
}
