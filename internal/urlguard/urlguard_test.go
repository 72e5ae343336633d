package urlguard

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gearforge/gearforge/internal/errs"
)

func TestValidateHTTPURL_BadScheme(t *testing.T) {
	g := New()
	_, err := g.ValidateHTTPURL(context.Background(), "ftp://example.com")
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.InvalidURL {
		t.Fatalf("expected InvalidURL, got %v", err)
	}
}

func TestValidateHTTPURL_Malformed(t *testing.T) {
	g := New()
	_, err := g.ValidateHTTPURL(context.Background(), "://nope")
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.InvalidURL {
		t.Fatalf("expected InvalidURL, got %v", err)
	}
}

func TestValidateHTTPURL_LoopbackIP(t *testing.T) {
	g := New()
	_, err := g.ValidateHTTPURL(context.Background(), "http://127.0.0.1:8080/x")
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.DisallowedHost {
		t.Fatalf("expected DisallowedHost, got %v", err)
	}
}

func TestValidateHTTPURL_PrivateRangeIP(t *testing.T) {
	g := New()
	for _, host := range []string{"http://10.0.0.5/", "http://172.16.0.1/", "http://192.168.1.1/"} {
		_, err := g.ValidateHTTPURL(context.Background(), host)
		kind, ok := errs.KindOf(err)
		if !ok || kind != errs.DisallowedHost {
			t.Fatalf("expected DisallowedHost for %s, got %v", host, err)
		}
	}
}

func TestValidateHTTPURL_AllowListedHost(t *testing.T) {
	g := New("localhost")
	parsed, err := g.ValidateHTTPURL(context.Background(), "http://localhost:9000/gears/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Host != "localhost:9000" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}
}

func TestValidateHTTPURL_PublicIPAllowed(t *testing.T) {
	g := New()
	_, err := g.ValidateHTTPURL(context.Background(), "https://93.184.216.34/path")
	if err != nil {
		t.Fatalf("unexpected error for public IP: %v", err)
	}
}

func TestWithTimeout_DefaultsWhenZero(t *testing.T) {
	d := WithTimeout(context.Background(), 0)
	defer d.Cancel()
	deadline, ok := d.Ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if time.Until(deadline) > DefaultTimeout {
		t.Fatalf("deadline exceeds default: %v", deadline)
	}
}

func TestIsDisallowed_IPv6Loopback(t *testing.T) {
	if !isDisallowed(net.ParseIP("::1")) {
		t.Fatal("expected ::1 to be disallowed")
	}
}
