package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("s1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("s1") {
		t.Fatalf("fourth request should be denied")
	}
}

func TestAllowIsolatesStores(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	if !l.Allow("s1") {
		t.Fatalf("first s1 request should be allowed")
	}
	if l.Allow("s1") {
		t.Fatalf("second s1 request should be denied")
	}
	if !l.Allow("s2") {
		t.Fatalf("another store must have its own budget")
	}
}

func TestAllowEmptyKeyNeverLimited(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		if !l.Allow("") {
			t.Fatalf("platform requests must not be limited")
		}
	}
}

func TestWindowSlides(t *testing.T) {
	l := NewLimiter(1, 50*time.Millisecond)
	defer l.Stop()

	if !l.Allow("s1") {
		t.Fatalf("first request should be allowed")
	}
	if l.Allow("s1") {
		t.Fatalf("second request inside window should be denied")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow("s1") {
		t.Fatalf("request after window should be allowed")
	}
}

func TestAllowStrictSeparateKeySpace(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	for i := 0; i < 2; i++ {
		if !l.AllowStrict("login:a@x.com", 2, time.Minute) {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if l.AllowStrict("login:a@x.com", 2, time.Minute) {
		t.Fatalf("third attempt should be denied")
	}
	if !l.AllowStrict("login:b@x.com", 2, time.Minute) {
		t.Fatalf("other identifier must have its own budget")
	}
	if !l.Allow("login:a@x.com") {
		t.Fatalf("strict keys must not collide with store keys")
	}
}
