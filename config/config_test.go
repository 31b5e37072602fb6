package config_test

import (
	"testing"

	"github.com/solpipe/tpuforward/config"
)

func TestResolveHostOnly(t *testing.T) {
	c, err := config.Resolve("rpc.example.com", 0, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if c.ListenAddr != ":8898" {
		t.Fatalf("expected default listen port, got %s", c.ListenAddr)
	}
	if c.HTTPURL != "http://rpc.example.com:8899" {
		t.Fatalf("unexpected http url %s", c.HTTPURL)
	}
	if c.WSURL != "ws://rpc.example.com:8900" {
		t.Fatalf("unexpected ws url %s", c.WSURL)
	}
}

func TestResolveExplicitHTTPPort(t *testing.T) {
	c, err := config.Resolve("10.0.0.5:9000", 7000, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTPURL != "http://10.0.0.5:9000" {
		t.Fatalf("unexpected http url %s", c.HTTPURL)
	}
	if c.WSURL != "ws://10.0.0.5:9001" {
		t.Fatalf("unexpected ws url %s", c.WSURL)
	}
	if c.ListenAddr != ":7000" {
		t.Fatalf("unexpected listen addr %s", c.ListenAddr)
	}
}

func TestResolveExplicitAllThreeFields(t *testing.T) {
	c, err := config.Resolve("10.0.0.5:9000:9500", 0, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if c.WSURL != "ws://10.0.0.5:9500" {
		t.Fatalf("expected explicit ws port to override the http_port+1 default, got %s", c.WSURL)
	}
}

func TestResolveBadPortIsError(t *testing.T) {
	if _, err := config.Resolve("host:notaport", 0, "", false); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

func TestResolveEmptyHostIsError(t *testing.T) {
	if _, err := config.Resolve("", 0, "", false); err == nil {
		t.Fatal("expected an error for an empty rpc host")
	}
}
