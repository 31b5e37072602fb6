// Package config parses the CLI-facing RPC host string into the
// concrete HTTP and WS URLs the control plane connects to, mirroring
// get_host_port's host[:http_port[:ws_port]] decomposition.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultListenPort = 8898
	DefaultHTTPPort   = 8899
)

// Config is the fully resolved set of addresses tpuforward needs to
// start: where to listen for inbound transactions, and where to reach
// the cluster RPC node.
type Config struct {
	ListenAddr string
	HTTPURL    string
	WSURL      string
	LogPath    string
	Debug      bool
}

// Resolve decomposes rpcHost (host[:http_port[:ws_port]]) and
// listenPort into a Config. An absent http_port defaults to 8899; an
// absent ws_port defaults to http_port+1.
func Resolve(rpcHost string, listenPort int, logPath string, debug bool) (Config, error) {
	host, httpPort, wsPort, err := splitHostPort(rpcHost)
	if err != nil {
		return Config{}, err
	}
	if listenPort == 0 {
		listenPort = DefaultListenPort
	}
	return Config{
		ListenAddr: fmt.Sprintf(":%d", listenPort),
		HTTPURL:    fmt.Sprintf("http://%s:%d", host, httpPort),
		WSURL:      fmt.Sprintf("ws://%s:%d", host, wsPort),
		LogPath:    logPath,
		Debug:      debug,
	}, nil
}

func splitHostPort(rpcHost string) (host string, httpPort, wsPort int, err error) {
	parts := strings.Split(rpcHost, ":")
	if len(parts) == 0 || parts[0] == "" {
		return "", 0, 0, fmt.Errorf("empty rpc host")
	}
	host = parts[0]
	httpPort = DefaultHTTPPort
	if len(parts) >= 2 && parts[1] != "" {
		httpPort, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", 0, 0, fmt.Errorf("bad http port %q: %w", parts[1], err)
		}
	}
	wsPort = httpPort + 1
	if len(parts) >= 3 && parts[2] != "" {
		wsPort, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", 0, 0, fmt.Errorf("bad ws port %q: %w", parts[2], err)
		}
	}
	return host, httpPort, wsPort, nil
}
