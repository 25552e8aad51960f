package device

import (
	"fmt"
	"strings"
	"time"
)

type GatewayConfig struct {
	Transport      string   `yaml:"transport"`
	Endpoint       string   `yaml:"endpoint"`
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Decrypter turns a stored gateway password into plaintext.
type Decrypter func(string) (string, error)

type Registry struct {
	gateways map[string]*Gateway
}

// BuildRegistry builds one gateway per configured name.
func BuildRegistry(configs map[string]GatewayConfig, decrypt Decrypter) (*Registry, error) {
	gateways := map[string]*Gateway{}
	for name, cfg := range configs {
		transport, err := buildTransport(cfg, decrypt)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: %w", name, err)
		}
		gateways[strings.ToLower(name)] = NewGateway(transport)
	}
	return &Registry{gateways: gateways}, nil
}

func (r *Registry) GatewayFor(name string) (*Gateway, error) {
	if r == nil {
		return nil, fmt.Errorf("gateway registry not configured")
	}
	gw, ok := r.gateways[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for %s", name)
	}
	return gw, nil
}

func buildTransport(cfg GatewayConfig, decrypt Decrypter) (Transport, error) {
	timeout := 5 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	switch strings.ToLower(cfg.Transport) {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http endpoint required")
		}
		password := cfg.Password
		if password != "" && decrypt != nil {
			plain, err := decrypt(password)
			if err != nil {
				return nil, fmt.Errorf("gateway password: %w", err)
			}
			password = plain
		}
		t := DefaultHTTPTransport(cfg.Endpoint)
		t.Username, t.Password, t.Timeout = cfg.Username, password, timeout
		return t, nil
	case "stdio":
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio command required")
		}
		t := DefaultStdioTransport(cfg.Command, cfg.Args)
		t.Timeout = timeout
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", cfg.Transport)
	}
}
