package gelfout

import (
	"fmt"

	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
)

const (
	TypeUDP = "udp"
	TypeTCP = "tcp"

	ModePerCall    = "per_call"
	ModePersistent = "persistent"
)

func init() {
	outputs.GlobalRegistry.Register(&UDPFactory{})
	outputs.GlobalRegistry.Register(&TCPFactory{})
}

var commonFields = []outputs.ConfigField{
	{Name: "host", Type: "string", Required: true, Description: "Graylog host", Example: "graylog.internal"},
	{Name: "port", Type: "number", Required: true, Description: "GELF input port", Example: "12201"},
	{Name: "timeout", Type: "duration", Required: false, Description: "Dial and write timeout", Example: "5s"},
}

var compressField = outputs.ConfigField{
	Name: "compress", Type: "bool", Required: false, Description: "zlib-compress each message", Example: "true",
}

// UDPFactory creates GELF UDP outputs. Registers as "udp".
type UDPFactory struct{}

func (f *UDPFactory) Name() string { return TypeUDP }

func (f *UDPFactory) ConfigSpec() outputs.OutputTypeInfo {
	return outputs.OutputTypeInfo{
		Type:        TypeUDP,
		Description: "GELF over UDP. One datagram per message, optionally zlib-compressed.",
		Fields:      append(append([]outputs.ConfigField{}, commonFields...), compressField),
	}
}

func (f *UDPFactory) Create(cfg outputs.Config) (outputs.Output, error) {
	addr, err := address(cfg)
	if err != nil {
		return nil, err
	}
	return NewUDP(addr, cfg.Bool("compress", true), cfg.Duration("timeout", defaultTimeout)), nil
}

// TCPFactory creates GELF TCP outputs. Registers as "tcp".
type TCPFactory struct{}

func (f *TCPFactory) Name() string { return TypeTCP }

func (f *TCPFactory) ConfigSpec() outputs.OutputTypeInfo {
	fields := append([]outputs.ConfigField{}, commonFields...)
	fields = append(fields, outputs.ConfigField{
		Name: "connection_mode", Type: "string", Required: false,
		Description: "per_call opens a connection per message, persistent reuses one", Example: ModePersistent,
	})
	return outputs.OutputTypeInfo{
		Type:        TypeTCP,
		Description: "GELF over TCP. Messages are uncompressed NUL-terminated frames.",
		Fields:      fields,
	}
}

func (f *TCPFactory) Create(cfg outputs.Config) (outputs.Output, error) {
	addr, err := address(cfg)
	if err != nil {
		return nil, err
	}
	mode := cfg.String("connection_mode", ModePerCall)
	if mode != ModePerCall && mode != ModePersistent {
		return nil, fmt.Errorf("invalid connection_mode %q for tcp output", mode)
	}
	return NewTCP(addr, mode, cfg.Duration("timeout", defaultTimeout)), nil
}

func address(cfg outputs.Config) (string, error) {
	host := cfg.String("host", "")
	if host == "" {
		return "", fmt.Errorf("missing 'host' for gelf output")
	}
	port := cfg.Int("port", 0)
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid 'port' %d for gelf output", port)
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}
