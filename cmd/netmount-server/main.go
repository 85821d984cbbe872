// Command netmount-server shares host directories as DOS drive letters
// over the netmount UDP protocol.
//
// Usage:
//
//	netmount-server [flags] <drive>=<root>[,option=value...] ...
//
// Example:
//
//	netmount-server -bind-port 12200 C=/srv/dos,readonly=true
package main

import (
	"fmt"
	"os"

	"netmount-server"
)

func main() {
	cfg, err := netmount.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "netmount-server:", err)
		os.Exit(2)
	}

	logger, err := netmount.NewSlogLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "netmount-server: failed to set up logging:", err)
		os.Exit(1)
	}
	defer logger.Close()

	drives, err := netmount.BuildDriveTable(cfg.Drives)
	if err != nil {
		logger.Error("failed to open drives", netmount.LogField{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	var transport netmount.Transport
	switch cfg.Transport {
	case "slip":
		var localIP [4]byte
		transport, err = netmount.NewSLIPTransport(cfg.SerialPort, cfg.SerialBaud, localIP)
	default:
		addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.BindPort)
		transport, err = netmount.NewUDPTransport(addr)
	}
	if err != nil {
		logger.Error("failed to open transport", netmount.LogField{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	defer transport.Close()

	for _, dc := range cfg.Drives {
		logger.Info("sharing drive",
			netmount.LogField{Key: "letter", Value: string(dc.Letter)},
			netmount.LogField{Key: "root", Value: dc.Root},
			netmount.LogField{Key: "readonly", Value: dc.ReadOnly},
		)
	}

	server := netmount.NewServer(transport, drives, logger)
	if err := server.RunUntilSignal(); err != nil {
		logger.Error("server exited with error", netmount.LogField{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}
