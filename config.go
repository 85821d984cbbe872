package netmount

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// DriveConfig is one parsed "<letter>=<root>[,option=value...]" argument.
type DriveConfig struct {
	Letter     byte
	Root       string
	Label      string
	ReadOnly   bool
	AttrMode   AttrMode
	Conversion NameConversion
}

// Config is the fully parsed command line: how to listen, what to expose,
// and how much to log.
type Config struct {
	BindAddr string
	BindPort int

	Transport   string // "udp" or "slip"
	SerialPort  string
	SerialBaud  int

	Drives []DriveConfig

	Log LogConfig

	// RateLimitPerSecond and RateLimitBurst are parsed from the command
	// line but not passed on: NewServer builds its PeerLimiter from
	// DefaultPeerLimiterConfig.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// ParseArgs parses argv (excluding the program name) into a Config. It
// follows the flag package's usual "flags then positional args" shape:
// every drive mapping is a bare positional argument.
func ParseArgs(argv []string) (Config, error) {
	fs := flag.NewFlagSet("netmount-server", flag.ContinueOnError)

	cfg := Config{}
	fs.StringVar(&cfg.BindAddr, "bind-addr", "", "address to listen on (default all interfaces)")
	fs.IntVar(&cfg.BindPort, "bind-port", DefaultUDPPort, "UDP port to listen on")
	fs.StringVar(&cfg.Transport, "transport", "udp", "transport to use: udp or slip")
	fs.StringVar(&cfg.SerialPort, "serial-port", "", "serial device to use when -transport=slip (e.g. /dev/ttyUSB0)")
	fs.IntVar(&cfg.SerialBaud, "serial-baud", 115200, "baud rate when -transport=slip")
	fs.Float64Var(&cfg.RateLimitPerSecond, "rate-limit", 200, "requests per second from one peer (stored in Config only; the server uses its default limiter)")
	fs.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", 50, "burst size for -rate-limit (stored in Config only)")

	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "text", "log format: text or json")
	logOutput := fs.String("log-output", "stderr", "log destination: stderr, stdout, or a file path")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: netmount-server [flags] <drive>=<root>[,option=value...] ...\n\n")
		fmt.Fprintf(fs.Output(), "Each positional argument shares one host directory as a drive letter:\n")
		fmt.Fprintf(fs.Output(), "  C=/srv/dos,readonly=true,label=CDRIVE,attrs=native,names=off\n\n")
		fmt.Fprintf(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}

	cfg.Log = LogConfig{Level: *logLevel, Format: *logFormat, Output: *logOutput}

	if cfg.Transport != "udp" && cfg.Transport != "slip" {
		return Config{}, fmt.Errorf("invalid -transport %q: must be udp or slip", cfg.Transport)
	}
	if cfg.Transport == "slip" && cfg.SerialPort == "" {
		return Config{}, fmt.Errorf("-serial-port is required when -transport=slip")
	}

	for _, arg := range fs.Args() {
		dc, err := parseDriveArg(arg)
		if err != nil {
			return Config{}, err
		}
		cfg.Drives = append(cfg.Drives, dc)
	}
	if len(cfg.Drives) == 0 {
		return Config{}, fmt.Errorf("at least one <drive>=<root> mapping is required")
	}
	return cfg, nil
}

// parseDriveArg parses one "<letter>=<root>[,option=value...]" argument.
func parseDriveArg(arg string) (DriveConfig, error) {
	eq := strings.IndexByte(arg, '=')
	if eq <= 0 {
		return DriveConfig{}, fmt.Errorf("invalid drive mapping %q: expected <letter>=<root>", arg)
	}
	letterPart := arg[:eq]
	if len(letterPart) != 1 {
		return DriveConfig{}, fmt.Errorf("invalid drive letter %q: must be a single letter", letterPart)
	}
	letter := asciiUpper(letterPart[0])
	if letter < 'A' || letter > 'Z' {
		return DriveConfig{}, fmt.Errorf("invalid drive letter %q", letterPart)
	}

	rest := arg[eq+1:]
	fields := strings.Split(rest, ",")
	dc := DriveConfig{Letter: letter, Root: fields[0], AttrMode: AttrAuto, Conversion: NameConversionRAM}
	if dc.Root == "" {
		return DriveConfig{}, fmt.Errorf("invalid drive mapping %q: empty root path", arg)
	}

	for _, opt := range fields[1:] {
		k, v, ok := strings.Cut(opt, "=")
		if !ok {
			return DriveConfig{}, fmt.Errorf("invalid drive option %q in %q: expected key=value", opt, arg)
		}
		switch strings.ToLower(k) {
		case "readonly":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return DriveConfig{}, fmt.Errorf("invalid readonly value %q: %w", v, err)
			}
			dc.ReadOnly = b
		case "label":
			dc.Label = v
		case "attrs":
			switch strings.ToLower(v) {
			case "auto":
				dc.AttrMode = AttrAuto
			case "ignore":
				dc.AttrMode = AttrIgnore
			case "native":
				dc.AttrMode = AttrNative
			case "extended":
				dc.AttrMode = AttrInExtended
			default:
				return DriveConfig{}, fmt.Errorf("invalid attrs value %q", v)
			}
		case "names", "name_conversion":
			switch strings.ToLower(v) {
			case "ram":
				dc.Conversion = NameConversionRAM
			case "off":
				dc.Conversion = NameConversionOFF
			default:
				return DriveConfig{}, fmt.Errorf("invalid names value %q", v)
			}
		default:
			return DriveConfig{}, fmt.Errorf("unknown drive option %q", k)
		}
	}
	return dc, nil
}

