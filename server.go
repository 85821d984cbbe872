package netmount

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/absfs/absfs"
	"github.com/absfs/osfs"
)

// idleTick bounds how long the server loop's WaitForData blocks when no
// datagram is pending, so periodic housekeeping (rate-limiter eviction)
// still runs on an otherwise quiet link.
const idleTick = 5 * time.Second

// Server owns one Transport and the Engine that answers it. It runs a
// strictly serial loop: receive one datagram, handle it to completion,
// send the reply, repeat. There is no concurrency inside the loop, which
// is what lets Drive and its handle cache skip locking entirely.
type Server struct {
	transport Transport
	engine    *Engine
	logger    Logger
	stop      chan struct{}
	done      chan struct{}
}

// NewServer builds a Server from an already-open Transport and a
// populated DriveTable.
func NewServer(transport Transport, drives *DriveTable, logger Logger) *Server {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &Server{
		transport: transport,
		engine:    NewEngine(drives, logger),
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// BuildDriveTable opens an osfs.FileSystem for each DriveConfig, confines it
// to the configured host directory with basePathFS, and installs the
// resulting Drive at the matching letter index. Drive.Root is the real,
// absolute host path (not a virtual "/") so that the attribute backends and
// SpaceInfo, which bypass absfs and hit the OS directly, see real paths.
func BuildDriveTable(drives []DriveConfig) (*DriveTable, error) {
	var table DriveTable
	for _, dc := range drives {
		root, err := filepath.Abs(dc.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q for drive %c: %w", dc.Root, dc.Letter, err)
		}
		fs, err := osfs.NewFS()
		if err != nil {
			return nil, fmt.Errorf("open filesystem for drive %c: %w", dc.Letter, err)
		}
		index := int(dc.Letter - 'A')
		drive := NewDrive(dc.Letter, root, newBasePathFS(fs, root), dc.ReadOnly, dc.AttrMode, dc.Conversion)
		drive.Label = dc.Label
		table[index] = drive
	}
	return &table, nil
}

// basePathFS confines fs to the subtree rooted at base. Drive always builds
// paths by joining onto its own Root, which BuildDriveTable sets to base, so
// every path it hands to OpenFile/Create/Mkdir/Remove/Rename/Lstat/Truncate
// already lies under base; confine rejects anything that doesn't, rather
// than letting a path-construction bug elsewhere reach outside the shared
// directory. Every other absfs.FileSystem method is promoted straight
// through from the embedded fs.
type basePathFS struct {
	absfs.FileSystem
	base string
}

func newBasePathFS(fs absfs.FileSystem, base string) *basePathFS {
	return &basePathFS{FileSystem: fs, base: base}
}

func (b *basePathFS) confine(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean != b.base && !strings.HasPrefix(clean, b.base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes drive root %q", name, b.base)
	}
	return clean, nil
}

func (b *basePathFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	p, err := b.confine(name)
	if err != nil {
		return nil, err
	}
	return b.FileSystem.OpenFile(p, flag, perm)
}

func (b *basePathFS) Create(name string) (absfs.File, error) {
	p, err := b.confine(name)
	if err != nil {
		return nil, err
	}
	return b.FileSystem.Create(p)
}

func (b *basePathFS) Mkdir(name string, perm os.FileMode) error {
	p, err := b.confine(name)
	if err != nil {
		return err
	}
	return b.FileSystem.Mkdir(p, perm)
}

func (b *basePathFS) Remove(name string) error {
	p, err := b.confine(name)
	if err != nil {
		return err
	}
	return b.FileSystem.Remove(p)
}

func (b *basePathFS) Rename(oldname, newname string) error {
	oldp, err := b.confine(oldname)
	if err != nil {
		return err
	}
	newp, err := b.confine(newname)
	if err != nil {
		return err
	}
	return b.FileSystem.Rename(oldp, newp)
}

func (b *basePathFS) Lstat(name string) (os.FileInfo, error) {
	p, err := b.confine(name)
	if err != nil {
		return nil, err
	}
	return b.FileSystem.Lstat(p)
}

func (b *basePathFS) Truncate(name string, size int64) error {
	p, err := b.confine(name)
	if err != nil {
		return err
	}
	return b.FileSystem.Truncate(p, size)
}

// Run drives the receive/process/reply loop until Stop is called or the
// transport reports a permanent error.
func (s *Server) Run() error {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		ready, err := s.transport.WaitForData(idleTick)
		if err != nil {
			return fmt.Errorf("transport wait: %w", err)
		}
		if !ready {
			s.engine.Limiter.Cleanup()
			continue
		}

		peer, datagram, err := s.transport.Recv()
		if err != nil {
			s.logger.Warn("receive failed", LogField{Key: "error", Value: err.Error()})
			continue
		}

		reply := s.engine.Process(peer.UDPAddr(), datagram)
		if reply == nil {
			continue
		}
		if err := s.transport.Send(peer, reply); err != nil {
			s.logger.Warn("send failed", LogField{Key: "error", Value: err.Error()}, LogField{Key: "peer", Value: peer.String()})
		}
	}
}

// Stop requests a graceful shutdown and blocks until Run returns.
func (s *Server) Stop() {
	close(s.stop)
	s.transport.SignalStop()
	<-s.done
}

// RunUntilSignal runs the server until SIGINT or SIGTERM, then stops it.
// It does not close the transport; the caller does.
func (s *Server) RunUntilSignal() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", LogField{Key: "signal", Value: sig.String()})
		s.Stop()
		return <-errCh
	case err := <-errCh:
		return err
	}
}
