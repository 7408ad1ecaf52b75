package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/retronabu/go-nabu/nabu"
)

var (
	ttyName     = flag.String("t", defaultSerialPort(), "serial device (e.g. /dev/ttyUSB0 or COM3)")
	baudRate    = flag.Int("b", 115200, "serial baud rate")
	pakDir      = flag.String("p", "./paks/", "directory of pak files")
	cloudURL    = flag.String("i", "", "cloud archive URL for encrypted paks (e.g. "+nabu.DefaultCloudURL+")")
	nabuFile    = flag.String("n", "", "segment and serve a raw .nabu file")
	listenAddr  = flag.String("listen", "", "serve emulators over TCP on this address instead of a serial port")
	sshTarget   = flag.String("ssh", "", "serve through a remote bridge: user@host:port")
	sshCommand  = flag.String("ssh-cmd", "", "remote bridge command run over SSH")
	sshInsecure = flag.Bool("ssh-insecure", false, "skip SSH host key verification")
	preloadID   = flag.String("preload", "000001", "pak id to preload at startup, empty to disable")
	channelCode = flag.String("channel", "", "preset channel code, empty until the client sets one")
	logLevel    = flag.String("l", "INFO", "log level [DEBUG,INFO,ERROR]")
	logFile     = flag.String("log", "", "also append logs to this file")
	stats       = flag.Bool("stats", false, "print a segment service-time histogram on shutdown")
	listPorts   = flag.Bool("list-ports", false, "list serial ports and exit")
	version     = flag.Bool("version", false, "show version")
	help        = flag.Bool("h", false, "show help")
)

const versionString = "nabud version 0.1.0"

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}
	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}
	if *listPorts {
		showPorts()
		os.Exit(0)
	}

	level, err := nabu.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
	var logger nabu.Logger = nabu.NewConsoleLogger(os.Stderr, level)
	if *logFile != "" {
		fl, err := nabu.NewFileLogger(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
			os.Exit(1)
		}
		defer fl.Close()
		logger = teeLogger{logger, fl}
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := signalContext(sigChan)
	defer cancel()

	store := nabu.NewStore(buildSource(logger))

	if *preloadID != "" {
		id, err := parsePakID(*preloadID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: bad preload id %q: %v\n", os.Args[0], *preloadID, err)
			os.Exit(1)
		}
		if err := store.Preload(ctx, id); err != nil {
			logger.Error("preload %06X: %v", id, err)
		}
	}

	serviceStats := nabu.NewServiceStats()
	opts := []nabu.Option{
		nabu.WithConfig(&nabu.Config{
			ChunkSize:   64,
			ChannelCode: *channelCode,
			TimeSource:  time.Now,
		}),
		nabu.WithLogger(logger),
		nabu.WithContext(ctx),
		nabu.WithCallbacks(&nabu.Callbacks{
			OnProgramLoad: func(pakID uint32, segments int) {
				logger.Info("pak %06X ready (%d segments)", pakID, segments)
			},
			OnSegmentSent: func(pakID uint32, index byte, size int, took time.Duration) {
				logger.Debug("served pak %06X segment %d (%d bytes in %v)", pakID, index, size, took)
			},
		}),
		nabu.WithStats(serviceStats),
	}

	switch {
	case *sshTarget != "":
		err = serveSSH(ctx, store, opts)
	case *listenAddr != "":
		err = serveTCP(ctx, store, opts, logger)
	default:
		err = serveSerial(ctx, store, opts, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	if *stats {
		printStats(serviceStats)
	}
}

// buildSource picks the pak supply the same way the classic adapter
// did: a raw image beats the cloud, the cloud beats the pak directory.
func buildSource(logger nabu.Logger) nabu.PakSource {
	switch {
	case *nabuFile != "":
		logger.Info("serving raw image %s", *nabuFile)
		return &nabu.FileSource{Path: *nabuFile}
	case *cloudURL != "":
		logger.Info("serving encrypted paks from %s", *cloudURL)
		return &nabu.CloudPakSource{Cloud: &nabu.CloudSource{BaseURL: *cloudURL}}
	default:
		logger.Info("serving pak files from %s", *pakDir)
		return &nabu.DirSource{Dir: *pakDir}
	}
}

func serveSerial(ctx context.Context, store *nabu.Store, opts []nabu.Option, logger nabu.Logger) error {
	port, err := serial.Open(*ttyName, &serial.Mode{
		BaudRate: *baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", *ttyName, err)
	}
	defer port.Close()

	// Unblock the session read on shutdown.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	logger.Info("listening on %s at %d baud", *ttyName, *baudRate)
	return nabu.NewSession(port, port, store, opts...).Serve()
}

// serveTCP accepts emulator connections one at a time; the protocol is
// strictly single-client.
func serveTCP(ctx context.Context, store *nabu.Store, opts []nabu.Option, logger nabu.Logger) error {
	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logger.Info("listening on tcp %s", *listenAddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Info("client connected from %s", conn.RemoteAddr())
		if err := nabu.NewSession(conn, conn, store, opts...).Serve(); err != nil {
			logger.Error("session: %v", err)
		}
		conn.Close()
		logger.Info("client disconnected")
	}
}

func serveSSH(ctx context.Context, store *nabu.Store, opts []nabu.Option) error {
	if *sshCommand == "" {
		return fmt.Errorf("-ssh requires -ssh-cmd")
	}
	user, addr, ok := strings.Cut(*sshTarget, "@")
	if !ok {
		return fmt.Errorf("-ssh wants user@host:port, got %q", *sshTarget)
	}
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}

	fmt.Fprintf(os.Stderr, "password for %s: ", *sshTarget)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if !*sshInsecure {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		hostKey, err = knownhosts.New(home + "/.ssh/known_hosts")
		if err != nil {
			return fmt.Errorf("known_hosts: %w (use -ssh-insecure to skip)", err)
		}
	}

	transport, err := nabu.DialSSH(addr, user, []ssh.AuthMethod{ssh.Password(string(password))}, hostKey, *sshCommand)
	if err != nil {
		return err
	}
	defer transport.Close()
	go func() {
		<-ctx.Done()
		transport.Close()
	}()

	return nabu.NewSession(transport, transport, store, opts...).Serve()
}

func printStats(stats *nabu.ServiceStats) {
	segments, bytes, elapsed := stats.Summary()
	fmt.Printf("served %d segments, %d bytes, in %v\n", segments, bytes, elapsed.Round(time.Second))

	times := stats.Times()
	if len(times) == 0 {
		return
	}
	hist := histogram.Hist(10, times)
	err := histogram.Fprintf(os.Stdout, hist, histogram.Linear(40), func(v float64) string {
		return time.Duration(v).Round(time.Microsecond).String()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "histogram: %v\n", err)
	}
}

func showPorts() {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return
	}
	for _, port := range ports {
		fmt.Printf("%s\n", port.Name)
		if port.IsUSB {
			fmt.Printf("   USB ID     %s:%s\n", port.VID, port.PID)
			fmt.Printf("   USB serial %s\n", port.SerialNumber)
		}
	}
}

func parsePakID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 16, 24)
	if err != nil {
		return 0, err
	}
	return uint32(id), nil
}

func defaultSerialPort() string {
	if os.PathSeparator == '\\' {
		return "COM3"
	}
	return "/dev/ttyUSB0"
}

func signalContext(sigChan chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

// teeLogger duplicates log output to two loggers.
type teeLogger struct {
	a, b nabu.Logger
}

func (t teeLogger) Debug(format string, args ...interface{}) {
	t.a.Debug(format, args...)
	t.b.Debug(format, args...)
}

func (t teeLogger) Info(format string, args ...interface{}) {
	t.a.Info(format, args...)
	t.b.Info(format, args...)
}

func (t teeLogger) Error(format string, args ...interface{}) {
	t.a.Error(format, args...)
	t.b.Error(format, args...)
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - NABU network adapter emulator

Serves program segments to a NABU PC over a serial link, a TCP socket
(for emulators), or an SSH stdio bridge.

Usage: %s [options]

Options:
  -t DEV           serial device (default: %s)
  -b N             baud rate (default: 115200)
  -p DIR           pak file directory (default: ./paks/)
  -i URL           fetch encrypted paks from a cloud archive
  -n FILE          segment and serve a raw .nabu file
  -listen ADDR     listen on a TCP address instead of a serial port
  -ssh USER@HOST   serve through a remote SSH stdio bridge
  -ssh-cmd CMD     bridge command to run on the remote host
  -ssh-insecure    skip SSH host key verification
  -preload ID      pak id to preload (default: 000001)
  -channel CODE    preset channel code
  -l LEVEL         log level [DEBUG,INFO,ERROR] (default: INFO)
  -log FILE        also append logs to a file
  -stats           print service-time histogram on shutdown
  -list-ports      list serial ports and exit
  --version        show version

Examples:
  %s -t /dev/ttyUSB0 -p ./paks/       # serve local pak files
  %s -listen :5816 -n GAME.nabu       # serve one raw image to an emulator
  %s -i %s -l DEBUG

`, versionString, os.Args[0], defaultSerialPort(), os.Args[0], os.Args[0], os.Args[0], nabu.DefaultCloudURL)
	os.Exit(exitcode)
}
