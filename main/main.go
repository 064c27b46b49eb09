package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"

	"keynav-tray/config"
	"keynav-tray/dbusctl"
	"keynav-tray/eventloop"
	"keynav-tray/hotkey"
	"keynav-tray/model"
	"keynav-tray/render"
	"keynav-tray/tray"
	"keynav-tray/window"
)

func main() {
	configPath := flag.String("config", "", "Path to config.toml (default: $XDG_CONFIG_HOME/keynav-tray/config.toml)")
	flag.Parse()

	setupLogging()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	bindings, err := cfg.Bindings()
	if err != nil {
		log.Fatalf("Failed to compile key bindings: %v", err)
	}
	table := hotkey.NewTable(bindings, log.Printf)

	// Connect to the X server
	xu, err := xgbutil.NewConn()
	if err != nil {
		log.Fatalf("Failed to connect to X server: %v", err)
	}
	keybind.Initialize(xu)

	m := model.New()

	initialHeight := cfg.UI.ContainerPadding*2 + cfg.UI.ItemHeight()
	win, err := window.New(xu, cfg.Window, initialHeight)
	if err != nil {
		log.Fatalf("Failed to create tray window: %v", err)
	}
	defer win.Destroy()

	// The tray manager notifies through the loop's scheduler; the loop does
	// not exist yet, so bind it late.
	var loop *eventloop.Loop
	notify := func() {
		if loop != nil {
			loop.MarkDirty()
		}
	}
	mgr, err := tray.New(xu, win.Id(), m, cfg.UI.IconSize, notify)
	if err != nil {
		log.Fatalf("Failed to initialize tray manager: %v", err)
	}

	painter, err := render.NewPainter(xu, win.Id(), &cfg.UI, m)
	if err != nil {
		log.Fatalf("Failed to initialize renderer: %v", err)
	}

	loop, err = eventloop.New(xu, cfg, m, win, mgr, table, painter)
	if err != nil {
		log.Fatalf("Failed to initialize event loop: %v", err)
	}

	// Invalid keysyms and conflicting global grabs abort startup
	if err := loop.Bind(); err != nil {
		log.Fatalf("Failed to bind keys: %v", err)
	}

	// Claim the tray selection; refuse to fight another running tray
	if err := mgr.Acquire(); err != nil {
		log.Fatalf("Failed to acquire tray selection: %v", err)
	}
	defer mgr.Release()

	// Remote control is optional; the tray works without a session bus
	svc, err := dbusctl.Start(loop.Actions())
	if err != nil {
		log.Printf("D-Bus control unavailable: %v", err)
	} else {
		defer svc.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("keynav-tray running: %d key bindings, window %d", table.Len(), win.Id())
	if err := loop.Run(sigChan); err != nil {
		if errors.Is(err, eventloop.ErrSelectionLost) {
			// Another tray took over; yield cleanly.
			return
		}
		mgr.Release()
		log.Fatalf("Event loop stopped: %v", err)
	}
}

func setupLogging() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if path := os.Getenv("KEYNAV_TRAY_LOG_FILE"); path != "" {
		logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Printf("Failed to open log file %s: %v", path, err)
			return
		}
		// Write to both stderr and the log file
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}
}
