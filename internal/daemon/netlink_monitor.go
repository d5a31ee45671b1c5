package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pilebones/go-udev/netlink"

	"panotrack/internal/config"
	"panotrack/internal/logging"
)

// netlinkMonitor listens for udev netlink events and rescans the import
// directories once a filesystem appears on a block device, which is how a
// camera SD card shows up when inserted.
type netlinkMonitor struct {
	logger *slog.Logger
	rescan func(ctx context.Context) (int, error)
	delay  time.Duration

	mu        sync.Mutex
	conn      *netlink.UEventConn
	quit      chan struct{}
	running   bool
	debounced func(func())
}

// newNetlinkMonitor creates a monitor that calls rescan after media arrives.
// Several partitions mounting together produce a single rescan.
func newNetlinkMonitor(cfg *config.Config, logger *slog.Logger, rescan func(ctx context.Context) (int, error)) *netlinkMonitor {
	if cfg == nil || rescan == nil {
		return nil
	}
	delay := time.Duration(cfg.Import.MediaRescanDelay) * time.Second
	if delay <= 0 {
		delay = time.Second
	}
	return &netlinkMonitor{
		logger:    logging.NewComponentLogger(logger, "netlink-monitor"),
		rescan:    rescan,
		delay:     delay,
		debounced: debounce.New(delay),
	}
}

// Start begins listening for udev netlink events.
func (m *netlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; media rescans will rely on manual triggers",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "inserted cards are not scanned automatically"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
		logging.Duration("rescan_delay", m.delay),
	)
	return nil
}

// Stop shuts down the netlink monitor.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the netlink monitor is active.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMediaMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "media detection may be affected"),
			)
		}
	}
}

// buildMediaMatcher matches SUBSYSTEM=block, ID_FS_USAGE=filesystem, ACTION=add.
func buildMediaMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":   "block",
			"ID_FS_USAGE": "filesystem",
		},
	})
	return rules
}

// handleEvent schedules a rescan for a matched uevent.
func (m *netlinkMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	if !isMediaEvent(uevent) {
		return
	}
	device := deviceName(uevent)
	m.logger.Info("removable media detected via netlink",
		logging.String(logging.FieldEventType, "netlink_media_detected"),
		logging.String("device", device),
		logging.String("label", uevent.Env["ID_FS_LABEL"]),
	)
	m.debounced(func() {
		m.runRescan(ctx, device)
	})
}

func (m *netlinkMonitor) runRescan(ctx context.Context, device string) {
	if ctx.Err() != nil || !m.Running() {
		return
	}
	queued, err := m.rescan(ctx)
	if err != nil {
		m.logger.Warn("media rescan failed",
			logging.Error(err),
			logging.String("device", device),
			logging.String(logging.FieldEventType, "media_rescan_failed"),
			logging.String(logging.FieldErrorHint, "run panotrack rescan once the card is mounted"),
			logging.String(logging.FieldImpact, "files on the card were not queued"),
		)
		return
	}
	m.logger.Info("media rescan finished",
		logging.String("device", device),
		logging.Int("queued", queued),
		logging.String(logging.FieldEventType, "media_rescan_finished"),
	)
}

func isMediaEvent(uevent netlink.UEvent) bool {
	return uevent.Action == netlink.ADD &&
		uevent.Env["SUBSYSTEM"] == "block" &&
		uevent.Env["ID_FS_USAGE"] == "filesystem"
}

// deviceName gets the device path from a uevent.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
