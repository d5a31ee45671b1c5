package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.API.Enabled {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return fmt.Errorf("paths.api_bind %q is not a host:port address: %w", c.Paths.APIBind, err)
		}
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.ConversionTimeout <= 0 {
		return errors.New("tools.conversion_timeout must be positive")
	}
	if c.Tools.ProbeTimeout <= 0 {
		return errors.New("tools.probe_timeout must be positive")
	}
	if c.Tools.ExtractionTimeout <= 0 {
		return errors.New("tools.extraction_timeout must be positive")
	}
	if c.Tools.NotifyTimeout <= 0 {
		return errors.New("tools.notify_timeout must be positive")
	}
	return nil
}

func (c *Config) validateImport() error {
	if len(c.Import.Extensions) == 0 {
		return errors.New("import.extensions must list at least one extension")
	}
	if c.Import.WriteSettleSeconds < 0 {
		return errors.New("import.write_settle_seconds must be zero or positive")
	}
	if c.Import.SampleDistance <= 0 {
		return errors.New("import.sample_distance must be positive")
	}
	if c.Import.MediaRescanDelay < 0 {
		return errors.New("import.media_rescan_delay must be zero or positive")
	}
	if tz := c.Import.Timezone; tz != "" && !strings.EqualFold(tz, "local") {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("import.timezone %q: %w", tz, err)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.TrackWorkers <= 0 {
		return errors.New("workflow.track_workers must be positive")
	}
	if c.Workflow.ImageWorkers <= 0 {
		return errors.New("workflow.image_workers must be positive")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	if c.Workflow.RetryBackoff < 0 {
		return errors.New("workflow.retry_backoff must be zero or positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.HistorySize <= 0 {
		return errors.New("events.history_size must be positive")
	}
	if c.Events.DeliveryAttempts <= 0 {
		return errors.New("events.delivery_attempts must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
