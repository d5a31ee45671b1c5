package config

const (
	defaultConfigPath                = "~/.config/panotrack/config.toml"
	defaultDataDir                   = "~/.local/share/panotrack"
	defaultLogDir                    = "~/.local/share/panotrack/logs"
	defaultAPIBind                   = "127.0.0.1:7495"
	defaultGoPro2GPX                 = "gopro2gpx"
	defaultFFprobe                   = "ffprobe"
	defaultMapillaryTools            = "mapillary_tools"
	defaultApprise                   = "apprise"
	defaultConversionTimeout         = 1800
	defaultProbeTimeout              = 60
	defaultExtractionTimeout         = 7200
	defaultNotifyTimeout             = 30
	defaultWatchExtension            = ".360"
	defaultWriteSettleSeconds        = 2
	defaultSampleDistance            = 10
	defaultMediaRescanDelay          = 5
	defaultTrackWorkers              = 1
	defaultImageWorkers              = 1
	defaultMaxAttempts               = 3
	defaultRetryBackoff              = 30
	defaultQueuePollInterval         = 5
	defaultErrorRetryInterval        = 10
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultNotifyRequestTimeout      = 10
	defaultEventHistorySize          = 256
	defaultEventDeliveryAttempts     = 5
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tools: Tools{
			GoPro2GPX:         defaultGoPro2GPX,
			FFprobe:           defaultFFprobe,
			MapillaryTools:    defaultMapillaryTools,
			Apprise:           defaultApprise,
			ConversionTimeout: defaultConversionTimeout,
			ProbeTimeout:      defaultProbeTimeout,
			ExtractionTimeout: defaultExtractionTimeout,
			NotifyTimeout:     defaultNotifyTimeout,
		},
		Import: Import{
			Extensions:         []string{defaultWatchExtension},
			WriteSettleSeconds: defaultWriteSettleSeconds,
			SampleDistance:     defaultSampleDistance,
			Timezone:           "local",
			MediaRescanDelay:   defaultMediaRescanDelay,
		},
		Workflow: Workflow{
			TrackWorkers:       defaultTrackWorkers,
			ImageWorkers:       defaultImageWorkers,
			MaxAttempts:        defaultMaxAttempts,
			RetryBackoff:       defaultRetryBackoff,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Apprise:        true,
			TrackImported:  true,
			ImagesImported: false,
			ImportFailed:   true,
		},
		API: API{
			Enabled: true,
			Metrics: true,
		},
		Events: Events{
			HistorySize:      defaultEventHistorySize,
			DeliveryAttempts: defaultEventDeliveryAttempts,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
