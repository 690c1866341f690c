package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/pgp-seed-backup/api"
	"github.com/ruteri/pgp-seed-backup/common"
	"github.com/urfave/cli/v2"
)

// SetupLogger builds a logger from the common log flags.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ConfigureServer reads the server flags into an HTTPServerConfig.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		MaxUploadBytes:           cCtx.Int64(MaxUploadBytesFlag.Name),
		UploadRPS:                cCtx.Float64(UploadRPSFlag.Name),
		UploadBurst:              cCtx.Int(UploadBurstFlag.Name),
		UploadClientRPS:          cCtx.Float64(UploadClientRPSFlag.Name),
		UploadClientBurst:        cCtx.Int(UploadClientBurstFlag.Name),
	}
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: []string{"LOG_JSON"},
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: []string{"LOG_DEBUG"},
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"METRICS_ADDR"},
}
var MaxUploadBytesFlag = &cli.Int64Flag{
	Name:    "max-upload-bytes",
	Value:   api.MaxUploadSize,
	Usage:   "maximum size of one backup upload request",
	EnvVars: []string{"MAX_UPLOAD_BYTES"},
}
var UploadRPSFlag = &cli.Float64Flag{
	Name:    "upload-rps",
	Value:   0.2,
	Usage:   "uploads per second allowed per fingerprint, 0 disables the limit",
	EnvVars: []string{"UPLOAD_RPS"},
}
var UploadBurstFlag = &cli.IntFlag{
	Name:    "upload-burst",
	Value:   3,
	Usage:   "upload burst allowed per fingerprint",
	EnvVars: []string{"UPLOAD_BURST"},
}
var UploadClientRPSFlag = &cli.Float64Flag{
	Name:    "upload-client-rps",
	Value:   1,
	Usage:   "uploads per second allowed per client address, 0 disables the limit",
	EnvVars: []string{"UPLOAD_CLIENT_RPS"},
}
var UploadClientBurstFlag = &cli.IntFlag{
	Name:    "upload-client-burst",
	Value:   10,
	Usage:   "upload burst allowed per client address",
	EnvVars: []string{"UPLOAD_CLIENT_BURST"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
	MaxUploadBytesFlag,
	UploadRPSFlag,
	UploadBurstFlag,
	UploadClientRPSFlag,
	UploadClientBurstFlag,
}
