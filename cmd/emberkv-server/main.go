// Command emberkv-server runs a single-node, in-memory RESP2/RESP3
// key/value server.
package main

import (
	"fmt"
	"os"

	"github.com/emberkv/emberkv"
	"github.com/emberkv/emberkv/pkg/command"
	"github.com/emberkv/emberkv/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		network     string
		addr        string
		multicore   bool
		reusePort   bool
		logFile     string
		logLevel    string
		tlsEnable   bool
		tlsCertFile string
		tlsKeyFile  string
	)

	cmd := &cobra.Command{
		Use:   "emberkv-server",
		Short: "Run the emberkv in-memory key/value server",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger(logFile, logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ks := store.New(store.RealClock)
			reg := command.NewRegistry()
			if err := command.RegisterAll(reg, ks); err != nil {
				return err
			}

			hub := emberkv.NewHub(reg, ks, logger)
			protoAddr := fmt.Sprintf("%s://%s", network, addr)

			logger.Info("starting emberkv server", zap.String("addr", protoAddr))
			return emberkv.ListenAndServe(protoAddr, emberkv.Options{
				Multicore:       multicore,
				ReusePort:       reusePort,
				TLSListenEnable: tlsEnable,
				TLSCertFile:     tlsCertFile,
				TLSKeyFile:      tlsKeyFile,
			}, hub)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&network, "network", "tcp", "server network")
	flags.StringVar(&addr, "addr", "127.0.0.1:1234", "server listen address")
	flags.BoolVar(&multicore, "multicore", false, "enable multi-core event loops")
	flags.BoolVar(&reusePort, "reuse-port", false, "enable SO_REUSEPORT")
	flags.StringVar(&logFile, "log-file", "", "path to a log file; empty logs to stderr")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&tlsEnable, "tls", false, "enable the TLS proxy listener")
	flags.StringVar(&tlsCertFile, "tls-cert", "", "TLS certificate file")
	flags.StringVar(&tlsKeyFile, "tls-key", "", "TLS private key file")

	return cmd
}

// newLogger builds a zap.Logger writing structured JSON. With logFile set,
// output is rotated via lumberjack instead of growing a single file
// forever; otherwise it goes to stderr.
func newLogger(logFile, level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if logFile != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		})
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, lvl)
	return zap.New(core), nil
}
