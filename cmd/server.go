package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/bluestar"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/handlers"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
	"github.com/jake-scott/bluestar-bridge/pkg/middlewares"
)

var _serverCmdOpts struct {
	httpPort        uint16
	tlsCertPath     string
	tlsKeyPath      string
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	logRequests     bool
	corsOrigins     []string
	concurrency     int
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the device control API",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doServer(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkRequiredFlags("account.auth-id", "account.password"); err != nil {
			return err
		}

		// TLS needs both halves or neither
		if viper.IsSet("http.cert") != viper.IsSet("http.key") {
			return checkRequiredFlags("http.cert", "http.key")
		}

		return nil
	},
}

func init() {
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.httpPort, "http-port", 8080, "HTTP port number")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsCertPath, "tls-cert", "", "TLS certificate file, enables HTTPS")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsKeyPath, "tls-key", "", "TLS key file")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*90, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")
	serverCmd.Flags().StringSliceVar(&_serverCmdOpts.corsOrigins, "cors-origin", nil, "origins allowed to call the API from a browser")
	serverCmd.Flags().IntVar(&_serverCmdOpts.concurrency, "status-concurrency", 4, "maximum concurrent device status lookups")

	errPanic(viper.GetViper().BindPFlag("http.port", serverCmd.Flags().Lookup("http-port")))
	errPanic(viper.GetViper().BindPFlag("http.cert", serverCmd.Flags().Lookup("tls-cert")))
	errPanic(viper.GetViper().BindPFlag("http.key", serverCmd.Flags().Lookup("tls-key")))
	errPanic(viper.GetViper().BindPFlag("http.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.cors.allowed-origins", serverCmd.Flags().Lookup("cors-origin")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))
	errPanic(viper.GetViper().BindPFlag("status.concurrency", serverCmd.Flags().Lookup("status-concurrency")))

	rootCmd.AddCommand(serverCmd)
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}

// newRouter builds the control API.  CORS wraps the whole router because
// mux only runs its middlewares for matched routes, and preflights match
// none.
func newRouter(client *bluestar.Client, logRequests bool) http.Handler {
	dh := handlers.NewDeviceHandler(client, viper.GetInt("status.concurrency"))
	hh := handlers.NewHealthHandler(client)

	r := mux.NewRouter()
	r.Use(middlewares.NewCorrelationMw())
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())

	dh.Register(r)
	r.Handle("/health", &hh).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler(metrics.NewRegistry())).Methods(http.MethodGet)

	if origins := viper.GetStringSlice("http.cors.allowed-origins"); len(origins) > 0 {
		return middlewares.NewCorsMw(middlewares.CorsOptions(origins))(r)
	}
	return r
}

func doServer() error {
	wait := viper.GetDuration("http.graceful-timeout")
	port := viper.GetUint("http.port")
	certFile := viper.GetString("http.cert")
	keyFile := viper.GetString("http.key")

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("http.read-timeout"),
		WriteTimeout: viper.GetDuration("http.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      newRouter(client, logRequests),
	}

	logging.Logger(nil).Infof("Serving on port %d", port)
	go func() {
		var err error
		if certFile != "" {
			err = s.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal
	<-c

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(ctx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}
	logging.Logger(nil).Info("exiting")
	return nil
}
