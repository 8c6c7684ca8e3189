package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/asaidimu/go-restful/contrib/admin"
	"github.com/asaidimu/go-restful/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var addrPortPattern = regexp.MustCompile(`^(?:(\d{1,3}(?:\.\d{1,3}){3}|\[[a-fA-F0-9:]+\]|[a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*):)?(\d+)$`)

const (
	DefaultAddr = "127.0.0.1"
	DefaultPort = 8000
)

// ParseAddrPort parses "port", "ipv4:port", "[ipv6]:port" or "fqdn:port".
// IPv6 hosts are returned without brackets and an empty host as DefaultAddr.
func ParseAddrPort(s string) (string, int, error) {
	m := addrPortPattern.FindStringSubmatch(s)
	if m == nil {
		return "", 0, fmt.Errorf("%q is not a valid port number or address:port pair", s)
	}
	port, err := strconv.Atoi(m[2])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%q is not a valid port number", m[2])
	}
	host := strings.TrimSuffix(strings.TrimPrefix(m[1], "["), "]")
	if host == "" {
		host = DefaultAddr
	}
	return host, port, nil
}

// listenError replaces the common socket errors with readable messages.
func listenError(err error) error {
	switch {
	case errors.Is(err, syscall.EACCES):
		return errors.New("you don't have permission to access that port")
	case errors.Is(err, syscall.EADDRINUSE):
		return errors.New("that port is already in use")
	case errors.Is(err, syscall.EADDRNOTAVAIL):
		return errors.New("that IP address can't be assigned to")
	}
	return err
}

func banner(w io.Writer, now time.Time, addr string) {
	fmt.Fprintln(w, now.Format("January 02, 2006 - 15:04:05"))
	fmt.Fprintf(w, "go-restful version %s\n", Version)
	fmt.Fprintf(w, "Starting development server at http://%s/\n", addr)
	fmt.Fprintln(w, "Quit the server with CONTROL-C.")
}

// Application mounts the admin routes under /admin and the project routes
// at the root, then builds the HTTP application.
func (rt *Runtime) Application(routes RoutesFunc) (*server.Application, error) {
	router := server.NewRouter()
	adminRoutes, err := rt.Admin.Router()
	if err != nil {
		return nil, err
	}
	if err := router.Include("/admin", adminRoutes); err != nil {
		return nil, err
	}
	if routes != nil {
		project, err := routes(rt)
		if err != nil {
			return nil, err
		}
		if project != nil {
			if err := router.Include("/", project); err != nil {
				return nil, err
			}
		}
	}
	cfg := rt.Config
	return server.New(router, server.Options{
		Name:        cfg.Name,
		Logger:      rt.Logger,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		RateLimit:   cfg.RateLimit.RPS,
		RateBurst:   cfg.RateLimit.Burst,
		Health: func(ctx context.Context) error {
			return rt.DB.DB().PingContext(ctx)
		},
	})
}

func (a *App) runserverCommand() *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "runserver [addr:port]",
		Short: "Start the HTTP server",
		Long: "Start the HTTP server. The address defaults to the configured bind " +
			"address; a bare port listens on " + DefaultAddr + ".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port := a.cfg.Bind.Host, a.cfg.Bind.Port
			if len(args) == 1 {
				var err error
				if host, port, err = ParseAddrPort(args[0]); err != nil {
					return err
				}
			}
			if host == "" {
				host = DefaultAddr
			}
			if port == 0 {
				port = DefaultPort
			}
			a.cfg.Bind.Host, a.cfg.Bind.Port = host, port

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			app, err := rt.Application(a.routes)
			if err != nil {
				return err
			}
			watcher, err := rt.Admin.Watch(app.Registry(), server.MetricName(rt.Config.Name))
			if err != nil {
				return err
			}
			defer watcher.Close()
			janitor, err := admin.NewTokenJanitor(rt.Admin.Store, rt.Logger, admin.WithSchedule(schedule))
			if err != nil {
				return err
			}
			janitor.Start()
			defer janitor.Stop()

			addr := a.cfg.Bind.Address()
			banner(cmd.OutOrStdout(), time.Now(), addr)
			if err := app.Run(ctx, addr); err != nil {
				rt.Logger.Error("Server stopped", zap.Error(err))
				return listenError(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "janitor", admin.DefaultJanitorSchedule, "cron schedule of the expired-token cleanup")
	return cmd
}
