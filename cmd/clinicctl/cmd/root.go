package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/client"
	"github.com/spec-kit/clinic-service/internal/client/transport"
	"github.com/spec-kit/clinic-service/internal/config"
	"github.com/spec-kit/clinic-service/internal/observability"
)

var (
	serverURL string
	socketURL string
	username  string
	password  string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "clinicctl",
	Short: "Clinic CLI - session client for the clinic API",
	Long: `clinicctl signs in to the clinic API, keeps the access token fresh and
listens on the realtime channel. The refresh cookie lives only as long as the
process, so every command signs in and logs out again.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (default CLINIC_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&socketURL, "socket", "", "realtime socket URL (default CLINIC_SOCKET_URL)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "account username")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "account password (default CLINIC_PASSWORD)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log client activity to stderr")
	rootCmd.AddCommand(loginCmd, meCmd, refreshCmd, watchCmd)
}

// signedIn is one signed-in client.
type signedIn struct {
	app    *client.App
	logger *zap.Logger
}

// signIn builds the client from config and flags and logs in.
func signIn(ctx context.Context) (*signedIn, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	clientCfg := cfg.Client
	if serverURL != "" {
		clientCfg.ServerURL = serverURL
	}
	if socketURL != "" {
		clientCfg.SocketURL = socketURL
	}

	logCfg := config.LoggerConfig{Level: "error", Output: "stderr"}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if username == "" {
		return nil, fmt.Errorf("--username is required")
	}
	secret := password
	if secret == "" {
		secret = os.Getenv("CLINIC_PASSWORD")
	}
	if secret == "" {
		return nil, fmt.Errorf("--password or CLINIC_PASSWORD is required")
	}

	app, err := client.New(clientCfg, &transport.Location{}, logger)
	if err != nil {
		return nil, err
	}
	if err := app.SignIn(ctx, username, secret); err != nil {
		app.Session.Close()
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return &signedIn{app: app, logger: logger}, nil
}

// close logs out on the server and releases the client.
func (s *signedIn) close() {
	s.app.Shutdown(context.Background())
	_ = s.logger.Sync()
}
