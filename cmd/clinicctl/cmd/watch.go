package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/clinic-service/internal/client/realtime"
	"github.com/spec-kit/clinic-service/internal/client/session"
	"github.com/spec-kit/clinic-service/internal/domain"
)

var refreshEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay signed in and print notifications as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signIn(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		out := cmd.OutOrStdout()
		for _, n := range s.app.Inbox.Items() {
			fmt.Fprintf(out, "[stored] %s: %s\n", n.Title, n.Description)
		}
		s.app.Inbox.Watch(func(n domain.Notification) {
			fmt.Fprintf(out, "[push] %s: %s\n", n.Title, n.Description)
		})
		s.app.Binder.On(realtime.EventVerificationStatus, func(data json.RawMessage) {
			fmt.Fprintf(out, "[verification] %s\n", data)
		})

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var tick <-chan time.Time
		if refreshEvery > 0 {
			ticker := time.NewTicker(refreshEvery)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-sigCh:
				return nil
			case <-cmd.Context().Done():
				return nil
			case <-tick:
				if _, err := s.app.Session.Refresh(cmd.Context()); err != nil {
					if errors.Is(err, session.ErrRefreshFailed) {
						return fmt.Errorf("session ended: %w", err)
					}
					return err
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&refreshEvery, "refresh-every", 10*time.Minute, "refresh the access token on this period (0 disables)")
}
