package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/clinic-service/internal/client/session"
	"github.com/spec-kit/clinic-service/internal/domain"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and print the session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signIn(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		printState(cmd.OutOrStdout(), s.app.Session.State())
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the identity the server decodes from the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signIn(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		claim, err := s.app.API.Me(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch identity: %w", err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROLE\tVERIFICATION")
		fmt.Fprintf(w, "%s\t%s\t%s\n", claim.ID, claim.Role, statusText(claim.VerificationStatus))
		return w.Flush()
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Sign in, exchange the refresh cookie for a new access token and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signIn(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		before := s.app.Session.State().AccessToken
		if _, err := s.app.Session.Refresh(cmd.Context()); err != nil {
			return err
		}
		state := s.app.Session.State()
		printState(cmd.OutOrStdout(), state)
		fmt.Fprintf(cmd.OutOrStdout(), "token rotated: %t\n", state.AccessToken != before)
		return nil
	},
}

func printState(out io.Writer, state session.State) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AUTHENTICATED\tROLE\tVERIFICATION\tTOKEN")
	fmt.Fprintf(w, "%t\t%s\t%s\t%s\n", state.IsAuthenticated, state.Role, statusText(state.VerificationStatus), abbreviate(state.AccessToken))
	_ = w.Flush()
}

func statusText(status *domain.VerificationStatus) string {
	if status == nil {
		return "-"
	}
	return string(*status)
}

func abbreviate(token string) string {
	if len(token) <= 16 {
		return token
	}
	return token[:8] + "..." + token[len(token)-8:]
}
