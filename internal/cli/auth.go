package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oksasatya/go-cantina-online/pkg/session"
)

var errNotSignedIn = errors.New("not signed in, run: cantinactl login")

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
	Remember bool
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the cantina",
		Long: `Sign in with email and password.

With --remember (the default) the session is saved to the session file and
reused by later commands. --remember=false only checks the credentials.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&opts.Remember, "remember", true, "keep the session for later commands")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func runLogin(ctx context.Context, stdout, stderr io.Writer, opts *LoginOptions) error {
	m, err := opts.newManager(stderr)
	if err != nil {
		return err
	}
	res := m.SignIn(ctx, opts.Email, opts.Password, opts.Remember)
	if !res.OK {
		return fmt.Errorf("login failed: %s", res.Message)
	}
	fmt.Fprintf(stdout, "Signed in as %s <%s>\n", res.User.Name, res.User.Email)
	return nil
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Sign out and forget the saved session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), rootOpts)
		},
	}
}

func runLogout(ctx context.Context, stdout, stderr io.Writer, opts *RootOptions) error {
	m, err := opts.newManager(stderr)
	if err != nil {
		return err
	}
	// Send the stored refresh cookie so the server answers with a clearing cookie.
	m.Restore()
	if err := m.SignOut(ctx); err != nil && opts.Verbose {
		fmt.Fprintf(stderr, "warning: server logout failed: %v\n", err)
	}
	fmt.Fprintln(stdout, "Signed out")
	return nil
}

func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := bootManager(cmd.Context(), cmd.ErrOrStderr(), rootOpts)
			if err != nil {
				return err
			}
			u := m.User()
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d)\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
}

// bootManager restores the saved session and fails unless it is still valid.
// A transport failure with a cached session is reported, not hidden.
func bootManager(ctx context.Context, stderr io.Writer, opts *RootOptions) (*session.Manager, error) {
	m, err := opts.newManager(stderr)
	if err != nil {
		return nil, err
	}
	if err := m.Boot(ctx); err != nil {
		return nil, fmt.Errorf("could not reach %s: %w", opts.APIURL, err)
	}
	if m.State() != session.StateAuthenticated || m.User() == nil {
		return nil, errNotSignedIn
	}
	return m, nil
}
