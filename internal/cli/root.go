// Package cli implements cantinactl, a terminal client for the cantina API.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oksasatya/go-cantina-online/pkg/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL      string
	SessionPath string
	Timeout     time.Duration
	Verbose     bool
}

const defaultAPIURL = "http://localhost:4000"

// NewRootCommand creates the root command for cantinactl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cantinactl",
		Short: "cantinactl - order from the cantina",
		Long:  "Browse the cantina menu, place orders and manage your session from the terminal.",
	}

	apiDefault := os.Getenv("CANTINA_API_URL")
	if apiDefault == "" {
		apiDefault = defaultAPIURL
	}
	sessionDefault, err := session.DefaultPath()
	if err != nil {
		sessionDefault = ".cantina-session.json"
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", apiDefault, "API base URL")
	cmd.PersistentFlags().StringVar(&opts.SessionPath, "session", sessionDefault, "file holding a remembered session")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", session.DefaultTimeout, "per-request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))

	return cmd
}

// newManager builds a session manager backed by the session file.
func (o *RootOptions) newManager(stderr io.Writer) (*session.Manager, error) {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if o.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	m, err := session.New(session.Options{
		BaseURL: o.APIURL,
		Durable: session.NewFileStore(o.SessionPath),
		Timeout: o.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid --api: %w", err)
	}
	return m, nil
}
