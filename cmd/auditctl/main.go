// Command auditctl is the operator tool for auditflow: an offline weight
// calculator, a YAML standard importer and a score viewer.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// globalFlags are shared by every command talking to a server
type globalFlags struct {
	server string
	token  string
	format string
}

func main() {
	_ = godotenv.Load()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Operate auditflow templates, weights and audits",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.server, "server", envOr("AUDITFLOW_URL", "http://localhost:8080"), "auditflow base URL")
	pf.StringVar(&flags.token, "token", os.Getenv("AUDITFLOW_TOKEN"), "bearer token sent to the server")
	pf.StringVar(&flags.format, "format", "text", "output format: text or json")

	root.AddCommand(
		newWeightsCmd(&flags),
		newImportCmd(&flags),
		newScoreCmd(&flags),
		newTokenCmd(),
	)
	return root
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return codeError(2, "--format must be text or json, got %q", format)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
