// Command authd runs the OAuth 2.1 authorization server: dynamic client
// registration, the GitHub-backed authorization code flow, and the
// forward-auth /verify endpoint an MCP gateway's edge router consults on
// every proxied request. Grounded in the teacher's cmd/dex/poke.go cobra
// root wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func commandRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "authd",
		Short: "OAuth 2.1 authorization server for the MCP gateway fleet",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(2)
		},
	}
	rootCmd.AddCommand(commandServe())
	return rootCmd
}

func main() {
	if err := commandRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
}
