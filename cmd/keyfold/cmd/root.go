package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "keyfold",
	Short: "Keyfold is a zero-knowledge credential vault",
	Long: `A zero-knowledge credential vault. All entry data is encrypted client-side
under keys derived from the master password; the server only ever stores
ciphertext. Complete documentation is available at https://github.com/keyfold/keyfold`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
