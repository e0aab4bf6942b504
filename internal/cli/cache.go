package cli

import (
	"github.com/spf13/cobra"

	"github.com/quotadash/quotadash/internal/keychain"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the keychain lookup cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached keychain lookups",
	Long:  "Drop all cached keychain results so the next fetch queries the OS credential store directly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		keychain.New().ClearAll()
		out("✓ Cleared keychain cache (%s)\n", keychain.DefaultCachePath())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
