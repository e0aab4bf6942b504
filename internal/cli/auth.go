package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/credfile"
	"github.com/quotadash/quotadash/internal/provider"
)

var authCmd = &cobra.Command{
	Use:   "auth <provider>",
	Short: "Authenticate a provider",
	Long: "Launch a provider's login flow, or store a manually obtained credential.\n" +
		"Cursor has no CLI login; paste its browser session cookie when prompted.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]
		p, ok := provider.Get(providerID)
		if !ok {
			return fmt.Errorf("unknown provider: %s. Available: %s", providerID, strings.Join(provider.ListIDs(), ", "))
		}

		if providerID == "cursor" {
			return authCursor()
		}

		if !p.AutoLogin(cmd.Context()) {
			return fmt.Errorf("could not launch the %s login flow — is `%s` installed?", p.Meta().Name, p.Meta().CLIName)
		}
		out("✓ Launched the %s login flow. Usage appears once it completes.\n", p.Meta().Name)
		return nil
	},
}

// promptSessionToken is a variable so tests can bypass the interactive form.
var promptSessionToken = func() (string, error) {
	var value string
	input := huh.NewInput().
		Title("Cursor session token").
		Description("cursor.com → DevTools → Application → Cookies → __Secure-next-auth.session-token").
		Placeholder("paste token here").
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("token must not be empty")
			}
			return nil
		}).
		Value(&value)

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func authCursor() error {
	token, err := promptSessionToken()
	if err != nil {
		return err
	}

	store := credfile.Store{Path: config.CredentialPath("cursor")}
	if err := store.Merge(map[string]any{"session_token": token}); err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}

	out("✓ Stored Cursor session token at %s\n", store.Path)
	return nil
}
