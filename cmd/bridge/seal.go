package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/inbound-bridge/internal/config"
	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/repo"
	"github.com/tbourn/inbound-bridge/internal/vault"
)

// newSealCmd seals a JSON secret bundle read from stdin. With --user and
// --platform the sealed blob is stored as that user's credential; otherwise
// it is printed.
func newSealCmd() *cobra.Command {
	var (
		userID       string
		platform     string
		capabilities []string
	)
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a credential secret bundle read from stdin",
		Long: `Reads a JSON object such as
  {"access_token":"...","refresh_token":"...","expires_at":"2026-01-01T00:00:00Z"}
from stdin and seals it with VAULT_KEY.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			v, err := vault.New(cfg.Vault.Key, vault.Options{})
			if err != nil {
				return err
			}

			var sec domain.Secrets
			dec := json.NewDecoder(cmd.InOrStdin())
			dec.DisallowUnknownFields()
			if err := dec.Decode(&sec); err != nil {
				return fmt.Errorf("read secrets: %w", err)
			}
			if strings.TrimSpace(sec.AccessToken) == "" && strings.TrimSpace(sec.RefreshToken) == "" {
				return errors.New("secrets need an access_token or a refresh_token")
			}
			blob, err := v.SealJSON(sec)
			if err != nil {
				return err
			}

			if userID == "" && platform == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), blob)
				return err
			}
			p := domain.Platform(platform)
			if userID == "" || !p.Valid() {
				return errors.New("--user and a valid --platform (telegram, gmail, google) are both required to store")
			}

			db, err := repo.OpenSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			if err := repo.AutoMigrate(db); err != nil {
				return err
			}
			cred, err := repo.UpsertCredential(cmd.Context(), db, userID, p, strings.Join(capabilities, ","), blob)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %s credential %s for %s\n", p, cred.ID, userID)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "store the sealed bundle for this user id")
	cmd.Flags().StringVar(&platform, "platform", "", "platform of the stored credential")
	cmd.Flags().StringSliceVar(&capabilities, "capabilities", nil, "granted capabilities of a unified (google) credential")
	return cmd
}
