package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *App) encryptCommand() *cobra.Command {
	var decrypt bool
	cmd := &cobra.Command{
		Use:   "encrypt <text>",
		Short: "Encrypt a config value with cipher.key",
		Long: "Encrypt a config value with cipher.key. The output, prefixed with " +
			CipherPrefix + ", can replace db.url, cache.redis.url or auth.jwt_secret.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipher(a.cfg)
			if err != nil {
				return err
			}
			if c == nil {
				return errors.New("cipher.key is not set")
			}
			if decrypt {
				plain, err := c.Decrypt(strings.TrimPrefix(args[0], CipherPrefix))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plain)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), CipherPrefix+c.Encrypt(args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&decrypt, "decrypt", "d", false, "decrypt instead")
	return cmd
}
