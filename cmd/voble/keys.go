package main

import (
	"voble/internal/config"
	"voble/internal/keys"
	"voble/internal/wallet"

	"github.com/spf13/cobra"
)

type keysOutput struct {
	Player     string `json:"player"`
	SessionKey string `json:"sessionKey"`
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Print the wallet address and its persisted session key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serverCfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			walletCfg, err := config.LoadWallet()
			if err != nil {
				return err
			}
			if walletCfg.KeypairPath == "" {
				return errNoKeypair
			}
			w, err := wallet.LoadKeyfile(walletCfg.KeypairPath, nil)
			if err != nil {
				return err
			}
			kv, closeKV, err := openStore(cmd.Context(), serverCfg)
			if err != nil {
				return err
			}
			defer closeKV()
			key, err := keys.NewProvider(kv).SessionKey(cmd.Context(), w.Address())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keysOutput{
				Player:     w.Address().String(),
				SessionKey: key.PublicKey().String(),
			})
		},
	}
}
