// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/wayfinder/internal/config"
	"github.com/sigil-dev/wayfinder/internal/secrets"
	wferr "github.com/sigil-dev/wayfinder/pkg/errors"
)

// secretStoreFactory creates the store used for keyring:// references and
// the secret command. Tests substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// NewRootCmd creates the root wayfinder command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wayfinder",
		Short:         "Wayfinder: LLM-planned relational search",
		Long:          "Wayfinder reads a seed document, queries a relation oracle for the people and places it names, and lets an LLM plan where to look next until the target is located.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			return setupLogging(cmd.ErrOrStderr(), viper.GetString("log.level"), viper.GetString("log.format"), viper.GetBool("verbose"))
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newSearchCmd(),
		newRunsCmd(),
		newServeCmd(),
		newDoctorCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings and an optional config file so the precedence
// flag > env > file > defaults holds everywhere.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return wferr.Errorf(wferr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset: with it Viper also tries the bare
		// name, which collides with a ./wayfinder binary.
		v.SetConfigName("wayfinder")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/wayfinder")
		v.AddConfigPath("/etc/wayfinder")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return wferr.Errorf(wferr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if cmd.Annotations[skipBootstrapAnnotation] == "" {
				if path := config.BootstrapConfig(); path != "" {
					v.SetConfigFile(path)
					if err := v.ReadInConfig(); err != nil {
						return wferr.Errorf(wferr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
					}
				}
			}
		}
	}
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return wferr.Errorf(wferr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}

// loadConfig resolves keyring:// references, then decodes and validates
// the global Viper state.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := secrets.ResolveViper(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, wferr.Wrap(err, wferr.CodeCLISetupFailure, "loading config")
	}
	return cfg, nil
}
