// File: cmd/poolctl/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-pool/control"
)

func loadConfig(cmd *cobra.Command) (*control.Loader, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	loader, err := control.NewLoader(path)
	if err != nil {
		return nil, err
	}
	if err := control.SetupLogging(loader.Config().Log); err != nil {
		return nil, errors.Wrap(err, "setup logging")
	}
	return loader, nil
}

func RunConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(loader.Config())
		},
	}
}
