package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/saltyorg/autoplay/internal/config"
)

func newProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [NAME]",
		Short: "List device profiles, or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Profiles do not need the database unless the path comes from settings
			loader := config.NewLoader(nil)
			if profilesPath == "" {
				a, err := openApp()
				if err != nil {
					return err
				}
				defer a.Close()
				loader = a.loader
			}

			registry, err := openProfiles(loader)
			if err != nil {
				return err
			}
			defer registry.Close()

			if len(args) == 0 {
				for _, name := range registry.Names() {
					fmt.Println(name)
				}
				return nil
			}

			profile, err := registry.Get(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(profile)
		},
	}
}
