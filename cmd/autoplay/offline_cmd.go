package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newOfflineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Manage local copies played without the server",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add ITEM_ID PATH",
			Short: "Register a downloaded file for an item",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp()
				if err != nil {
					return err
				}
				defer a.Close()

				server, err := a.server()
				if err != nil {
					return err
				}
				item, err := server.GetItem(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}

				asset, err := a.offline.Add(*item, args[1])
				if err != nil {
					return err
				}
				fmt.Printf("%s\t%s\n", asset.ItemID, asset.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered offline copies",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp()
				if err != nil {
					return err
				}
				defer a.Close()

				assets, err := a.offline.List()
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ITEM\tNAME\tPATH\tADDED")
				for _, asset := range assets {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", asset.ItemID, asset.Name, asset.Path, asset.AddedAt.Local().Format("2006-01-02 15:04"))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "remove ITEM_ID",
			Short: "Forget the offline copy of an item (the file is kept)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp()
				if err != nil {
					return err
				}
				defer a.Close()

				return a.offline.Remove(args[0])
			},
		},
	)

	return cmd
}
