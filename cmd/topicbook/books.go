package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func booksCMD(cfgPath *string) *cobra.Command {
	books := &cobra.Command{
		Use:   "books",
		Short: "Inspect generated books",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List generated books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			names, err := a.store.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a generated book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			doc, err := a.store.Retrieve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc.Content)
			return nil
		},
	}
	books.AddCommand(list, show)
	return books
}
