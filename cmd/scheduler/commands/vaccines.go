package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

// VaccinesCmd creates the vaccines command
func VaccinesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vaccines",
		Short: "List vaccines with doses in stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vaccines, err := app.App.Inventory.ListAvailable(app.Ctx)
			if err != nil {
				return fmt.Errorf("failed to list vaccines: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d vaccines:\n\n", len(vaccines))
			for _, v := range vaccines {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s: %d doses\n", v.Name, v.Doses)
			}
			return nil
		},
	}
}

// AddDosesCmd creates the add-doses command
func AddDosesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-doses <vaccine> <count>",
		Short: "Add doses to stock, registering the vaccine on first use",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("count must be a number: %w", err)
			}

			if _, err := app.Login(account.RoleCaregiver); err != nil {
				return err
			}

			v, err := app.App.Inventory.AddDoses(app.Ctx, args[0], count)
			if err != nil {
				return fmt.Errorf("failed to add doses: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Doses updated! %s now has %d doses\n", v.Name, v.Doses)
			return nil
		},
	}
}
