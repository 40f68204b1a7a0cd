package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

// CreatePatientCmd creates the create-patient command
func CreatePatientCmd(app *AppContext) *cobra.Command {
	return createAccountCmd(app, account.RolePatient)
}

// CreateCaregiverCmd creates the create-caregiver command
func CreateCaregiverCmd(app *AppContext) *cobra.Command {
	return createAccountCmd(app, account.RoleCaregiver)
}

func createAccountCmd(app *AppContext, role account.Role) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("create-%s <username> <password>", role),
		Short: fmt.Sprintf("Register a new %s", role),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := app.App.Accounts.Register(app.Ctx, role, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", role, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", role, acct.Username)
			return nil
		},
	}
}
