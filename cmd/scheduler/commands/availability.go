package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
)

// UploadAvailabilityCmd creates the upload-availability command
func UploadAvailabilityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-availability <date>",
		Short: "Open a bookable day (YYYY-MM-DD) for the logged-in caregiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}

			caregiver, err := app.Login(account.RoleCaregiver)
			if err != nil {
				return err
			}

			if err := app.App.Appointments.UploadAvailability(app.Ctx, caregiver.Username, date); err != nil {
				return fmt.Errorf("failed to upload availability: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Availability uploaded!")
			return nil
		},
	}
}

// UploadRecurringCmd creates the upload-recurring command
func UploadRecurringCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-recurring <start> <rrule>",
		Short: "Open every day an RRULE yields from start, e.g. FREQ=WEEKLY;BYDAY=MO,WE;COUNT=8",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}

			caregiver, err := app.Login(account.RoleCaregiver)
			if err != nil {
				return err
			}

			result, err := app.App.Appointments.UploadRecurringAvailability(app.Ctx, caregiver.Username, start, args[1])
			if err != nil {
				return fmt.Errorf("failed to upload availability: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nUploaded %d dates:\n", len(result.Uploaded))
			for _, d := range result.Uploaded {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", d.Format("2006-01-02 (Monday)"))
			}
			if len(result.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSkipped %d dates:\n", len(result.Skipped))
				for _, s := range result.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", s.Date.Format(appointment.DateLayout), s.Reason)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

// SearchCmd creates the search command
func SearchCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <date>",
		Short: "List caregivers available on a date and vaccines in stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}

			if _, err := app.LoginAny(); err != nil {
				return err
			}

			caregivers, err := app.App.Appointments.SearchAvailability(app.Ctx, date)
			if err != nil {
				return fmt.Errorf("failed to search availability: %w", err)
			}
			vaccines, err := app.App.Inventory.ListAvailable(app.Ctx)
			if err != nil {
				return fmt.Errorf("failed to list vaccines: %w", err)
			}

			if len(caregivers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No caregiver is available on this date.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Caregivers: %s\n", strings.Join(caregivers, " "))
			}

			if len(vaccines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No vaccine doses in stock.")
			}
			for _, v := range vaccines {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", v.Name, v.Doses)
			}
			return nil
		},
	}
}
