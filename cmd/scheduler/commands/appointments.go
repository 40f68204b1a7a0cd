package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
)

// ReserveCmd creates the reserve command
func ReserveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <date> <vaccine> [caregiver]",
		Short: "Book an appointment; without a caregiver the first available one is used",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := appointment.ParseDate(args[0])
			if err != nil {
				return err
			}
			vaccine := args[1]

			patient, err := app.Login(account.RolePatient)
			if err != nil {
				return err
			}

			var appt *appointment.Appointment
			if len(args) == 3 {
				id, err := app.App.Appointments.ReserveAppointment(app.Ctx, appointment.ReserveRequest{
					Patient:   patient.Username,
					Caregiver: args[2],
					Vaccine:   vaccine,
					Date:      date,
				})
				if err != nil {
					return fmt.Errorf("failed to reserve: %w", err)
				}
				appt = &appointment.Appointment{ID: id, CaregiverName: args[2]}
			} else {
				appt, err = app.App.Appointments.ReserveFirstAvailable(app.Ctx, patient.Username, vaccine, date)
				if err != nil {
					return fmt.Errorf("failed to reserve: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Appointment ID: %s, Caregiver username: %s\n", appt.ID, appt.CaregiverName)
			return nil
		},
	}
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <appointment_id>",
		Short: "Cancel one of your appointments and reopen the caregiver's day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := app.LoginAny()
			if err != nil {
				return err
			}

			vaccine, err := app.App.Appointments.CancelAppointment(app.Ctx, requester, args[0])
			if err != nil {
				return fmt.Errorf("failed to cancel: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled appointment %s; one %s dose returned to stock\n", args[0], vaccine)
			return nil
		},
	}
}

// ShowAppointmentsCmd creates the show-appointments command
func ShowAppointmentsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show-appointments",
		Short: "List your appointments ordered by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := app.LoginAny()
			if err != nil {
				return err
			}

			appts, err := app.App.Appointments.ListAppointments(app.Ctx, requester)
			if err != nil {
				return fmt.Errorf("failed to list appointments: %w", err)
			}

			if len(appts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No appointments.")
				return nil
			}

			for _, a := range appts {
				// show the other party
				other := a.PatientName
				if requester.Role == account.RolePatient {
					other = a.CaregiverName
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", a.ID, a.VaccineName, a.Date.Format(appointment.DateLayout), other)
			}
			return nil
		},
	}
}
