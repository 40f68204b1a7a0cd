package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/app"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
)

// AppContext holds what every command needs. Fields are filled before RunE runs.
type AppContext struct {
	Ctx    context.Context
	Cfg    config.Config
	Logger *zap.Logger
	App    *app.App

	Role     string
	Username string
	Password string
}

// Login authenticates the --role/--username/--password credentials and requires
// the given role.
func (a *AppContext) Login(want account.Role) (appointment.Principal, error) {
	if a.Role == "" {
		a.Role = want.String()
	}
	role, err := account.ParseRole(a.Role)
	if err != nil {
		return appointment.Principal{}, err
	}
	if role != want {
		return appointment.Principal{}, fmt.Errorf("please login as a %s first", want)
	}
	return a.login(role)
}

// LoginAny authenticates as whichever role --role names.
func (a *AppContext) LoginAny() (appointment.Principal, error) {
	if a.Role == "" {
		return appointment.Principal{}, errors.New("--role is required (caregiver or patient)")
	}
	role, err := account.ParseRole(a.Role)
	if err != nil {
		return appointment.Principal{}, err
	}
	return a.login(role)
}

func (a *AppContext) login(role account.Role) (appointment.Principal, error) {
	if a.Username == "" || a.Password == "" {
		return appointment.Principal{}, errors.New("--username and --password are required")
	}

	acct, err := a.App.Accounts.Authenticate(a.Ctx, role, a.Username, a.Password)
	if err != nil {
		return appointment.Principal{}, err
	}
	return appointment.Principal{Role: acct.Role, Username: acct.Username}, nil
}
