package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

func TestLoginRejectsBeforeTouchingStorage(t *testing.T) {
	wrongRole := &AppContext{Role: "patient", Username: "u", Password: "p"}
	_, err := wrongRole.Login(account.RoleCaregiver)
	assert.EqualError(t, err, "please login as a caregiver first")

	badRole := &AppContext{Role: "admin", Username: "u", Password: "p"}
	_, err = badRole.LoginAny()
	assert.Error(t, err)

	noRole := &AppContext{Username: "u", Password: "p"}
	_, err = noRole.LoginAny()
	assert.Error(t, err)

	noPassword := &AppContext{Username: "u"}
	_, err = noPassword.Login(account.RolePatient)
	assert.EqualError(t, err, "--username and --password are required")
	assert.Equal(t, "patient", noPassword.Role)
}
