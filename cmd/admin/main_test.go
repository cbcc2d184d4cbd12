package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
)

type stubUsers struct {
	req   service.CreateUserRequest
	actor *models.JWTClaims
	err   error
}

func (s *stubUsers) Create(ctx context.Context, actor *models.JWTClaims, req service.CreateUserRequest) (*models.User, error) {
	s.actor = actor
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: "u-1", Email: req.Email, Role: req.Role}, nil
}

func newTestCLI(users *stubUsers) (*commandLine, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &commandLine{users: users, out: out}, out
}

func TestCommandLineUsage(t *testing.T) {
	cli, out := newTestCLI(&stubUsers{})
	assert.ErrorIs(t, cli.run(context.Background(), []string{"admin"}), errHelp)
	assert.ErrorIs(t, cli.run(context.Background(), []string{"admin", "lol"}), errHelp)
	assert.Contains(t, out.String(), "migrate up|down|status")
}

func TestCommandLineMigrate(t *testing.T) {
	var gotCommand string
	var gotArgs []string
	gooseRunFunc = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		gotCommand = command
		gotArgs = args
		return nil
	}
	cli, _ := newTestCLI(&stubUsers{})

	require.NoError(t, cli.run(context.Background(), []string{"admin", "migrate", "up"}))
	assert.Equal(t, "up", gotCommand)
	assert.Empty(t, gotArgs)

	assert.ErrorIs(t, cli.run(context.Background(), []string{"admin", "migrate"}), errHelp)
	err := cli.run(context.Background(), []string{"admin", "migrate", "reset"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migrate command")
}

func TestCommandLineAddUser(t *testing.T) {
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cret-pass"), nil }
	users := &stubUsers{}
	cli, out := newTestCLI(users)

	err := cli.run(context.Background(), []string{"admin", "adduser", "-email", " head@school.test ", "-name", "Head Teacher", "-role", "teacher"})
	require.NoError(t, err)
	assert.Equal(t, "head@school.test", users.req.Email)
	assert.Equal(t, models.RoleTeacher, users.req.Role)
	assert.Equal(t, "s3cret-pass", users.req.Password)
	require.NotNil(t, users.actor)
	assert.Equal(t, models.RoleSuperAdmin, users.actor.Role)
	assert.Contains(t, out.String(), "created TEACHER user head@school.test")
}

func TestCommandLineAddUserErrors(t *testing.T) {
	cli, _ := newTestCLI(&stubUsers{})
	assert.ErrorIs(t, cli.run(context.Background(), []string{"admin", "adduser", "-name", "No Email"}), errHelp)

	readPasswordFunc = func(fd int) ([]byte, error) { return nil, nil }
	assert.ErrorIs(t, cli.run(context.Background(), []string{"admin", "adduser", "-email", "a@b.test", "-name", "A"}), errHelp)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("s3cret-pass"), nil }
	failing, _ := newTestCLI(&stubUsers{err: errors.New("email already registered")})
	assert.EqualError(t, failing.run(context.Background(), []string{"admin", "adduser", "-email", "a@b.test", "-name", "A"}), "email already registered")
}
