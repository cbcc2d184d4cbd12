package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/repository"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/migrations"
	"github.com/noah-isme/school-mgmt-api/pkg/config"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
	"github.com/noah-isme/school-mgmt-api/pkg/logger"
)

var (
	readPasswordFunc = term.ReadPassword
	gooseRunFunc     = goose.RunContext

	errHelp = errors.New("help provided")
)

type userCreator interface {
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateUserRequest) (*models.User, error)
}

type commandLine struct {
	db    *sql.DB
	users userCreator
	out   io.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logr.Fatal("goose dialect", zap.Error(err))
	}

	cli := &commandLine{
		db:    db.DB,
		users: service.NewUserService(repository.NewUserRepository(db), validator.New(), logr),
		out:   os.Stdout,
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		logr.Fatal("command failed", zap.Error(err))
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate up|down|status|version|redo   - run embedded database migrations")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -role ADMIN|TEACHER|SUPERADMIN - create a user; the password is prompted")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	switch args[1] {
	case "migrate":
		return cli.migrate(ctx, args[2:])
	case "adduser":
		return cli.addUser(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}
	switch args[0] {
	case "up", "down", "status", "version", "redo":
	default:
		return fmt.Errorf("%q: unsupported migrate command", args[0])
	}
	return gooseRunFunc(ctx, args[0], cli.db, ".", args[1:]...)
}

func (cli *commandLine) addUser(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	cmd.SetOutput(cli.out)
	email := cmd.String("email", "", "Login email")
	name := cmd.String("name", "", "Full name")
	role := cmd.String("role", string(models.RoleAdmin), "ADMIN, TEACHER or SUPERADMIN")
	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	if *email == "" || *name == "" {
		cmd.Usage()
		return errHelp
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return errHelp
	}

	// CLI operators may grant any role.
	operator := &models.JWTClaims{UserID: "admin-cli", Role: models.RoleSuperAdmin}
	user, err := cli.users.Create(ctx, operator, service.CreateUserRequest{
		Email:    strings.TrimSpace(*email),
		FullName: strings.TrimSpace(*name),
		Role:     models.UserRole(strings.ToUpper(*role)),
		Password: string(pwd),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
