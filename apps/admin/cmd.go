package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/agenda/core/user"
	"github.com/trezcool/agenda/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword      // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sqlx.DB
	engine string
	usrSvc user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a database migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)")
	fmt.Println("  adduser -username USERNAME - create an active user, or reactivate an existing one & reset its password")
	fmt.Println("  resetpassword -username USERNAME - reset user's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		pwd, err := cli.parseUserCmd(addUserCmd, addUserUname, args[2:])
		if err != nil {
			return err
		}
		return cli.addUser(*addUserUname, pwd)
	case "resetpassword":
		pwd, err := cli.parseUserCmd(resetPasswordCmd, resetPasswordUname, args[2:])
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

// parseUserCmd parses the -username flag then prompts for the password.
func (cli *commandLine) parseUserCmd(cmd *flag.FlagSet, uname *string, args []string) (string, error) {
	if err := cmd.Parse(args); err != nil {
		return "", errHelp
	}
	if *uname == "" {
		cmd.Usage()
		return "", errHelp
	}
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, cli.engine, args[1:]...)
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, pwd string) error {
	usr, err := cli.usrSvc.UpdateOrCreate(context.Background(), user.SetUserPassword{Username: uname, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Printf("user %q saved\n", usr.Username)
	return nil
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.usrSvc.SetPassword(context.Background(), user.SetUserPassword{Username: uname, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Printf("password of %q updated\n", usr.Username)
	return nil
}
