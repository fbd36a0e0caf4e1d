package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/user"
)

type addUserInput struct {
	username string
	email    string
	name     string
	password string
	roles    []string
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, in addUserInput) (user.User, error) {
	uname := core.CleanString(in.username, true /* lower */)
	email := core.CleanString(in.email, true /* lower */)

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, lookup)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{Username: uname, Email: email}
	}
	if email != "" {
		usr.Email = email
	}
	if name := core.CleanString(in.name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = usr.Username
	}
	if in.roles != nil {
		usr.Roles = in.roles
	}
	usr.IsActive = true

	if err = user.ValidatePassword(in.password, usr.Name, usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	if err = usr.SetPassword(in.password); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}
	return cli.usrSvc.Save(ctx, usr)
}

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
