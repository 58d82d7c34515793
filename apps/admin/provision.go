package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mystudenthub/backend/core/user"
)

func (cli *commandLine) provisionCmd() *cobra.Command {
	var email, role, name, circleID, department string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a user with their role profile. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || role == "" || name == "" {
				_ = cmd.Usage()
				return errHelp
			}

			var profile user.Profile
			switch r := user.Role(role); r {
			case user.RoleAdmin:
				profile = user.AdminProfile{Name: name}
			case user.RoleTeacher:
				profile = user.TeacherProfile{Name: name, Department: department}
			case user.RoleStudent:
				profile = user.StudentProfile{Name: name, CircleID: circleID}
			default:
				return fmt.Errorf("%q: no such role", role)
			}

			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			res, err := cli.provisioner.Provision(cmd.Context(), user.NewUser{
				Email:    email,
				Password: pwd,
				Role:     user.Role(role),
				Profile:  profile,
			}, cliActor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provisioned %s %s (uid %s)\n", role, email, res.UID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&email, "email", "", "The user's email address")
	flags.StringVar(&role, "role", "", "admin, teacher or student")
	flags.StringVar(&name, "name", "", "The user's display name")
	flags.StringVar(&circleID, "circle", "", "The student's circle id")
	flags.StringVar(&department, "department", "", "The teacher's department")
	return cmd
}
