package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/user"
	"strings"

	"github.com/asaidimu/go-restful/contrib/admin"
	"github.com/asaidimu/go-restful/core"
	"github.com/spf13/cobra"
)

// maxPasswordAttempts bounds changepassword.
const maxPasswordAttempts = 3

var errAborted = errors.New("aborted")

// prompter reads answers line by line. Input is not hidden; pipe passwords in
// for scripting.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{
		in:  bufio.NewReader(cmd.InOrStdin()),
		out: cmd.OutOrStdout(),
		err: cmd.ErrOrStderr(),
	}
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", errAborted
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *prompter) password() (string, error) {
	password, err := p.ask("Password: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errAborted
	}
	return password, nil
}

// passwordTwice asks for a password and its confirmation. ok is false when
// they differ.
func (p *prompter) passwordTwice() (password string, ok bool, err error) {
	if password, err = p.password(); err != nil {
		return "", false, err
	}
	again, err := p.ask("Password (again): ")
	if err != nil {
		return "", false, err
	}
	return password, password == again, nil
}

func (a *App) createuserCommand() *cobra.Command {
	var u admin.NewUser
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create an admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			store := rt.Admin.Store
			p := newPrompter(cmd)

			if u.Username != "" {
				existing, err := store.User(ctx, nil, u.Username)
				if err != nil {
					return err
				}
				if existing != nil {
					return fmt.Errorf("username '%s' is already taken", u.Username)
				}
			}
			for u.Username == "" {
				name, err := p.ask("Username: ")
				if errors.Is(err, errAborted) {
					return errors.New("username cannot be blank")
				}
				if err != nil {
					return err
				}
				if name == "" {
					continue
				}
				existing, err := store.User(ctx, nil, name)
				if err != nil {
					return err
				}
				if existing != nil {
					fmt.Fprintln(p.err, "Error: That username is already taken.")
					continue
				}
				u.Username = name
			}

			for {
				password, ok, err := p.passwordTwice()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(p.err, "Error: Your passwords didn't match.")
					continue
				}
				if strings.TrimSpace(password) == "" {
					fmt.Fprintln(p.err, "Error: Blank passwords aren't allowed.")
					continue
				}
				if err := admin.CheckPasswordPolicy(password); err != nil {
					fmt.Fprintf(p.err, "Error: %v\n", err)
					continue
				}
				u.Password = password
				break
			}

			if _, err := store.AddUser(ctx, nil, u); err != nil {
				return err
			}
			fmt.Fprintln(p.out, "User created successfully.")
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Username, "username", "", "login of the user")
	cmd.Flags().BoolVar(&u.Admin, "admin", false, "make the user an administrator")
	cmd.Flags().BoolVar(&u.System, "system", false, "mark the user as a system account")
	return cmd
}

func (a *App) changepasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "changepassword [username]",
		Short: "Change a user's password",
		Long:  "Change a user's password. The username defaults to the current OS user.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := ""
			if len(args) == 1 {
				username = args[0]
			} else {
				current, err := user.Current()
				if err != nil {
					return fmt.Errorf("failed to get the current user: %w", err)
				}
				username = current.Username
			}

			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			store := rt.Admin.Store

			existing, err := store.User(ctx, nil, username)
			if err != nil {
				return err
			}
			if existing == nil {
				return &core.NotFoundError{Resource: "User", ID: username}
			}
			p := newPrompter(cmd)
			fmt.Fprintf(p.out, "Changing password for user '%s'\n", username)

			for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
				password, ok, err := p.passwordTwice()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(p.out, "Passwords do not match. Please try again.")
					continue
				}
				err = store.SetPassword(ctx, nil, username, password)
				var ve *core.ValidationError
				if errors.As(err, &ve) {
					fmt.Fprintf(p.err, "Error: %v\n", err)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(p.out, "Password changed successfully for user '%s'\n", username)
				return nil
			}
			return fmt.Errorf("aborting password change for user '%s' after %d attempts", username, maxPasswordAttempts)
		},
	}
}
