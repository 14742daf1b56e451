package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	"github.com/KaramelBytes/qstorm-cli/internal/forms"
	"github.com/KaramelBytes/qstorm-cli/internal/render"
)

var (
	loginUsername      string
	loginPasswordStdin bool

	regUsername      string
	regEmail         string
	regFullName      string
	regPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and make your account's session the active one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := forms.LoginInput{Username: strings.TrimSpace(loginUsername)}
		switch {
		case loginPasswordStdin:
			pw, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			in.Password = pw
		case interactive():
			if err := forms.LoginForm(&in).Run(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("no terminal: pass --username and --password-stdin")
		}
		if err := forms.Validate(in); err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.client.Login(cmd.Context(), in.Username, in.Password)
		if err != nil {
			return err
		}
		if err := a.login(cmd.Context(), res, in.Username); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s", in.Username)
		if !res.SessionID.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), " (session %s)", res.SessionID)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored login and the anonymous session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.creds.Logout(cmd.Context()); err != nil {
			return err
		}
		a.client.SetToken("")
		a.ctrl.Logout()
		if err := a.ws.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a platform account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := forms.RegisterInput{
			Username: strings.TrimSpace(regUsername),
			Email:    strings.TrimSpace(regEmail),
			FullName: strings.TrimSpace(regFullName),
		}
		switch {
		case regPasswordStdin:
			pw, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			in.Password = pw
		case interactive():
			if err := forms.RegisterForm(&in).Run(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("no terminal: pass --username, --email and --password-stdin")
		}
		if err := forms.Validate(in); err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		user, err := a.client.Register(cmd.Context(), api.RegisterRequest{
			Username: in.Username,
			Email:    in.Email,
			Password: in.Password,
			FullName: in.FullName,
		})
		if err != nil {
			return err
		}
		if a.out.Format == render.FormatJSON {
			return a.out.JSON(user)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %s <%s>. Run 'qstorm login' to sign in.\n", user.Username, user.Email)
		return nil
	},
}

// readSecret reads the first line of r.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account username")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")

	registerCmd.Flags().StringVarP(&regUsername, "username", "u", "", "account username")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "email address")
	registerCmd.Flags().StringVar(&regFullName, "full-name", "", "display name (optional)")
	registerCmd.Flags().BoolVar(&regPasswordStdin, "password-stdin", false, "read the password from stdin")
}
