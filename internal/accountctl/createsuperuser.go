package accountctl

import (
	"bufio"
	"io"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server"
	"github.com/dmitrijs2005/gophaccounts/internal/server/mail"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"github.com/spf13/cobra"
)

type superuserFlags struct {
	email    string
	fullName string
	password string
}

// NewCreateSuperuserCmd creates the createsuperuser subcommand. Values not
// given as flags are prompted for.
func NewCreateSuperuserCmd(opts *options) *cobra.Command {
	f := &superuserFlags{}

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an active account with administrative rights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateSuperuser(cmd, opts, f)
		},
	}

	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.fullName, "full-name", "", "account full name")
	cmd.Flags().StringVar(&f.password, "password", "", "account password (prompted when empty)")

	return cmd
}

func (f *superuserFlags) complete(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	var err error

	if f.email == "" {
		if f.email, err = promptText(reader, out, "Email"); err != nil {
			return err
		}
	}
	if f.fullName == "" {
		if f.fullName, err = promptText(reader, out, "Full name"); err != nil {
			return err
		}
	}
	if f.password == "" {
		if f.password, err = promptPassword(out); err != nil {
			return err
		}
	}
	return nil
}

func runCreateSuperuser(cmd *cobra.Command, opts *options, f *superuserFlags) error {
	ctx := cmd.Context()

	if err := f.complete(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return err
	}

	storage, err := server.OpenStorage(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer storage.Close()

	logger := logging.New(cmd.ErrOrStderr(), "text")
	accounts := storage.AccountService(mail.NewLogSender(logger), "", logger)

	a, err := accounts.CreateSuperuser(ctx, services.AccountInput{
		Email:    f.email,
		FullName: f.fullName,
		Password: f.password,
	})
	if err != nil {
		if ve, ok := common.AsValidationError(err); ok {
			for field, msg := range ve.Fields {
				cmd.PrintErrf("%s: %s\n", field, msg)
			}
		}
		return err
	}

	cmd.Printf("Superuser %s created (id %s)\n", a.Email, a.ID)
	return nil
}
