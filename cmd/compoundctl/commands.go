package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"residence-backend/internal/bootstrap"
	"residence-backend/internal/credential"
	"residence-backend/internal/seed"
	"residence-backend/internal/store"

	"github.com/spf13/cobra"
)

func seedCmd(open opener) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write demo residents, access logs and users into empty collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *bootstrap.Services) error {
				if reset {
					for _, k := range store.Keys {
						if err := svc.Store.Drop(ctx, k); err != nil {
							return fmt.Errorf("drop %s: %w", k, err)
						}
					}
				}
				keys, err := seed.Run(ctx, svc.Store, svc.Codec, seed.Options{AdminPassword: svc.Config.AdminPassword}, svc.Logger)
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to seed, all collections exist")
					return nil
				}
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", k)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop every collection before seeding")
	return cmd
}

func credentialCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Issue, validate and decode resident credentials",
	}

	var out string
	issue := &cobra.Command{
		Use:   "issue <resident-id>",
		Short: "Reissue a resident's credential and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *bootstrap.Services) error {
				current, err := svc.Users.Current(ctx)
				if err != nil {
					return err
				}
				r, err := svc.Residents.ReissueCredential(ctx, args[0], *current)
				if err != nil {
					return err
				}
				png, err := credential.DecodeDataURI(r.QRCode)
				if err != nil {
					return err
				}
				text, err := credential.DecodeImageBytes(png)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				if out != "" {
					if err := os.WriteFile(out, png, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", out, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				}
				return nil
			})
		},
	}
	issue.Flags().StringVarP(&out, "out", "o", "", "Also write the credential PNG to this file")

	validate := &cobra.Command{
		Use:   "validate [payload]",
		Short: "Validate credential text (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}
			return withServices(cmd, open, func(ctx context.Context, svc *bootstrap.Services) error {
				return printValidation(ctx, cmd.OutOrStdout(), svc, text)
			})
		},
	}

	decode := &cobra.Command{
		Use:   "decode <image-file>",
		Short: "Read the QR code in a PNG or JPEG and validate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			text, err := credential.DecodeImage(f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return withServices(cmd, open, func(ctx context.Context, svc *bootstrap.Services) error {
				return printValidation(ctx, cmd.OutOrStdout(), svc, text)
			})
		},
	}

	cmd.AddCommand(issue, validate, decode)
	return cmd
}

func printValidation(ctx context.Context, w io.Writer, svc *bootstrap.Services, text string) error {
	p, err := svc.Codec.Validate(text)
	if err != nil {
		return err
	}
	r, err := svc.Residents.Get(ctx, p.ResidentID)
	if err != nil {
		return fmt.Errorf("credential is well formed but %w", err)
	}
	state := "active"
	if !r.IsActive {
		state = "inactive"
	}
	until := "no expiry"
	if p.ValidUntil != nil {
		until = "valid until " + p.ValidUntil.Format("2006-01-02 15:04")
	}
	fmt.Fprintf(w, "valid: %s, unit %s (%s), %s\n", r.FullName(), p.UnitNumber, state, until)
	return nil
}

func userCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}

	var password string
	setPassword := &cobra.Command{
		Use:   "set-password <username>",
		Short: "Set a user's login password (reads stdin when --password is empty)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := argOrStdin(cmd, nil)
				if err != nil {
					return err
				}
				password = p
			}
			if len(password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			return withServices(cmd, open, func(ctx context.Context, svc *bootstrap.Services) error {
				if err := svc.Users.SetPassword(ctx, args[0], password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", args[0])
				return nil
			})
		},
	}
	setPassword.Flags().StringVar(&password, "password", "", "New password")

	cmd.AddCommand(setPassword)
	return cmd
}

func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input")
	}
	return line, nil
}
