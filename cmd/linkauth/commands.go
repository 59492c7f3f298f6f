package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

type report struct {
	State      string     `json:"state,omitempty"`
	IdentityID string     `json:"identity_id,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	Token      string     `json:"token,omitempty"`
	Code       string     `json:"code,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Exists     *bool      `json:"exists,omitempty"`
	Verified   *bool      `json:"verified,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

func writeReport(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

type runFunc func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error

// withEngine loads configuration, builds the engine for one invocation and tears it
// down afterwards.
func withEngine(run runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		d, err := buildDeps(ctx, cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer d.Close()

		runErr := run(ctx, cmd, d, args)
		if cfg.PrintMetrics {
			if err := writeMetrics(cmd.ErrOrStderr(), d.collector); err != nil && runErr == nil {
				runErr = err
			}
		}
		return runErr
	}
}

// finish prints res and converts a rejection into a command error.
func finish(cmd *cobra.Command, res goLinkAuth.AuthResult, err error) error {
	r := report{State: res.State.String(), IdentityID: res.IdentityID, Reason: res.Reason}
	if res.Session != nil {
		r.SessionID = res.Session.ID
		r.Token = res.Session.Token
		exp := res.Session.ExpiresAt
		r.ExpiresAt = &exp
	}
	if werr := writeReport(cmd.OutOrStdout(), r); werr != nil {
		return werr
	}
	return rejection(err)
}

func rejection(err error) error {
	if err == nil {
		return nil
	}
	if goLinkAuth.IsUserError(err) {
		return oops.Code("AUTH_REJECTED").With("reason", goLinkAuth.RejectionReason(err)).Wrap(err)
	}
	return oops.Code("AUTH_FAULT").Wrap(err)
}

func NewSignUpCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an identity and send its first sign-in link",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			res, err := d.engine.SignUp(ctx, goLinkAuth.SignUpRequest{
				Email:    args[0],
				Name:     name,
				Password: password,
			})
			return finish(cmd, res, err)
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&password, "password", "", "optional password")
	return cmd
}

func NewLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Send a sign-in link to an existing identity",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			res, err := d.engine.Login(ctx, args[0])
			return finish(cmd, res, err)
		}),
	}
}

func NewSendOTPCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "send-otp <email>",
		Short: "Issue and mail a one-time code to a verified identity",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			otp, err := d.engine.SendOTP(ctx, args[0])
			if err != nil {
				if werr := writeReport(cmd.OutOrStdout(), report{Reason: goLinkAuth.RejectionReason(err)}); werr != nil {
					return werr
				}
				return rejection(err)
			}
			r := report{State: "otp_sent", ExpiresAt: &otp.ExpiresAt}
			if show {
				r.Code = otp.Code
			}
			return writeReport(cmd.OutOrStdout(), r)
		}),
	}
	cmd.Flags().BoolVar(&show, "show-code", false, "print the issued code")
	return cmd
}

func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <email>",
		Short: "Report whether an identity exists and is verified",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			elig, err := d.engine.CheckVerified(ctx, args[0])
			if err != nil {
				return rejection(err)
			}
			return writeReport(cmd.OutOrStdout(), report{Exists: &elig.Exists, Verified: &elig.Verified})
		}),
	}
}

// NewAuthCmd groups the credential-presenting logins.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with a password or one-time code",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "password <email> <password>",
		Short: "Log in with a password",
		Args:  cobra.ExactArgs(2),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			res, err := d.engine.AuthenticatePassword(ctx, args[0], args[1])
			return finish(cmd, res, err)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "otp <email> <code>",
		Short: "Log in with a one-time code",
		Args:  cobra.ExactArgs(2),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			res, err := d.engine.AuthenticateOTP(ctx, args[0], args[1])
			return finish(cmd, res, err)
		}),
	})
	return cmd
}

func NewCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <token>",
		Short: "Redeem a magic-link token",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(func(ctx context.Context, cmd *cobra.Command, d *deps, args []string) error {
			res, err := d.engine.CompleteMagicLink(ctx, args[0])
			return finish(cmd, res, err)
		}),
	}
}
