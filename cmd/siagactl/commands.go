package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"siaga/internal/auth/mfa"
	"siaga/internal/auth/models"
	"siaga/internal/auth/password"
	"siaga/internal/auth/token"
	"siaga/internal/platform/config"
	"siaga/internal/platform/kvstore"
	"siaga/internal/ratelimit/service/requestlimit"
	dErrors "siaga/pkg/domain-errors"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "siagactl",
		Short:         "Operator tooling for the Siaga auth core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeygenCmd(), newHashPasswordCmd(), newCheckPolicyCmd(), newMFAEnrollCmd())
	return root
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a random token key for SIAGA_TOKEN_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := make([]byte, token.KeySize)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(key))
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	var skipPolicy bool
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its argon2id hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plain, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			policy := password.Policy{MinLength: 1}
			if !skipPolicy {
				policy = defaultPasswordPolicy()
			}
			hasher := password.NewHasher(password.DefaultParams, policy)
			phc, err := hasher.Hash(context.Background(), plain)
			if dErrors.HasCode(err, dErrors.CodeWeakPassword) {
				return fmt.Errorf("%s: %s", dErrors.MessageOf(err), strings.Join(dErrors.DetailsOf(err), ", "))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), phc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "hash without checking the strength policy")
	return cmd
}

func newCheckPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-policy <file>",
		Short: "Validate a role and rate limit policy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadPolicyFile(args[0])
			if err != nil {
				return err
			}
			p := config.DefaultPolicy().Merge(loaded)
			cfg := &config.Config{}
			cfg.ApplyPolicy(p)

			roles, err := models.NewRoleTable(cfg.Roles)
			if err != nil {
				return err
			}
			if _, err := requestlimit.NewPolicy(cfg.RateLimit); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, role := range models.AllRoles() {
				fmt.Fprintf(out, "%-12s %s\n", role, strings.Join(roles.Permissions(role), ","))
			}
			endpoints := make([]string, 0, len(cfg.RateLimit.Endpoints))
			for name := range cfg.RateLimit.Endpoints {
				endpoints = append(endpoints, name)
			}
			sort.Strings(endpoints)
			for _, name := range endpoints {
				spec := cfg.RateLimit.Endpoints[name]
				fmt.Fprintf(out, "%-20s %s\n", name, spec.Strategy)
			}
			fmt.Fprintln(out, "policy ok")
			return nil
		},
	}
}

func newMFAEnrollCmd() *cobra.Command {
	var issuer string
	cmd := &cobra.Command{
		Use:   "mfa-enroll <account>",
		Short: "Generate a TOTP secret and its otpauth URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verifier := mfa.NewVerifier(issuer, 1, kvstore.NewLocal())
			secret, url, err := verifier.Enroll(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "secret: %s\nurl:    %s\n", secret, url)
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "Siaga", "issuer shown in authenticator apps")
	return cmd
}

func defaultPasswordPolicy() password.Policy {
	return password.Policy{
		MinLength:           8,
		RequireUpper:        true,
		RequireLower:        true,
		RequireDigit:        true,
		RequireSymbol:       true,
		ForbiddenSubstrings: config.DefaultPolicy().Password.ForbiddenSubstrings,
	}
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password on stdin")
	}
	line := strings.TrimRight(sc.Text(), "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
