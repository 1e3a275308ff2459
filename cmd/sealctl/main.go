package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	v1 "docseal/signature-backend/api/v1"
	"docseal/signature-backend/internal/auth"
	"docseal/signature-backend/internal/cleanup"
	"docseal/signature-backend/internal/config"
	"docseal/signature-backend/internal/crypto"
	"docseal/signature-backend/internal/fingerprint"
	"docseal/signature-backend/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sealctl",
	Short:         "Administer the document signing service",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the signing key pair",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create the signing key pair",
	Long: `Create the signing key pair at the configured paths.

An existing pair is kept unless --force is given. Replacing the pair makes
every previously issued attestation fail verification.

A running signature-api keeps signing with the key it has cached, so --force
refuses while the configured server address accepts connections. Stop the
server first, or rotate through POST /api/v1/keys/generate instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		cfg, err := config.LoadConfig(configPath, ".env")
		if err != nil {
			return err
		}
		keys := crypto.NewKeyManager(cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath)
		if force {
			if err := ensureServerStopped(cfg.Server); err != nil {
				return err
			}
			if _, err := keys.GenerateKeyPair(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath)
			return nil
		}
		created, err := keys.EnsureKeyPair()
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintln(cmd.OutOrStdout(), "key pair already exists, use --force to replace it")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath)
		return nil
	},
}

var keysPublicCmd = &cobra.Command{
	Use:   "public",
	Short: "Print the public key in PEM form",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath, ".env")
		if err != nil {
			return err
		}
		pem, err := crypto.NewKeyManager(cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath).PublicKeyPEM()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(pem)
		return err
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		cfg, err := config.LoadConfig(configPath, ".env")
		if err != nil {
			return err
		}
		authn := auth.NewAuthenticator(cfg.Security.JWTSecret, nil)
		if !authn.Enabled() {
			return fmt.Errorf("JWT_SECRET is not configured")
		}
		token, err := authn.IssueToken(subject, auth.RoleAdmin, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete signed documents older than the configured max age",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, err := v1.NewObjectStore(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		n, err := cleanup.NewJanitor(store, cfg.Storage.Prefix, cfg.Cleanup.MaxAge, logger).Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d documents\n", n)
		return nil
	},
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint FILE",
	Short: "Print the content fingerprint of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := fingerprint.NewExtractor(nil, nil).Fingerprint(cmd.Context(), doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", res.Fingerprint, res.Strategy)
		if res.Degraded() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", res.Cause)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify a signed PDF with the local key pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		doc, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		api, err := v1.SetupDocumentsAPI(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		verdict, err := api.Service.Verify(cmd.Context(), doc)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(verdict); err != nil {
			return err
		}
		if !verdict.OverallOK {
			return fmt.Errorf("verification failed: %s", verdict.Message)
		}
		return nil
	},
}

// ensureServerStopped fails when something accepts connections on the
// configured server address.
func ensureServerStopped(srv config.ServerConfig) error {
	host := srv.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(srv.Port))
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return nil
	}
	conn.Close()
	return fmt.Errorf("signature-api appears to be running on %s; stop it or use POST /api/v1/keys/generate", addr)
}

func load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath, ".env")
	if err != nil {
		return nil, nil, err
	}
	cfg.Logging.Format = "console"
	cfg.Logging.File = ""
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON configuration file")

	keysGenerateCmd.Flags().Bool("force", false, "replace an existing key pair")
	keysCmd.AddCommand(keysGenerateCmd, keysPublicCmd)

	tokenCmd.Flags().String("subject", "admin", "token subject")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")

	rootCmd.AddCommand(keysCmd, tokenCmd, sweepCmd, fingerprintCmd, verifyCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
