package app

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
)

// MasterKeyEnv holds master key material when no key file is configured.
const MasterKeyEnv = "VAULTGATE_MASTER_KEY"

// secretKeys holds the key material the services are built on.
type secretKeys struct {
	keyring *cryptox.Keyring
	pepper  string
	signer  *jwtx.Signer
	keySet  *jwtx.KeySet
}

// initKeys loads (or creates) the master keyring, the hashing pepper and
// the grant signing key.
//
// With no master key configured an ephemeral one is generated: sealed TOTP
// secrets and the sealed signing key then do not survive a restart, so the
// signing key is kept in memory only.
func initKeys(cfg Config, logger *slog.Logger) (*secretKeys, error) {
	kr, ephemeral, err := cryptox.LoadKeyring(cfg.MasterKeyPath, MasterKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}

	signingKeyFile := cfg.SigningKeyFile
	if ephemeral {
		logger.Warn("no master key configured, using an ephemeral key; two-factor secrets will not survive a restart")
		signingKeyFile = ""
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, err
	}

	pemKey, err := cryptox.LoadOrCreateEd25519Key(signingKeyFile, kr)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	signer, err := jwtx.NewSigner(cfg.SigningKeyID, pemKey)
	if err != nil {
		return nil, err
	}

	keySet := jwtx.NewKeySet()
	if err := keySet.AddSigner(signer); err != nil {
		return nil, err
	}

	logger.Info("signing key loaded", "kid", signer.KID(), "persistent", signingKeyFile != "")
	return &secretKeys{keyring: kr, pepper: pepper, signer: signer, keySet: keySet}, nil
}

// initCookie builds the session cookie codec from the configured keys, or
// random keys when none are set.
func initCookie(cfg Config, logger *slog.Logger) (*httpx.SessionCookie, error) {
	var hashKey, blockKey []byte
	if cfg.CookieHashKey == "" {
		logger.Warn("no cookie keys configured, using random keys; cookie sessions will not survive a restart")
		hashKey, blockKey = httpx.GenerateCookieKeys()
	} else {
		var err error
		if hashKey, err = base64.StdEncoding.DecodeString(cfg.CookieHashKey); err != nil {
			return nil, fmt.Errorf("invalid cookie hash key: %w", err)
		}
		if cfg.CookieBlockKey != "" {
			if blockKey, err = base64.StdEncoding.DecodeString(cfg.CookieBlockKey); err != nil {
				return nil, fmt.Errorf("invalid cookie block key: %w", err)
			}
		}
	}
	return httpx.NewSessionCookie(cfg.SessionLifetime, cfg.Env == "prod", hashKey, blockKey)
}
