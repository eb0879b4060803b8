// vaultgatectl is the operator CLI for vaultgate. It talks to the admin
// routes over HTTP with the static admin token.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

type config struct {
	Host    string        `long:"host" env:"VAULTGATE_URL" default:"http://localhost:8080" description:"vaultgate base URL"`
	Token   string        `long:"token" env:"VAULTGATE_ADMIN_TOKEN" description:"Admin bearer token"`
	Timeout time.Duration `long:"timeout" default:"10s" description:"Request timeout"`
}

// cfg points at the parsed global options.
var cfg *config

type vaultgatectl struct {
	Config config `group:"Application Options"`

	Health cmdHealth `command:"health" description:"Check service readiness"`

	UserNew          cmdUserNew          `command:"usernew" description:"Create a user"`
	User             cmdUser             `command:"user" description:"Show a user"`
	PasscodeReset    cmdPasscodeReset    `command:"passcodereset" description:"Clear a user's withdrawal passcode lockout"`
	PasscodeRequire  cmdPasscodeRequire  `command:"passcoderequire" description:"Turn the withdrawal passcode requirement on or off"`
	LoginOTPReset    cmdLoginOTPReset    `command:"loginotpreset" description:"Clear a user's login code and end their sessions"`
	TwoFactorDisable cmdTwoFactorDisable `command:"twofactordisable" description:"Disable two-factor for a user"`
	PasswordChange   cmdPasswordChange   `command:"passwordchange" description:"Set a new password for a user"`
	EmailVerify      cmdEmailVerify      `command:"emailverify" description:"Mark a user's email verified or unverified"`
	IdentityVerify   cmdIdentityVerify   `command:"identityverify" description:"Record identity verification for a user"`

	Settings   cmdSettings   `command:"settings" description:"List runtime settings"`
	SettingSet cmdSettingSet `command:"settingset" description:"Set a runtime setting"`
}

func newClient() *vaultsdk.Client {
	c := vaultsdk.NewClient(cfg.Host)
	c.HTTPClient.Timeout = cfg.Timeout
	return c
}

func adminClient() (*vaultsdk.AdminClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("an admin token is required (--token or VAULTGATE_ADMIN_TOKEN)")
	}
	return newClient().Admin(cfg.Token), nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func ctx() context.Context { return context.Background() }

func _main() error {
	root := &vaultgatectl{}
	cfg = &root.Config

	parser := flags.NewParser(root, flags.Default)
	if _, err := parser.Parse(); err != nil {
		// go-flags has already printed the error.
		os.Exit(1)
	}
	return nil
}

func main() {
	if err := _main(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
