package main

import (
	"fmt"

	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// cmdUserNew creates a user. The password is prompted for when not given.
type cmdUserNew struct {
	Args struct {
		Email string `positional-arg-name:"email" required:"true"`
		Name  string `positional-arg-name:"name"`
	} `positional-args:"true"`

	Password   string `long:"password" description:"Password (prompted when omitted)"`
	Verified   bool   `long:"verified" description:"Mark the email as verified"`
	NoPasscode bool   `long:"nopasscode" description:"Do not require a withdrawal passcode"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdUserNew) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}

	password := c.Password
	if password == "" {
		if password, err = promptNewPassword(); err != nil {
			return err
		}
	}

	require := !c.NoPasscode
	u, err := a.CreateUser(ctx(), vaultsdk.CreateUserRequest{
		Email:                     c.Args.Email,
		Name:                      c.Args.Name,
		Password:                  password,
		EmailVerified:             c.Verified,
		RequireWithdrawalPasscode: &require,
	})
	if err != nil {
		return err
	}
	return printJSON(u)
}

type userArg struct {
	UserID string `positional-arg-name:"userid" required:"true"`
}

// cmdUser prints a user.
type cmdUser struct {
	Args userArg `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdUser) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	u, err := a.GetUser(ctx(), c.Args.UserID)
	if err != nil {
		return err
	}
	return printJSON(u)
}

type cmdPasscodeReset struct {
	Args userArg `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdPasscodeReset) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	if err := a.ResetPasscodeLockout(ctx(), c.Args.UserID); err != nil {
		return err
	}
	fmt.Println("passcode lockout cleared")
	return nil
}

type cmdPasscodeRequire struct {
	Args struct {
		UserID   string `positional-arg-name:"userid" required:"true"`
		Required string `positional-arg-name:"on|off" required:"true"`
	} `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdPasscodeRequire) Execute(args []string) error {
	required, err := parseOnOff(c.Args.Required)
	if err != nil {
		return err
	}
	a, err := adminClient()
	if err != nil {
		return err
	}
	return a.SetRequirePasscode(ctx(), c.Args.UserID, required)
}

type cmdLoginOTPReset struct {
	Args userArg `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdLoginOTPReset) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	return a.ResetLoginOTP(ctx(), c.Args.UserID)
}

type cmdTwoFactorDisable struct {
	Args userArg `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdTwoFactorDisable) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	return a.DisableTwoFactor(ctx(), c.Args.UserID)
}

// cmdPasswordChange always prompts, so the password never lands in shell
// history.
type cmdPasswordChange struct {
	Args userArg `positional-args:"true"`

	Notify bool `long:"notify" description:"Send the user a security alert"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdPasswordChange) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	err = a.ChangePassword(ctx(), c.Args.UserID, vaultsdk.ChangePasswordRequest{
		NewPassword:             password,
		NewPasswordConfirmation: password,
		NotifyUser:              c.Notify,
	})
	if err != nil {
		return err
	}
	fmt.Println("password changed; the user's sessions were ended")
	return nil
}

type cmdEmailVerify struct {
	Args struct {
		UserID   string `positional-arg-name:"userid" required:"true"`
		Verified string `positional-arg-name:"on|off" required:"true"`
	} `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdEmailVerify) Execute(args []string) error {
	verified, err := parseOnOff(c.Args.Verified)
	if err != nil {
		return err
	}
	a, err := adminClient()
	if err != nil {
		return err
	}
	return a.SetEmailVerified(ctx(), c.Args.UserID, verified)
}

type cmdIdentityVerify struct {
	Args userArg `positional-args:"true"`
}

// Execute satisfies the go-flags Commander interface.
func (c *cmdIdentityVerify) Execute(args []string) error {
	a, err := adminClient()
	if err != nil {
		return err
	}
	return a.MarkIdentityVerified(ctx(), c.Args.UserID)
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
