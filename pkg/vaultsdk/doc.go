/*
Package vaultsdk is a Go client for the vaultgate withdrawal-authorization
service, and the home of its JSON request and response types.

A login walks through gates in a fixed order (login OTP, email
verification, two-factor, identity verification). Client.Login returns a
Session positioned at the first pending gate:

	client := vaultsdk.NewClient("https://vaultgate.example.com")

	session, err := client.Login(ctx, "jane@example.com", password)
	if session.Stage() == "login_otp" {
		stage, err := session.VerifyLoginOTP(ctx, codeFromEmail)
	}

Once authenticated, a withdrawal needs a grant from the passcode or the
emailed fallback code:

	grant, err := session.VerifyPasscode(ctx, "123456")
	if apiErr, ok := vaultsdk.AsAPIError(err); ok && apiErr.IsLocked() {
		// wait lockout_remaining minutes or use the emailed code
	}

Grants are EdDSA JWTs, verifiable against Client.GetJWKS.

Operator actions go through an AdminClient holding the admin token:

	admin := client.Admin(adminToken)
	err := admin.ResetPasscodeLockout(ctx, userID)
*/
package vaultsdk
