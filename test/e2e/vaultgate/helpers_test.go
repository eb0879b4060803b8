//go:build e2e

package vaultgate_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared helpers for the vaultgate end-to-end tests.
 * SMTP is not configured in the container, so emailed codes cannot be read
 * back: tests switch the login OTP off and drive the passcode gate.
 */

const (
	testImageName = "vaultgate-test:latest"

	adminToken   = "test-admin-token-12345"
	testIssuer   = "vaultgate-e2e"
	testPassword = "correct horse battery"
	testPasscode = "482913"
)

// TestMain builds the Docker image once before all tests and removes it
// afterwards.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building vaultgate Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up vaultgate Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/vaultgate/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// setupContainer starts vaultgate and returns its base URL. relaxed raises
// the rate limits so tests can make many rapid requests.
func setupContainer(t *testing.T, relaxed bool) (string, func()) {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"VAULTGATE_ADMIN_TOKEN": adminToken,
		"VAULTGATE_ISSUER":      testIssuer,
		"VAULTGATE_MASTER_KEY":  "e2e master key material",
		"ENV":                   "test",
		"LOG_LEVEL":             "info",
		"LOG_FORMAT":            "json",
	}
	if relaxed {
		env["RATELIMIT_STRICT_REQUESTS"] = "1000"
		env["RATELIMIT_STRICT_BURST"] = "1000"
		env["RATELIMIT_MODERATE_REQUESTS"] = "1000"
		env["RATELIMIT_MODERATE_BURST"] = "1000"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/livez").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port()), cleanup
}

// loginWithoutOTP turns the login OTP off, creates a verified user and
// logs it in. The session is fully authenticated.
func loginWithoutOTP(t *testing.T, client *vaultsdk.Client, email string) (*vaultsdk.User, *vaultsdk.Session) {
	t.Helper()
	ctx := t.Context()
	admin := client.Admin(adminToken)

	require.NoError(t, admin.PutSetting(ctx, "login_otp_enabled", "false"))

	u, err := admin.CreateUser(ctx, vaultsdk.CreateUserRequest{
		Email:         email,
		Name:          "E2E User",
		Password:      testPassword,
		EmailVerified: true,
	})
	require.NoError(t, err)

	sess, err := client.Login(ctx, email, testPassword)
	require.NoError(t, err)
	require.Equal(t, "authenticated", sess.Stage())
	return u, sess
}
