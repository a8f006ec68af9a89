package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-records/handlers"
	"clinic-records/middleware"
	"clinic-records/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const token = "cli-token"

func startServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := models.Open("sqlite::memory:")
	require.NoError(t, err)
	repo := models.NewRepository(db)
	t.Cleanup(func() { _ = repo.Close() })

	srv := httptest.NewServer(handlers.NewRouter(handlers.Services{
		Repo:     repo,
		Sessions: middleware.StaticToken(token),
		Logger:   zap.NewNop(),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, url string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--url", url, "--token", token}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var janeFlags = []string{
	"--name", "Jane Doe",
	"--address", "12 Main St",
	"--telephone", "555-0100",
	"--occupation", "Engineer",
	"--status", "married",
	"--gender", "female",
	"--complaint", "Toothache",
	"--birthday", "1990-01-01",
}

func TestRecordLifecycle(t *testing.T) {
	url := startServer(t)

	out, notice, err := run(t, url, append([]string{"records", "add"}, janeFlags...)...)
	require.NoError(t, err, notice)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)
	assert.Equal(t, "Add Record: Successfully added patient to records.\n", notice)

	out, _, err = run(t, url, "records", "list", "--search", "JANE")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "page 1 of 1")

	_, notice, err = run(t, url, "transactions", "add", id,
		"--date", "2024-03-01", "--tooth", "11", "--service", "Cleaning", "--fees", "12.5")
	require.NoError(t, err, notice)

	out, _, err = run(t, url, "records", "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleaning")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "1990-01-01")

	_, notice, err = run(t, url, "records", "delete", id)
	assert.Error(t, err)
	assert.Equal(t, "Error: An error occurred while deleting the patient's records.\n", notice)
}

func TestAddRejectsMissingFieldsLocally(t *testing.T) {
	url := startServer(t)

	_, notice, err := run(t, url, "records", "add", "--name", "Jane Doe")
	require.Error(t, err)
	assert.Contains(t, notice, "address is required")
	assert.Contains(t, notice, "birthday is required")
}

func TestTransactionFeesMustBeNumeric(t *testing.T) {
	url := startServer(t)

	_, notice, err := run(t, url, "transactions", "add", "some-id",
		"--date", "2024-03-01", "--tooth", "11", "--service", "Cleaning", "--fees", "lots")
	require.Error(t, err)
	assert.Contains(t, notice, "fees must be a number")
}
