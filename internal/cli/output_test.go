package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(inventory.ExpandResult{Success: true, NewLimit: 25, TransactionID: "tx-1"})
	require.NoError(t, err)

	var resp struct {
		Status string                 `json:"status"`
		Data   inventory.ExpandResult `json:"data"`
	}
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 25, resp.Data.NewLimit)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("VALIDATION", "unknown event \"miami\"", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION", resp.Error.Code)
	assert.Equal(t, `unknown event "miami"`, resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"available": "2", "requested": "5"}
	err := formatter.Error("INSUFFICIENT_INVENTORY", "insufficient inventory", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success([]inventory.Transaction{})
	require.NoError(t, err)
	assert.Equal(t, "No transactions\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("VALIDATION", "unknown event \"miami\"", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [VALIDATION]")
	assert.Contains(t, buf.String(), `unknown event "miami"`)
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"available": "0"}
	err := formatter.Error("VALIDATION", "unknown event \"miami\"", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [VALIDATION]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Opening %s", "inventory.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Opening inventory.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_Result(t *testing.T) {
	text := func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "Allocated 2 ga")
		return err
	}

	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Result(map[string]int{"available_after": 33}, text))
	assert.Equal(t, "Allocated 2 ga\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Result(map[string]int{"available_after": 33}, text))
	assert.JSONEq(t, `{"status":"ok","data":{"available_after":33}}`, buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"validation", inventory.NewUnknownEventError("miami"), "VALIDATION", ExitCommandError},
		{"insufficient", inventory.NewInsufficientError("dallas", inventory.TierGA, 2, 5), "INSUFFICIENT_INVENTORY", ExitFailure},
		{"authorization", inventory.NewAuthorizationError("dallas", "expand"), "AUTHORIZATION", ExitFailure},
		{"joined", errors.Join(errors.New("paid"), inventory.NewInsufficientError("dallas", inventory.TierVIP, 0, 1)), "INSUFFICIENT_INVENTORY", ExitFailure},
		{"plain", errors.New("disk full"), "INTERNAL", ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := f.Fail("decrement", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag"))))
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"available": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "VALIDATION",
		Message: "bad request",
		Details: map[string]string{"tier": "gold"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION", decoded.Code)
	assert.Equal(t, "bad request", decoded.Message)
}
