package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/stacks-batcher/batch"
	"github.com/smartcontractkit/stacks-batcher/broadcast"
	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/confirm"
)

func ptr[T any](v T) *T { return &v }

func testResult() batch.Result {
	req := catalog.NewRequest(catalog.KindMint, catalog.A("recipient", catalog.Principal("SP3XYZ")))

	return batch.Result{
		RunID:     "2Vx9y8mJ0kQ3bLwZpT6uE1rHcNf",
		Account:   "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		BaseNonce: 10,
		Entries: []batch.Entry{
			{Index: 0, Request: req.WithLabel("Mint NFT #1"), Nonce: ptr(uint64(10)), Fee: 50_000,
				Outcome: broadcast.Submitted("0x01", 1), Confirmation: &confirm.Record{Status: confirm.StatusSuccess, Attempts: 2}},
			{Index: 1, Request: req, Nonce: ptr(uint64(11)), Fee: 50_000,
				Outcome: broadcast.Submitted("0x02", 1), Confirmation: &confirm.Record{Status: confirm.StatusTimeout, Attempts: 30}},
			{Index: 2, Request: req, Nonce: ptr(uint64(12)), Fee: 50_000,
				Outcome: broadcast.Submitted("0x03", 1), Confirmation: &confirm.Record{Status: confirm.StatusAborted, Reason: "abort_by_response"}},
			{Index: 3, Request: req, Nonce: ptr(uint64(13)),
				Outcome: broadcast.Failed(broadcast.KindValidationRejection, "BadFunctionArgument", 1)},
			{Index: 4, Request: req, Outcome: broadcast.Failed(broadcast.KindValidationError, "invalid price", 0)},
			{Index: 5, Request: req, Outcome: broadcast.Skipped("not submitted after an earlier failure")},
		},
		StartedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC),
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rep := Summarize(testResult())

	assert.Equal(t, Counts{Total: 6, Succeeded: 1, Failed: 3, TimedOut: 1, Skipped: 1}, rep.Counts)
	assert.Equal(t, map[string]int{"aborted": 1, "validation-rejection": 1, "validation-error": 1}, rep.Failures)
	assert.True(t, decimal.RequireFromString("0.15").Equal(rep.FeesSTX), rep.FeesSTX.String())
	assert.Equal(t, "2Vx9y8mJ0kQ3bLwZpT6uE1rHcNf", rep.RunID)
	assert.Len(t, rep.Entries, 6)
	assert.NotEmpty(t, rep.ID)
	assert.False(t, rep.Complete())
}

func TestSummarize_Idempotent(t *testing.T) {
	t.Parallel()

	res := testResult()
	a, b := Summarize(res), Summarize(res)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Counts, b.Counts)
	assert.Equal(t, a.Failures, b.Failures)
	assert.True(t, a.FeesSTX.Equal(b.FeesSTX))
	assert.Equal(t, a.Entries, b.Entries)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	rep := Summarize(batch.Result{RunID: "r"})
	assert.Equal(t, Counts{}, rep.Counts)
	assert.True(t, rep.FeesSTX.IsZero())
	assert.Nil(t, rep.Failures)
	assert.True(t, rep.Complete())
}

func TestWriteFile_LoadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
	}{
		{name: "json", file: "report.json"},
		{name: "yaml", file: "out/report.yaml"},
		{name: "yml", file: "report.YML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tt.file)
			rep := Summarize(testResult())
			rep.Network = "testnet"

			require.NoError(t, WriteFile(path, rep))
			got, err := LoadFile(path)
			require.NoError(t, err)

			assert.Equal(t, rep.ID, got.ID)
			assert.Equal(t, rep.Network, got.Network)
			assert.Equal(t, rep.Counts, got.Counts)
			assert.True(t, rep.FeesSTX.Equal(got.FeesSTX))
			assert.True(t, rep.CreatedAt.Equal(got.CreatedAt))
			require.Len(t, got.Entries, 6)
			assert.Equal(t, "Mint NFT #1", got.Entries[0].Request.Label)
			assert.Equal(t, catalog.Principal("SP3XYZ"), got.Entries[0].Request.Args[0].Value)
			assert.Equal(t, uint64(10), *got.Entries[0].Nonce)
			assert.Equal(t, confirm.StatusTimeout, got.Entries[1].Confirmation.Status)
			assert.Equal(t, broadcast.KindValidationRejection, got.Entries[3].Outcome.Kind)
			assert.Nil(t, got.Entries[4].Nonce)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "failed to read")
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Summarize(testResult())))

	out := buf.String()
	assert.Contains(t, out, "Mint NFT #1")
	assert.Contains(t, out, "timed-out")
	assert.Contains(t, out, "validation-rejection: BadFunctionArgument")
	assert.Contains(t, out, "0x03 (abort_by_response)")
	assert.Contains(t, out, "6 total, 1 succeeded, 3 failed, 1 timed out, 1 skipped, fees 0.15 STX")
}
