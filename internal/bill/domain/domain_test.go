package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

// run decides cmd against state and folds the resulting events.
func run(t *testing.T, state Bill, cmd Command, at time.Time) (Bill, []Event) {
	t.Helper()
	events, err := Decide(state, cmd, at)
	require.NoError(t, err)
	for _, ev := range events {
		state, err = Apply(state, Envelope{Sequence: state.Version + 1, RecordedAt: at, Event: ev})
		require.NoError(t, err)
	}
	return state, events
}

func created(t *testing.T) Bill {
	t.Helper()
	state, _ := run(t, Bill{}, CreateBill{
		ID:       "b1",
		Title:    "Gas",
		Total:    decimal.RequireFromString("50.00"),
		Metadata: map[string]any{"vendor": "PGN", "account": float64(42)},
	}, baseTime)
	return state
}

func processed(t *testing.T) Bill {
	t.Helper()
	state := created(t)
	state, _ = run(t, state, AttachFile{
		BillID: "b1", Filename: "bill.pdf", ContentType: "application/pdf",
		FileSize: 2048, StoragePath: "bills/b1/bill.pdf", Checksum: "abc",
	}, baseTime.Add(time.Minute))
	state, _ = run(t, state, ApplyOcrResult{
		BillID: "b1", ExtractedText: "Total 50.00", Confidence: 0.9,
	}, baseTime.Add(2*time.Minute))
	return state
}

func TestCreateBill(t *testing.T) {
	state := created(t)

	assert.Equal(t, "b1", state.ID)
	assert.Equal(t, StatusCreated, state.Status)
	assert.Equal(t, "Gas", state.Title)
	assert.True(t, decimal.RequireFromString("50").Equal(state.Total))
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, baseTime, state.CreatedAt)
	assert.Nil(t, state.File)
}

func TestCreateBillValidation(t *testing.T) {
	cases := []struct {
		name string
		cmd  CreateBill
		want error
	}{
		{"blank title", CreateBill{ID: "b1", Title: "   ", Total: decimal.NewFromInt(1)}, ErrInvalidTitle},
		{"long title", CreateBill{ID: "b1", Title: string(make([]byte, 256)), Total: decimal.NewFromInt(1)}, ErrInvalidTitle},
		{"zero total", CreateBill{ID: "b1", Title: "x", Total: decimal.Zero}, ErrInvalidTotal},
		{"negative total", CreateBill{ID: "b1", Title: "x", Total: decimal.NewFromInt(-3)}, ErrInvalidTotal},
		{"total below scale", CreateBill{ID: "b1", Title: "x", Total: decimal.RequireFromString("0.00001")}, ErrInvalidTotal},
		{"total above precision", CreateBill{ID: "b1", Title: "x", Total: decimal.RequireFromString("12345678901234567.89")}, ErrInvalidTotal},
		{"multibyte id over byte limit", CreateBill{ID: strings.Repeat("é", 19), Title: "x", Total: decimal.NewFromInt(1)}, ErrInvalidBillID},
		{"missing id", CreateBill{Title: "x", Total: decimal.NewFromInt(1)}, ErrInvalidBillID},
		{"long id", CreateBill{ID: "0123456789012345678901234567890123456", Title: "x", Total: decimal.NewFromInt(1)}, ErrInvalidBillID},
		{"bad metadata", CreateBill{ID: "b1", Title: "x", Total: decimal.NewFromInt(1), Metadata: map[string]any{"f": func() {}}}, ErrInvalidMetadata},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, err := Decide(Bill{}, tc.cmd, baseTime)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidationError(err))
			assert.Empty(t, events)
		})
	}
}

func TestCreateBillOnExistingStream(t *testing.T) {
	state := created(t)

	events, err := Decide(state, CreateBill{
		ID:       "b1",
		Title:    "Gas",
		Total:    decimal.RequireFromString("50"),
		Metadata: map[string]any{"account": float64(42), "vendor": "PGN"},
	}, baseTime)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = Decide(state, CreateBill{ID: "b1", Title: "Water", Total: decimal.NewFromInt(50)}, baseTime)
	assert.ErrorIs(t, err, ErrBillAlreadyExists)
	assert.True(t, IsValidationError(err))
}

func TestAttachFileEmitsFileAttachedThenOcrRequested(t *testing.T) {
	state := created(t)
	at := baseTime.Add(time.Minute)

	state, events := run(t, state, AttachFile{
		BillID: "b1", Filename: "bill.pdf", ContentType: "application/pdf",
		FileSize: 2048, StoragePath: "bills/b1/bill.pdf", Checksum: "abc",
	}, at)

	require.Len(t, events, 2)
	assert.IsType(t, FileAttached{}, events[0])
	assert.IsType(t, OcrRequested{}, events[1])
	assert.Equal(t, StatusFileAttached, state.Status)
	assert.Equal(t, int64(3), state.Version)
	require.NotNil(t, state.File)
	assert.Equal(t, "bill.pdf", state.File.Filename)
	require.NotNil(t, state.OcrRequestedAt)
	assert.Equal(t, at, *state.OcrRequestedAt)
}

func TestAttachFileValidation(t *testing.T) {
	state := created(t)

	_, err := Decide(state, AttachFile{BillID: "b1", Filename: "", ContentType: "application/pdf", FileSize: 1}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = Decide(state, AttachFile{BillID: "b1", Filename: "a.pdf", ContentType: "application/pdf", FileSize: 0}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = Decide(Bill{}, AttachFile{BillID: "nope", Filename: "a.pdf", ContentType: "application/pdf", FileSize: 1}, baseTime)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsValidationError(err))
}

func TestApplyOcrResultRequiresAttachedFile(t *testing.T) {
	state := created(t)

	events, err := Decide(state, ApplyOcrResult{BillID: "b1", ExtractedText: "Total 50", Confidence: 0.5}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, events)
}

func TestApplyOcrResultValidation(t *testing.T) {
	state := created(t)
	state, _ = run(t, state, AttachFile{BillID: "b1", Filename: "a.pdf", ContentType: "application/pdf", FileSize: 1}, baseTime)

	_, err := Decide(state, ApplyOcrResult{BillID: "b1", ExtractedText: " ", Confidence: 0.5}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidOcrResult)

	_, err = Decide(state, ApplyOcrResult{BillID: "b1", ExtractedText: "x", Confidence: 1.5}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidConfidence)

	negative := decimal.NewFromInt(-1)
	_, err = Decide(state, ApplyOcrResult{BillID: "b1", ExtractedText: "x", ExtractedTotal: &negative}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidOcrResult)

	fine := decimal.RequireFromString("0.00001")
	_, err = Decide(state, ApplyOcrResult{BillID: "b1", ExtractedText: "x", ExtractedTotal: &fine}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidOcrResult)
}

func TestCheckMoney(t *testing.T) {
	for _, v := range []string{"0.0001", "1.50000", "9999999999999999.9999", "-9999999999999999"} {
		assert.NoError(t, CheckMoney(decimal.RequireFromString(v)), v)
	}
	for _, v := range []string{"0.00001", "10000000000000000", "12345678901234567.89"} {
		assert.Error(t, CheckMoney(decimal.RequireFromString(v)), v)
	}
}

func TestCreateBillAtMoneyBounds(t *testing.T) {
	events, err := Decide(Bill{}, CreateBill{ID: "max", Title: "x", Total: decimal.RequireFromString("9999999999999999.9999")}, baseTime)
	require.NoError(t, err)
	require.Len(t, events, 1)

	events, err = Decide(Bill{}, CreateBill{ID: "min", Title: "x", Total: decimal.RequireFromString("0.0001")}, baseTime)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRejectIsTerminal(t *testing.T) {
	state := processed(t)
	assert.Equal(t, StatusProcessed, state.Status)

	state, _ = run(t, state, ApproveBill{BillID: "b1", ApproverID: "u1", Decision: DecisionRejected, Reason: "duplicate"}, baseTime.Add(time.Hour))
	assert.Equal(t, StatusRejected, state.Status)
	assert.True(t, state.Status.Terminal())
	require.NotNil(t, state.Approval)
	assert.Equal(t, "duplicate", state.Approval.Reason)

	_, err := Decide(state, ApproveBill{BillID: "b1", ApproverID: "u1", Decision: DecisionApproved}, baseTime)
	assert.ErrorIs(t, err, ErrBillTerminal)
	assert.True(t, IsValidationError(err))
}

func TestApproveBillValidation(t *testing.T) {
	state := processed(t)

	_, err := Decide(state, ApproveBill{BillID: "b1", ApproverID: "", Decision: DecisionApproved}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidApprover)

	_, err = Decide(state, ApproveBill{BillID: "b1", ApproverID: "u1", Decision: "MAYBE"}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = Decide(created(t), ApproveBill{BillID: "b1", ApproverID: "u1", Decision: DecisionApproved}, baseTime)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestReplayIsDeterministic(t *testing.T) {
	envs := lifecycle(t)

	first, err := Replay(envs)
	require.NoError(t, err)
	second, err := Replay(envs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusApproved, first.Status)
	assert.Equal(t, int64(5), first.Version)
}

func TestReplayRejectsNonContiguousStream(t *testing.T) {
	envs := lifecycle(t)
	envs[2].Sequence = 7

	_, err := Replay(envs)
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestApplyNeverMovesStatusBackwards(t *testing.T) {
	envs := lifecycle(t)
	order := map[Status]int{StatusCreated: 1, StatusFileAttached: 2, StatusProcessed: 3, StatusApproved: 4, StatusRejected: 4}

	// Every permutation of the lifecycle events either follows the lifecycle
	// or is rejected.
	permute(envs, func(p []Envelope) {
		var state Bill
		for i, env := range p {
			env.Sequence = int64(i + 1)
			next, err := Apply(state, env)
			if err != nil {
				assert.ErrorIs(t, err, ErrCorruptStream)
				return
			}
			if state.Exists() {
				assert.GreaterOrEqual(t, order[next.Status], order[state.Status])
				assert.LessOrEqual(t, order[next.Status]-order[state.Status], 1)
			}
			state = next
		}
	})
}

func TestApplyDoesNotShareMetadata(t *testing.T) {
	meta := map[string]any{"k": "v"}
	state, err := Apply(Bill{}, Envelope{Sequence: 1, Event: BillCreated{BillID: "b1", Title: "t", Total: decimal.NewFromInt(1), Metadata: meta}})
	require.NoError(t, err)

	meta["k"] = "changed"
	assert.Equal(t, "v", state.Metadata["k"])
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, Status("").CanTransition(StatusCreated))
	assert.True(t, StatusCreated.CanTransition(StatusFileAttached))
	assert.True(t, StatusProcessed.CanTransition(StatusRejected))
	assert.False(t, StatusCreated.CanTransition(StatusProcessed))
	assert.False(t, StatusApproved.CanTransition(StatusRejected))
	assert.False(t, StatusFileAttached.CanTransition(StatusCreated))
}

func TestDecideUnknownCommand(t *testing.T) {
	_, err := Decide(Bill{}, nil, baseTime)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func lifecycle(t *testing.T) []Envelope {
	t.Helper()
	commands := []Command{
		CreateBill{ID: "b1", Title: "Utilities", Total: decimal.RequireFromString("100.00")},
		AttachFile{BillID: "b1", Filename: "u.pdf", ContentType: "application/pdf", FileSize: 10},
		ApplyOcrResult{BillID: "b1", ExtractedText: "100.00", Confidence: 1},
		ApproveBill{BillID: "b1", ApproverID: "u1", Decision: DecisionApproved},
	}
	var (
		state Bill
		envs  []Envelope
	)
	for i, cmd := range commands {
		at := baseTime.Add(time.Duration(i) * time.Minute)
		events, err := Decide(state, cmd, at)
		require.NoError(t, err)
		for _, ev := range events {
			env := Envelope{Sequence: state.Version + 1, RecordedAt: at, Event: ev}
			state, err = Apply(state, env)
			require.NoError(t, err)
			envs = append(envs, env)
		}
	}
	return envs
}

func permute(envs []Envelope, fn func([]Envelope)) {
	var rec func(int)
	p := append([]Envelope(nil), envs...)
	rec = func(k int) {
		if k == len(p) {
			fn(append([]Envelope(nil), p...))
			return
		}
		for i := k; i < len(p); i++ {
			p[k], p[i] = p[i], p[k]
			rec(k + 1)
			p[k], p[i] = p[i], p[k]
		}
	}
	rec(0)
}
