package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"toonify/internal/adapter/sqlite"
	"toonify/internal/domain"
	"toonify/internal/events"
	"toonify/internal/providers/replicate"
	"toonify/internal/providers/wan"
	"toonify/internal/storage"
)

type fakeTransfer struct {
	mu        sync.Mutex
	submits   int
	submitErr error
	nextID    int
	// polls holds queued responses per prediction; the last one repeats.
	polls    map[string][]pollStep
	pollHits int
	canceled []string
}

type pollStep struct {
	pred *replicate.Prediction
	err  error
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{polls: map[string][]pollStep{}}
}

func (f *fakeTransfer) Submit(context.Context, []byte, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextID++
	return fmt.Sprintf("pred-%d", f.nextID), nil
}

func (f *fakeTransfer) queue(id string, steps ...pollStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[id] = append(f.polls[id], steps...)
}

func (f *fakeTransfer) Poll(_ context.Context, id string) (*replicate.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollHits++
	steps := f.polls[id]
	if len(steps) == 0 {
		return &replicate.Prediction{ID: id, Status: replicate.StatusProcessing}, nil
	}
	step := steps[0]
	if len(steps) > 1 {
		f.polls[id] = steps[1:]
	}
	return step.pred, step.err
}

func (f *fakeTransfer) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, id)
	return nil
}

func succeeded(id, url string) pollStep {
	return pollStep{pred: &replicate.Prediction{ID: id, Status: replicate.StatusSucceeded, OutputURL: url}}
}

func failed(id string) pollStep {
	return pollStep{pred: &replicate.Prediction{ID: id, Status: replicate.StatusFailed, Error: "NSFW content detected"}}
}

type fakeSynth struct {
	calls   []string
	locales []language.Tag
	text    string
	err     error
}

func (f *fakeSynth) Synthesize(_ context.Context, imageURL string, lang language.Tag) (string, error) {
	f.calls = append(f.calls, imageURL)
	f.locales = append(f.locales, lang)
	return f.text, f.err
}

type fakeVideo struct {
	created   []wan.TaskRequest
	createErr error
	status    map[string]*wan.TaskStatus
	getErr    error
	gets      int
}

func (f *fakeVideo) CreateTask(_ context.Context, req wan.TaskRequest) (*wan.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &wan.Task{TaskID: "task-1", RequestID: "req-1"}, nil
}

func (f *fakeVideo) GetTask(_ context.Context, id string) (*wan.TaskStatus, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if st, ok := f.status[id]; ok {
		return st, nil
	}
	return &wan.TaskStatus{TaskID: id, Status: wan.StateRunning}, nil
}

type fakeRelay struct {
	fail  bool
	calls []string
}

func (f *fakeRelay) Relay(_ context.Context, _, name, folder string) storage.RelayResult {
	f.calls = append(f.calls, folder+"/"+name)
	if f.fail {
		return storage.RelayResult{Error: "bucket unavailable"}
	}
	return storage.RelayResult{Success: true, URL: "https://cdn.test/" + folder + "/" + name, Key: folder + "/" + name}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransformEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.TransformEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

// brokenHistory fails every write but still reads through.
type brokenHistory struct {
	domain.TransformRepository
}

func (brokenHistory) Record(context.Context, *domain.TransformJob) (string, error) {
	return "", errors.New("disk full")
}

// racingLedger drains the balance between the admission check and the charge.
type racingLedger struct {
	*sqlite.Store
}

func (l racingLedger) Deduct(ctx context.Context, userID string, amount int, reason, jobID string) (int, bool, error) {
	balance, err := l.Store.Balance(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if balance > 0 {
		if _, _, err := l.Store.Deduct(ctx, userID, balance, "concurrent spend", "elsewhere-"+jobID); err != nil {
			return 0, false, err
		}
	}
	return l.Store.Deduct(ctx, userID, amount, reason, jobID)
}

type harness struct {
	svc      *Service
	store    *sqlite.Store
	transfer *fakeTransfer
	synth    *fakeSynth
	video    *fakeVideo
	relay    *fakeRelay
	pub      *recordingPublisher
	sleeps   int
}

type harnessOption func(*Options, *sqlite.Store)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store, err := sqlite.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:    store,
		transfer: newFakeTransfer(),
		synth:    &fakeSynth{text: "a graceful princess twirls in a sunlit ballroom"},
		video:    &fakeVideo{status: map[string]*wan.TaskStatus{}},
		relay:    &fakeRelay{},
		pub:      &recordingPublisher{},
	}
	o := Options{
		Credits:           store,
		History:           store,
		Transfer:          h.transfer,
		Prompts:           h.synth,
		Video:             h.video,
		Relay:             h.relay,
		Events:            h.pub,
		ImageWaitInterval: time.Millisecond,
		ImageWaitAttempts: 5,
	}
	for _, opt := range opts {
		opt(&o, store)
	}
	h.svc = New(o)
	h.svc.sleep = func(context.Context, time.Duration) error {
		h.sleeps++
		return nil
	}
	return h
}

func (h *harness) grant(t *testing.T, user string, amount int) {
	t.Helper()
	_, err := h.store.Grant(context.Background(), user, amount, "test grant")
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, user string) int {
	t.Helper()
	b, err := h.store.Balance(context.Background(), user)
	require.NoError(t, err)
	return b
}

func (h *harness) rows(t *testing.T, user string) []domain.TransformJob {
	t.Helper()
	rows, _, err := h.store.List(context.Background(), domain.ListFilter{UserID: user, Limit: 50})
	require.NoError(t, err)
	return rows
}
