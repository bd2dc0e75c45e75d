package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathmoves/internal/config"
	"github.com/lox/deathmoves/internal/flow"
	"github.com/lox/deathmoves/internal/i18n"
	"github.com/lox/deathmoves/internal/outcome"
	"github.com/lox/deathmoves/internal/protocol"
)

type fakeFlow struct {
	mu        sync.Mutex
	targets   []string
	triggers  []error
	chosen    chan outcome.Branch
	cancelErr error
	cancels   int
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{chosen: make(chan outcome.Branch, 4)}
}

func (f *fakeFlow) TriggerFlow(ctx context.Context, chooser flow.TargetChooser) (string, error) {
	id, err := chooser.ChooseTarget(ctx, []protocol.Participant{
		{UserID: "bo", Name: "Bo"},
		{UserID: "cleo", Name: "Cleo"},
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, err)
	if err != nil {
		return "", err
	}
	f.targets = append(f.targets, id)
	return "flow-1", nil
}

func (f *fakeFlow) Choose(_ context.Context, branch outcome.Branch) error {
	f.chosen <- branch
	return nil
}

func (f *fakeFlow) Cancel(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.cancelErr
}

func (f *fakeFlow) snapshot() ([]string, []error, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...), append([]error(nil), f.triggers...), f.cancels
}

func runController(t *testing.T, model *Model, f Flow, inputs ...string) {
	t.Helper()
	runControllerWith(t, model, f, nil, inputs...)
}

func runControllerWith(t *testing.T, model *Model, f Flow, opts []ControllerOption, inputs ...string) {
	t.Helper()
	for _, in := range inputs {
		require.NoError(t, model.InjectAction(in))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, NewController(model, f, quietLogger(), opts...).Run(ctx))
}

func TestControllerTriggerAndChoose(t *testing.T) {
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)
	f := newFakeFlow()

	runController(t, model, f, "trigger", "9", "target cleo", "2", "quit")

	targets, triggers, _ := f.snapshot()
	assert.Equal(t, []string{"cleo"}, targets)
	assert.Equal(t, []error{nil}, triggers)

	select {
	case branch := <-f.chosen:
		assert.Equal(t, outcome.BranchBlaze, branch)
	case <-time.After(time.Second):
		t.Fatal("choice was never made")
	}

	log := model.GetCapturedLog()
	assert.Contains(t, log, "Choose a player (number or id, c to cancel):")
	assert.Contains(t, log, "  1) Bo (bo)")
	assert.Contains(t, log, "  2) Cleo (cleo)")
	assert.Condition(t, func() bool {
		for _, entry := range log {
			if strings.Contains(entry, `No player "9"`) {
				return true
			}
		}
		return false
	})
}

func TestControllerPicksByNumberAndName(t *testing.T) {
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)
	f := newFakeFlow()

	runController(t, model, f, "t", "1", "trigger", "cleo", "quit")

	targets, _, _ := f.snapshot()
	assert.Equal(t, []string{"bo", "cleo"}, targets)
}

func TestControllerCancelSelection(t *testing.T) {
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)
	f := newFakeFlow()

	runController(t, model, f, "trigger", "c", "quit")

	targets, triggers, _ := f.snapshot()
	assert.Empty(t, targets)
	require.Len(t, triggers, 1)
	assert.ErrorIs(t, triggers[0], ErrSelectionCancelled)
	assert.Contains(t, model.GetCapturedLog(), InfoStyle.Render("Cancelled."))
}

func TestControllerSpectatorClose(t *testing.T) {
	view := newView(t)
	view.ShowSpectator(nil)
	model := NewModelWithOptions(view, i18n.New("en"), "Death Moves", quietLogger(), true)
	f := newFakeFlow()
	f.cancelErr = flow.ErrNotTarget

	runController(t, model, f, "close", "quit")

	_, _, cancels := f.snapshot()
	assert.Equal(t, 1, cancels)
	assert.Nil(t, view.Snapshot().Overlay)
	assert.Empty(t, model.GetCapturedLog())
}

func TestControllerCancelWithNothingShown(t *testing.T) {
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)
	f := newFakeFlow()
	f.cancelErr = flow.ErrNotTarget

	runController(t, model, f, "c", "quit")

	log := model.GetCapturedLog()
	require.Len(t, log, 1)
	assert.Contains(t, log[0], flow.ErrNotTarget.Error())
}

func TestControllerUnknownCommand(t *testing.T) {
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)

	runController(t, model, newFakeFlow(), "dance", "quit")

	log := model.GetCapturedLog()
	require.NotEmpty(t, log)
	assert.Equal(t, "Unknown command: dance", log[0])
	assert.Contains(t, log, "Commands:")
}

func TestControllerSkipMedia(t *testing.T) {
	view := newView(t)
	view.ShowMedia("assets/images/hope.webp")
	model := NewModelWithOptions(view, i18n.New("en"), "Death Moves", quietLogger(), true)

	runController(t, model, newFakeFlow(), "skip", "skip", "quit")

	assert.Nil(t, view.Snapshot().Media)
	assert.Equal(t, []string{InfoStyle.Render("Nothing to skip.")}, model.GetCapturedLog())
}

func TestControllerSet(t *testing.T) {
	store := config.NewStore(config.DefaultConfig().Settings)
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)

	runControllerWith(t, model, newFakeFlow(), []ControllerOption{WithSettings(store)},
		"set countdown 3", "set double on", "set odds off", "set countdown 99", "set speed 2", "set", "quit")

	got := store.Settings()
	assert.Equal(t, 3, got.CountdownDuration)
	assert.True(t, got.DoubleRoll)
	assert.False(t, got.ShowProbabilities)

	log := model.GetCapturedLog()
	require.Len(t, log, 6)
	assert.Contains(t, log[0], "countdown = 3")
	assert.Contains(t, log[3], "countdown duration must be between 0 and")
	assert.Contains(t, log[4], `unknown setting "speed"`)
	assert.Equal(t, "countdown=3 double=true odds=false", log[5])
}

func TestControllerSetWithoutSettings(t *testing.T) {
	model := NewModelWithOptions(newView(t), i18n.New("en"), "Death Moves", quietLogger(), true)

	runController(t, model, newFakeFlow(), "set countdown 3", "quit")

	log := model.GetCapturedLog()
	require.Len(t, log, 1)
	assert.Contains(t, log[0], "Settings cannot be changed here.")
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input string
		want  outcome.Branch
	}{
		{"1", outcome.BranchAvoid},
		{"2", outcome.BranchBlaze},
		{"3", outcome.BranchRisk},
		{"risk", outcome.BranchRisk},
		{"avoid", outcome.BranchAvoid},
	}
	for _, tt := range tests {
		got, err := parseChoice(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := parseChoice("4")
	assert.ErrorIs(t, err, outcome.ErrUnknownBranch)
}
