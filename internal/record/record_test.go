package record

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardHTML(t *testing.T) {
	card := Card{
		Title: "Critical Success",
		Text:  "You return with all HP and Stress cleared.",
		Image: "assets/images/critical.webp",
		Dice: []Face{
			{Label: "Hope: 7", Colour: ColourGold},
			{Label: "Fear: 7", Colour: ColourOrchid},
		},
	}
	html, err := card.HTML()
	require.NoError(t, err)

	assert.Contains(t, html, "Critical Success")
	assert.Contains(t, html, "Hope: 7")
	assert.Contains(t, html, "Fear: 7")
	assert.Contains(t, html, "critical.webp")
	assert.NotContains(t, html, `class="details"`)
}

func TestCardDetailsAndEscaping(t *testing.T) {
	card := Card{
		Title: "Scarred",
		Text:  "<script>alert(1)</script>",
		Details: []Detail{
			{Label: "Roll (d12)", Value: "3"},
			{Label: "Phoenix Feather", Value: "+1", Accent: true},
			{Label: "TOTAL", Value: "4", Total: true},
		},
		Footer: "(Level Threshold: 3)",
	}
	html, err := card.HTML()
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "Roll (d12):")
	assert.Contains(t, html, "Phoenix Feather:")
	assert.Contains(t, html, "(Level Threshold: 3)")
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	base := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)
	require.NoError(t, store.PostRecord(ctx, Record{
		FlowID: "f1", UserID: "u-ana", Branch: "avoid", Outcome: "avoid_scar",
		Speaker: "Death Moves", Title: "Scarred", HTML: "<div>1</div>", Style: StyleOther,
		CreatedAt: base,
	}))
	require.NoError(t, store.PostRecord(ctx, Record{
		FlowID: "f2", UserID: "u-bo", Branch: "risk", Outcome: "critical",
		Speaker: "Risk It All", Title: "Critical Success", HTML: "<div>2</div>", Style: StyleOther,
		CreatedAt: base.Add(time.Minute),
	}))

	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "f2", records[0].FlowID)
	assert.Equal(t, "critical", records[0].Outcome)
	assert.Equal(t, base.Add(time.Minute), records[0].CreatedAt)
	assert.Equal(t, "f1", records[1].FlowID)

	err = store.PostRecord(ctx, Record{FlowID: "f3"})
	require.Error(t, err)

	// Reopening keeps data and does not re-run migrations.
	require.NoError(t, store.Close())
	store, err = Open(path)
	require.NoError(t, err)
	records, err = store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
}

type failingPoster struct{ err error }

func (f failingPoster) PostRecord(context.Context, Record) error { return f.err }

func TestMultiAndLogPoster(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	boom := errors.New("disk full")

	m := Multi{failingPoster{err: boom}, LogPoster{Logger: logger}}
	err := m.PostRecord(context.Background(), Record{Title: "Blaze of Glory", Branch: "blaze"})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "Blaze of Glory")
	assert.Contains(t, buf.String(), "branch=blaze")
}
