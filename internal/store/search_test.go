package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/voice-notes/internal/model"
)

func seedSearchNotes(t *testing.T, s *SQLiteStore) map[string]int64 {
	t.Helper()
	ctx := context.Background()

	meetup := newNote("Crypto meetup", baseTime)
	meetup.Summary = "Sarah and Alex discussed Layer 2 scaling."
	meetup.Transcription = "Hey, aren't you Alex from ChainBridge Ventures?"
	company := model.NewMapping()
	company.Set("name", model.String("DigitalFin Labs"))
	company.Set("founded", model.Number(2021))
	meetup.Metadata.Set("companies", model.Sequence(model.Map(company)))
	meetup.Metadata.Set("handles", model.Sequence(model.String("@punk6529"), model.String("@Cobie")))

	groceries := newNote("Groceries", baseTime)
	groceries.Category = "Personal"
	groceries.Summary = "Buy milk."
	groceries.Transcription = "Remember to buy milk and eggs."
	groceries.Metadata = model.NewMapping()
	groceries.Metadata.Set("age", model.Number(42))
	groceries.Metadata.Set("urgent", model.Bool(false))
	groceries.Metadata.Set("store", model.Null())
	groceries.TelegramHandle = "@MilkMan"

	ids := map[string]int64{}
	for _, n := range []model.Note{meetup, groceries} {
		id, err := s.Add(ctx, n)
		require.NoError(t, err)
		ids[n.Title] = id
	}
	return ids
}

func titles(notes []model.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSearchNotes(t, s)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"title", "MEETUP", []string{"Crypto meetup"}},
		{"category", "personal", []string{"Groceries"}},
		{"summary", "layer 2", []string{"Crypto meetup"}},
		{"transcription", "eggs", []string{"Groceries"}},
		{"telegram handle", "milkman", []string{"Groceries"}},
		{"nested metadata string", "digitalfin", []string{"Crypto meetup"}},
		{"metadata array", "COBIE", []string{"Crypto meetup"}},
		{"metadata number", "2021", []string{"Crypto meetup"}},
		{"metadata number substring", "4", []string{"Groceries"}},
		{"metadata bool", "fals", []string{"Groceries"}},
		{"metadata key never matches", "handles", []string{}},
		{"metadata null never matches", "null", []string{}},
		{"shared field", "networking", []string{"Crypto meetup"}},
		{"metadata place", "lisbon", []string{"Crypto meetup"}},
		{"no match", "solana", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestSearchMatchesBothInIDOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ids := seedSearchNotes(t, s)

	got, err := s.Search(ctx, "buy")
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries"}, titles(got))

	got, err = s.Search(ctx, "summary")
	require.NoError(t, err)
	require.Len(t, got, 0)

	got, err = s.Search(ctx, "e")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids["Crypto meetup"], got[0].ID)
	assert.Equal(t, ids["Groceries"], got[1].ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Search(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrEmptyQuery)
}
