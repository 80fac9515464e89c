package columns

import (
	"encoding/json"
	"testing"

	"github.com/gigapi/draftpipe/model"
	"github.com/stretchr/testify/require"
)

func testSchemas() map[model.View][]string {
	return map[model.View][]string{
		model.ViewDraft: {
			"expansion", "event_type", "draft_id", "rank", "pack_number", "pick_number", "pick",
			"user_n_games_bucket", "user_game_win_rate_bucket",
			"pack_card_Ornithopter", "pack_card_Shock", "pool_Ornithopter", "pool_Shock",
		},
		model.ViewGame: {
			"expansion", "event_type", "draft_id", "rank", "won",
			"user_n_games_bucket", "user_game_win_rate_bucket",
			"deck_Ornithopter", "deck_Shock",
			"opening_hand_Shock", "opening_hand_Ornithopter",
			"drawn_Ornithopter", "drawn_Shock",
		},
		model.ViewCard: {"name", "rarity", "color", "mana_value", "types"},
	}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(Defaults())
	require.NoError(t, err)
	for _, name := range DefaultColumns {
		_, ok := r.Lookup(name)
		require.True(t, ok, name)
	}
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name string
		defs []model.ColumnDefinition
	}{
		{"missing dependency", []model.ColumnDefinition{
			{Name: "a", Expr: "b", Dependencies: []string{"b"}, Kind: model.KindPickSum},
		}},
		{"cycle", []model.ColumnDefinition{
			{Name: "a", Expr: "b", Dependencies: []string{"b"}, Kind: model.KindPickSum},
			{Name: "b", Expr: "c", Dependencies: []string{"c"}, Kind: model.KindPickSum},
			{Name: "c", Expr: "a", Dependencies: []string{"a"}, Kind: model.KindPickSum},
		}},
		{"undeclared identifier", []model.ColumnDefinition{
			{Name: "a", Kind: model.KindGroupBy},
			{Name: "b", Expr: "a + c", Dependencies: []string{"a"}, Kind: model.KindPickSum},
		}},
		{"duplicate", []model.ColumnDefinition{
			{Name: "a", Kind: model.KindGroupBy},
			{Name: "a", Kind: model.KindPickSum},
		}},
		{"unknown kind", []model.ColumnDefinition{
			{Name: "a"},
		}},
		{"bad expression", []model.ColumnDefinition{
			{Name: "a", Expr: "a +", Kind: model.KindPickSum},
		}},
		{"agg over group by", []model.ColumnDefinition{
			{Name: "a", Kind: model.KindGroupBy},
			{Name: "b", Expr: "a", Dependencies: []string{"a"}, Kind: model.KindAgg},
		}},
		{"pick sum over name sum", []model.ColumnDefinition{
			{Name: "a", Kind: model.KindNameSum},
			{Name: "b", Expr: "a", Dependencies: []string{"a"}, Kind: model.KindPickSum},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.defs)
			require.ErrorIs(t, err, model.ErrConfiguration)
		})
	}
}

func TestRegistry_With(t *testing.T) {
	r := Default()
	ext, err := r.With([]model.ColumnDefinition{
		{Name: "num_taken", Expr: "pick != nil and pick_number < 3 ? 1 : 0", Kind: model.KindPickSum, Views: inDraft},
		{Name: "early_taken", Expr: "num_taken", Dependencies: []string{"num_taken"}, Kind: model.KindPickSum},
	})
	require.NoError(t, err)

	d, ok := ext.Lookup("num_taken")
	require.True(t, ok)
	require.Contains(t, d.Expr, "pick_number < 3")
	_, ok = ext.Lookup("early_taken")
	require.True(t, ok)
	require.Len(t, ext.Definitions(), len(r.Definitions())+1)

	orig, _ := r.Lookup("num_taken")
	require.Equal(t, "pick != nil ? 1 : 0", orig.Expr, "base registry is untouched")

	_, err = r.With([]model.ColumnDefinition{{Name: "broken", Expr: "x", Dependencies: []string{"x"}, Kind: model.KindPickSum}})
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestRegistry_Bind(t *testing.T) {
	r, err := Default().Bind(testSchemas())
	require.NoError(t, err)
	require.True(t, r.Bound())

	require.Equal(t, []string{"Ornithopter", "Shock"}, r.Entities("pack_card"))
	require.Equal(t, []string{"Ornithopter", "Shock"}, r.Entities("last_seen"))
	require.Equal(t, []string{"Shock", "Ornithopter"}, r.Entities("num_gih"), "derived entities follow the first dependency")
	require.Empty(t, r.Entities("sideboard"))

	col, ok := r.EntityField("pack_card", "Shock")
	require.True(t, ok)
	require.Equal(t, "pack_card_Shock", col)

	require.True(t, r.Computable("num_taken", model.ViewDraft))
	require.False(t, r.Computable("num_taken", model.ViewGame))
	require.True(t, r.Computable("num_games", model.ViewGame))
	require.False(t, r.Computable("num_games", model.ViewDraft))
	require.Equal(t, []model.View{model.ViewDraft, model.ViewGame}, r.Views("player_cohort"))
	require.Equal(t, []model.View{model.ViewGame}, r.Views("num_won_gih"))
	require.Equal(t, []model.View{model.ViewCard}, r.Views("rarity"))
	require.False(t, r.Computable("sideboard", model.ViewGame))
}

func TestRegistry_BindNativeMismatch(t *testing.T) {
	r, err := New([]model.ColumnDefinition{
		{Name: "seat", Expr: "seat_number + 1", Kind: model.KindGroupBy, Views: inDraft},
	})
	require.NoError(t, err)
	_, err = r.Bind(testSchemas())
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestRegistry_BindPartialEntities(t *testing.T) {
	schemas := testSchemas()
	schemas[model.ViewGame] = append(schemas[model.ViewGame], "drawn_Island")
	r, err := Default().Bind(schemas)
	require.NoError(t, err)
	require.Equal(t, []string{"Shock", "Ornithopter"}, r.Entities("num_gih"))
	require.Equal(t, []string{"Ornithopter", "Shock", "Island"}, r.Entities("drawn"))
}

func TestRegistry_BindPartialCardFile(t *testing.T) {
	schemas := testSchemas()
	schemas[model.ViewCard] = []string{"name", "rarity"}
	r, err := Default().Bind(schemas)
	require.NoError(t, err)
	require.True(t, r.Computable("rarity", model.ViewCard))
	require.False(t, r.Computable("types", model.ViewCard))
}

func TestRegistry_MarshalJSON(t *testing.T) {
	r, err := New([]model.ColumnDefinition{
		{Name: "pick_num", Expr: "pick_number + 1", Kind: model.KindGroupBy, Views: inDraft},
	})
	require.NoError(t, err)
	b, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"pick_num","expr":"pick_number + 1","kind":"GROUP_BY","views":["draft"]}]`, string(b))
}
