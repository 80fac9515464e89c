package manifest

import (
	"encoding/json"
	"testing"

	"github.com/gigapi/draftpipe/columns"
	"github.com/gigapi/draftpipe/model"
	"github.com/stretchr/testify/require"
)

func boundDefaults(t *testing.T) *columns.Registry {
	reg, err := columns.Default().Bind(map[model.View][]string{
		model.ViewDraft: {
			"expansion", "event_type", "draft_id", "rank", "pack_number", "pick_number", "pick",
			"pack_card_Ornithopter", "pack_card_Shock", "pool_Ornithopter", "pool_Shock",
		},
		model.ViewGame: {
			"expansion", "event_type", "draft_id", "rank", "won",
			"deck_Ornithopter", "deck_Shock", "opening_hand_Ornithopter", "opening_hand_Shock",
			"drawn_Ornithopter", "drawn_Shock",
		},
		model.ViewCard: {"name", "rarity", "color"},
	})
	require.NoError(t, err)
	return reg
}

func TestCreate_Defaults(t *testing.T) {
	m, err := Create(boundDefaults(t), nil, nil, "")
	require.NoError(t, err)
	require.Equal(t, []string{model.ColName}, m.GroupBys)
	require.Equal(t, []ViewColumns{
		{View: model.ViewDraft, Columns: []string{"num_taken", "taken_at", "num_seen", "last_seen", "pick"}},
		{View: model.ViewGame, Columns: []string{"num_gih", "num_won_gih"}},
	}, m.ViewColumns)
	require.Equal(t, []string{"ata", "alsa", "gih_wr"}, m.Aggregates)
	require.Empty(t, m.CardAttrs)
	require.Nil(t, m.Filter)
}

func TestCreate_GlobalWithFilter(t *testing.T) {
	m, err := Create(boundDefaults(t), []string{"num_games", "num_taken"}, []string{}, `rank == "gold"`)
	require.NoError(t, err)
	require.Empty(t, m.GroupBys)
	require.Equal(t, []string{"num_taken", "rank"}, m.Columns(model.ViewDraft))
	require.Equal(t, []string{"num_games", "rank"}, m.Columns(model.ViewGame))
	require.NotNil(t, m.Filter)
}

func TestCreate_CardAttrs(t *testing.T) {
	reg := boundDefaults(t)
	m, err := Create(reg, []string{"num_taken", "rarity"}, []string{model.ColName, model.ColExpansion}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"rarity"}, m.CardAttrs)
	require.Equal(t, []string{model.ColName, "rarity"}, m.Columns(model.ViewCard))
	require.Equal(t, []string{model.ColExpansion}, m.NonNameGroupBys())
	require.Equal(t, []string{model.ColExpansion, "num_taken", "pick"}, m.Columns(model.ViewDraft))

	_, err = Create(reg, []string{"num_taken", "rarity"}, []string{}, "")
	require.ErrorIs(t, err, model.ErrConfiguration)

	_, err = Create(reg, []string{"num_taken", "types"}, nil, "")
	require.ErrorIs(t, err, model.ErrConfiguration, "types is not in the card file")
}

func TestCreate_CardGroupBys(t *testing.T) {
	reg := boundDefaults(t)
	m, err := Create(reg, []string{"num_taken", "ata"}, []string{"rarity", model.ColExpansion}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"rarity", model.ColExpansion}, m.GroupBys)
	require.Equal(t, []string{model.ColName, model.ColExpansion}, m.BaseGroupBys)
	require.Equal(t, []string{"rarity"}, m.CardGroupBys)
	require.True(t, m.GroupedByName())
	require.True(t, m.Regrouped())
	require.Equal(t, []string{model.ColName, "rarity"}, m.Columns(model.ViewCard))
	require.Equal(t, []string{model.ColExpansion, "num_taken", "taken_at", "pick"}, m.Columns(model.ViewDraft))
	require.Equal(t, []string{"num_taken", "taken_at"}, m.SumColumns())

	byName, err := Create(reg, []string{"num_taken", "ata"}, []string{model.ColName, model.ColExpansion}, "")
	require.NoError(t, err)
	require.False(t, byName.Regrouped())
	ja, err := json.Marshal(m)
	require.NoError(t, err)
	jb, err := json.Marshal(byName)
	require.NoError(t, err)
	require.Equal(t, string(jb), string(ja), "card groupbys share the aggregation of name")

	both, err := Create(reg, []string{"num_taken"}, []string{model.ColName, "rarity"}, "")
	require.NoError(t, err)
	require.Equal(t, []string{model.ColName}, both.BaseGroupBys)
	require.False(t, both.Regrouped())

	_, err = Create(reg, []string{"num_taken"}, []string{"types"}, "")
	require.ErrorIs(t, err, model.ErrConfiguration, "types is not in the card file")
	_, err = Create(reg, []string{"num_taken", "color"}, []string{"rarity"}, "")
	require.ErrorIs(t, err, model.ErrConfiguration, "card attribute columns need name in groupbys")
	_, err = Create(reg, []string{"num_games"}, []string{"rarity"}, "")
	require.ErrorIs(t, err, model.ErrConfiguration, "game pick sums cannot be grouped by name")
}

func TestCreate_Errors(t *testing.T) {
	reg := boundDefaults(t)
	cases := []struct {
		name     string
		cols     []string
		groupbys []string
		filter   string
	}{
		{"unknown column", []string{"nope"}, nil, ""},
		{"unknown groupby", []string{"num_taken"}, []string{"nope"}, ""},
		{"group by a sum", []string{"num_taken"}, []string{"num_drafts"}, ""},
		{"requested twice", []string{"num_taken", "num_taken"}, nil, ""},
		{"group by name over game pick sums", []string{"num_games"}, nil, ""},
		{"filter on name sum", []string{"num_taken"}, nil, "pack_card > 0"},
		{"filter not in game view", []string{"num_gih"}, []string{}, "pick_num > 3"},
		{"groupby not in game view", []string{"num_gih"}, []string{"pick_num"}, ""},
		{"no entity columns", []string{"sideboard"}, nil, ""},
		{"groupby only", []string{"rank"}, []string{}, ""},
		{"bad filter", []string{"num_taken"}, nil, "rank =="},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Create(reg, tc.cols, tc.groupbys, tc.filter)
			require.ErrorIs(t, err, model.ErrConfiguration)
		})
	}

	_, err := Create(columns.Default(), nil, nil, "")
	require.ErrorIs(t, err, model.ErrConfiguration, "unbound registry")
}

func TestManifest_MarshalJSON(t *testing.T) {
	reg := boundDefaults(t)
	a, err := Create(reg, []string{"alsa"}, nil, `rank == "gold"`)
	require.NoError(t, err)
	b, err := Create(reg, []string{"alsa"}, nil, `rank == "gold"`)
	require.NoError(t, err)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	require.Equal(t, string(ja), string(jb))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ja, &decoded))
	require.Equal(t, `rank == "gold"`, decoded["filter"])
	require.Contains(t, decoded["entities"], "last_seen")

	// extensions that the plan does not use leave the serialization unchanged
	ext, err := reg.With([]model.ColumnDefinition{{Name: "unused", Expr: "pick_number", Kind: model.KindPickSum}})
	require.NoError(t, err)
	c, err := Create(ext, []string{"alsa"}, nil, `rank == "gold"`)
	require.NoError(t, err)
	jc, err := json.Marshal(c)
	require.NoError(t, err)
	require.Equal(t, string(ja), string(jc))
}
