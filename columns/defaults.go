package columns

import "github.com/gigapi/draftpipe/model"

var (
	DefaultColumns  = []string{"num_taken", "ata", "num_seen", "alsa", "num_gih", "gih_wr"}
	DefaultGroupBys = []string{model.ColName}
)

var (
	inViews   = []model.View{model.ViewDraft, model.ViewGame}
	inDraft   = []model.View{model.ViewDraft}
	inGame    = []model.View{model.ViewGame}
	inCardSet = []model.View{model.ViewCard}
)

// Defaults returns the built-in column set for 17Lands public data.
func Defaults() []model.ColumnDefinition {
	return []model.ColumnDefinition{
		{Name: model.ColName, Kind: model.KindGroupBy, Views: inCardSet},
		{Name: model.ColExpansion, Kind: model.KindGroupBy, Views: inViews},
		{Name: model.ColEventType, Kind: model.KindGroupBy, Views: inViews},
		{Name: model.ColRank, Kind: model.KindGroupBy},
		{Name: model.ColDraftID, Kind: model.KindFilterOnly},
		{Name: model.ColPick, Kind: model.KindFilterOnly, Views: inDraft},
		{
			Name: "player_cohort",
			Expr: `user_n_games_bucket < 100 ? "Other" : (user_game_win_rate_bucket > 0.57 ? "Top" : (user_game_win_rate_bucket < 0.49 ? "Bottom" : "Middle"))`,
			Kind: model.KindGroupBy,
		},
		{Name: "pack_num", Expr: "pack_number + 1", Kind: model.KindGroupBy, Views: inDraft},
		{Name: "pick_num", Expr: "pick_number + 1", Kind: model.KindGroupBy, Views: inDraft},

		// draft view
		{Name: "num_taken", Expr: "pick != nil ? 1 : 0", Kind: model.KindPickSum, Views: inDraft},
		{Name: "num_drafts", Expr: "pack_number == 0 and pick_number == 0 ? 1 : 0", Kind: model.KindPickSum, Views: inDraft},
		{Name: "taken_at", Expr: "pick_num", Dependencies: []string{"pick_num"}, Kind: model.KindPickSum},
		{Name: "pack_card", Kind: model.KindNameSum, Views: inDraft},
		{Name: "pool", Kind: model.KindNameSum, Views: inDraft},
		{Name: "last_seen", Expr: "pack_card * min(pick_num, 8)", Dependencies: []string{"pack_card", "pick_num"}, Kind: model.KindNameSum},
		{Name: "num_seen", Expr: "pick_num <= 8 ? pack_card : 0", Dependencies: []string{"pack_card", "pick_num"}, Kind: model.KindNameSum},

		// game view
		{Name: "num_games", Expr: "1", Kind: model.KindPickSum, Views: inGame},
		{Name: "num_won", Expr: "won ? 1 : 0", Kind: model.KindPickSum, Views: inGame},
		{Name: "deck", Kind: model.KindNameSum, Views: inGame},
		{Name: "sideboard", Kind: model.KindNameSum, Views: inGame},
		{Name: "opening_hand", Kind: model.KindNameSum, Views: inGame},
		{Name: "drawn", Kind: model.KindNameSum, Views: inGame},
		{Name: "num_gih", Expr: "opening_hand + drawn > 0 ? 1 : 0", Dependencies: []string{"opening_hand", "drawn"}, Kind: model.KindNameSum},
		{Name: "num_won_gih", Expr: "num_won * num_gih", Dependencies: []string{"num_won", "num_gih"}, Kind: model.KindNameSum},
		{Name: "won_deck", Expr: "num_won * deck", Dependencies: []string{"num_won", "deck"}, Kind: model.KindNameSum},

		// post-aggregation ratios
		{Name: "ata", Expr: "taken_at / num_taken", Dependencies: []string{"taken_at", "num_taken"}, Kind: model.KindAgg},
		{Name: "alsa", Expr: "last_seen / num_seen", Dependencies: []string{"last_seen", "num_seen"}, Kind: model.KindAgg},
		{Name: "gih_wr", Expr: "num_won_gih / num_gih", Dependencies: []string{"num_won_gih", "num_gih"}, Kind: model.KindAgg},
		{Name: "gp_wr", Expr: "won_deck / deck", Dependencies: []string{"won_deck", "deck"}, Kind: model.KindAgg},

		// card attributes
		{Name: "rarity", Kind: model.KindCardAttr, Views: inCardSet},
		{Name: "color", Kind: model.KindCardAttr, Views: inCardSet},
		{Name: "mana_value", Kind: model.KindCardAttr, Views: inCardSet},
		{Name: "types", Kind: model.KindCardAttr, Views: inCardSet},
	}
}

// Default returns a registry holding Defaults.
func Default() *Registry {
	r, err := New(Defaults())
	if err != nil {
		panic(err)
	}
	return r
}
