package registry

import "github.com/draftroom/stats-cli/internal/model"

// Default returns the registry populated with every known provider contract.
// Four heterogeneous providers feed the pipeline: a statistics feed, a
// roster/league platform, a market-valuation feed, and commissioner
// spreadsheet records.
func Default() *Registry {
	r := New()

	// statsfeed: weekly player statistics over HTTP JSON.
	r.MustRegister(&Contract{
		Provider:   "statsfeed",
		Dataset:    "weekly_stats",
		LoaderPath: "statsfeed.weekly_stats",
		PrimaryKey: []string{"player_id", "season", "week"},
		Columns: []Column{
			{"player_id", TypeString},
			{"season", TypeInt},
			{"week", TypeInt},
			{"team", TypeString},
			{"position", TypeString},
			{"pass_yards", TypeFloat},
			{"rush_yards", TypeFloat},
			{"rec_yards", TypeFloat},
			{"touchdowns", TypeInt},
			{"fantasy_points", TypeFloat},
		},
		Cadence:        TwiceDaily,
		NativeIDColumn: "player_id",
		Entity:         model.EntityPlayer,
	})

	r.MustRegister(&Contract{
		Provider:   "statsfeed",
		Dataset:    "players",
		LoaderPath: "statsfeed.players",
		PrimaryKey: []string{"player_id"},
		Columns: []Column{
			{"player_id", TypeString},
			{"full_name", TypeString},
			{"team", TypeString},
			{"position", TypeString},
			{"status", TypeString},
			{"birth_date", TypeDate},
		},
		Cadence:        Daily,
		NativeIDColumn: "player_id",
		Entity:         model.EntityPlayer,
	})

	// leaguehq: roster and league platform, HTTP JSON.
	r.MustRegister(&Contract{
		Provider:   "leaguehq",
		Dataset:    "rosters",
		LoaderPath: "leaguehq.rosters",
		PrimaryKey: []string{"league_id", "franchise_id", "player_id"},
		Columns: []Column{
			{"league_id", TypeString},
			{"franchise_id", TypeString},
			{"player_id", TypeString},
			{"player_name", TypeString},
			{"roster_slot", TypeString},
			{"acquired", TypeString},
		},
		Cadence:        TwiceDaily,
		NativeIDColumn: "player_id",
		Entity:         model.EntityPlayer,
	})

	r.MustRegister(&Contract{
		Provider:   "leaguehq",
		Dataset:    "teams",
		LoaderPath: "leaguehq.teams",
		PrimaryKey: []string{"league_id", "franchise_id"},
		Columns: []Column{
			{"league_id", TypeString},
			{"franchise_id", TypeString},
			{"franchise_name", TypeString},
			{"owner", TypeString},
			{"division", TypeString},
		},
		Cadence:        Daily,
		NativeIDColumn: "franchise_id",
		Entity:         model.EntityTeam,
	})

	// valuator: market valuations, CSV feed.
	r.MustRegister(&Contract{
		Provider:   "valuator",
		Dataset:    "player_values",
		LoaderPath: "valuator.player_values",
		PrimaryKey: []string{"asset_id", "value_date"},
		Columns: []Column{
			{"asset_id", TypeString},
			{"asset_name", TypeString},
			{"value_date", TypeDate},
			{"market_value", TypeFloat},
			{"trend_30d", TypeFloat},
			{"is_pick", TypeBool},
		},
		Cadence:        Daily,
		NativeIDColumn: "asset_id",
		Entity:         model.EntityDraftAsset,
	})

	// commish: commissioner draft records, XLSX over FTP.
	r.MustRegister(&Contract{
		Provider:   "commish",
		Dataset:    "draft_picks",
		LoaderPath: "commish.draft_picks",
		PrimaryKey: []string{"season", "round", "pick"},
		Columns: []Column{
			{"season", TypeInt},
			{"round", TypeInt},
			{"pick", TypeInt},
			{"franchise", TypeString},
			{"player_name", TypeString},
			{"traded", TypeBool},
		},
		Cadence:        Weekly,
		NativeIDColumn: "player_name",
		Entity:         model.EntityPlayer,
	})

	return r
}
