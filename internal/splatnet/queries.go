package splatnet

// Persisted query ids (sha256 of the query text registered with the backend).
const (
	// HomeQuery is the home-page probe used for token validation.
	HomeQuery = "51fc56bbf006caf37728914aa8bc0e2c86a80cf195b4d4027d6822a3623098a8"

	// LatestBattleHistoriesQuery lists the most recent battles; the first
	// entry's id carries the account identifier.
	LatestBattleHistoriesQuery = "b24d22fd6cb251c515c2b90044039698aa27bc1fab15801d83014d919cd45780"

	// EquipmentsQuery is myOutfitCommonDataEquipmentsQuery: every owned
	// weapon, head, clothing and shoes item.
	EquipmentsQuery = "45a4c343d973864f7bb9e9efac404182be1d48cf2181619505e9b7cd3b56a6e8"
)
