package watchlist

// UpgradeProfile reshapes a stored profile from an older schema version
// to the current one.
func UpgradeProfile(p *Profile, fromVersion int) error {
	switch fromVersion {
	case 0:
		// Version 0 stored no friend list. Leave it empty so the next
		// monitor pass repopulates it from the live friend graph.
		if p.FriendIDs == nil {
			p.FriendIDs = []int64{}
		}
		return nil
	default:
		return nil
	}
}
