package enums

// RankTier is the loyalty level derived from accumulated points.
type RankTier string

const (
	RankMember  RankTier = "MEMBER"
	RankSilver  RankTier = "SILVER"
	RankGold    RankTier = "GOLD"
	RankDiamond RankTier = "DIAMOND"
)

type rankThreshold struct {
	tier      RankTier
	minPoints int64
}

// ordered from highest to lowest
var rankThresholds = []rankThreshold{
	{tier: RankDiamond, minPoints: 20000},
	{tier: RankGold, minPoints: 5000},
	{tier: RankSilver, minPoints: 1000},
	{tier: RankMember, minPoints: 0},
}

// TierForPoints returns the highest tier whose threshold the points reach.
func TierForPoints(points int64) RankTier {
	for _, threshold := range rankThresholds {
		if points >= threshold.minPoints {
			return threshold.tier
		}
	}
	return RankMember
}

// NextTier returns the tier after t and the points it requires. ok is false at the top.
func NextTier(t RankTier) (next RankTier, minPoints int64, ok bool) {
	for i, threshold := range rankThresholds {
		if threshold.tier == t && i > 0 {
			up := rankThresholds[i-1]
			return up.tier, up.minPoints, true
		}
	}
	return "", 0, false
}
