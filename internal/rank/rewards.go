package rank

import (
	"math/rand/v2"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Segment is one slice of the reward wheel. Segments without a Type grant
// nothing. Probability is a relative weight.
type Segment struct {
	Name        string
	Type        enums.CouponType
	Value       int64
	Probability int
	Color       string
}

// Grants reports whether landing on the segment mints a coupon.
func (s Segment) Grants() bool {
	return s.Type != "" && s.Value > 0
}

// Segments is the wheel, in the order it is drawn clockwise from the pointer.
var Segments = []Segment{
	{Name: "5%", Type: enums.CouponTypePercentage, Value: 5, Probability: 30, Color: "#f87171"},
	{Name: "10%", Type: enums.CouponTypePercentage, Value: 10, Probability: 20, Color: "#fb923c"},
	{Name: "20.000đ", Type: enums.CouponTypeFixedAmount, Value: 20000, Probability: 20, Color: "#facc15"},
	{Name: "Better luck next time", Probability: 15, Color: "#a3a3a3"},
	{Name: "50.000đ", Type: enums.CouponTypeFixedAmount, Value: 50000, Probability: 10, Color: "#4ade80"},
	{Name: "20%", Type: enums.CouponTypePercentage, Value: 20, Probability: 5, Color: "#60a5fa"},
}

// RewardDTO is a segment as shown to the client.
type RewardDTO struct {
	Index       int              `json:"index"`
	Name        string           `json:"name"`
	Type        enums.CouponType `json:"type,omitempty"`
	Value       int64            `json:"value,omitempty"`
	Probability int              `json:"probability"`
	Color       string           `json:"color"`
}

func rewardDTO(index int, s Segment) RewardDTO {
	return RewardDTO{
		Index:       index,
		Name:        s.Name,
		Type:        s.Type,
		Value:       s.Value,
		Probability: s.Probability,
		Color:       s.Color,
	}
}

// pickWeighted maps roll, uniform in [0, total weight), onto a segment index.
func pickWeighted(segments []Segment, roll int) int {
	for i, s := range segments {
		if roll < s.Probability {
			return i
		}
		roll -= s.Probability
	}
	return len(segments) - 1
}

func totalWeight(segments []Segment) int {
	total := 0
	for _, s := range segments {
		total += s.Probability
	}
	return total
}

func randomRoll(n int) int {
	return rand.IntN(n)
}
