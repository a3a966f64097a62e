package snapshot

import (
	"sort"
	"time"

	"mzunguko/internal/domain"
)

// GridMember is one column of the transparency grid.
type GridMember struct {
	UserID      uint   `json:"user_id"`
	Role        string `json:"role"`
	PayoutRound int    `json:"payout_round"`
}

// GridRound is one row of the transparency grid: the latest active
// contribution status per member plus the payout if issued.
type GridRound struct {
	Round         int             `json:"round"`
	DueDate       time.Time       `json:"due_date"`
	Contributions map[uint]string `json:"contributions"`
	Recipient     uint            `json:"recipient,omitempty"`
	PayoutCents   int64           `json:"payout_cents,omitempty"`
	PayoutIssued  bool            `json:"payout_issued"`
}

// Grid is the read model behind the circle transparency view.
type Grid struct {
	CircleID     uint         `json:"circle_id"`
	Status       string       `json:"status"`
	Frozen       bool         `json:"frozen"`
	CurrentRound int          `json:"current_round"`
	Members      []GridMember `json:"members"`
	Rounds       []GridRound  `json:"rounds"`
}

// BuildGrid assembles the ledger grid for rounds 1..CurrentRound. Removed
// members keep their historical cells but are excluded from the member list.
func (s *Snapshot) BuildGrid(now time.Time) *Grid {
	g := &Grid{
		CircleID:     s.CircleID,
		Status:       s.Status,
		Frozen:       s.Frozen,
		CurrentRound: s.CurrentRound,
	}
	for _, m := range s.ApprovedMembers() {
		g.Members = append(g.Members, GridMember{
			UserID:      m.UserID,
			Role:        m.Role,
			PayoutRound: m.PayoutRound,
		})
	}
	sort.Slice(g.Members, func(i, j int) bool {
		return g.Members[i].PayoutRound < g.Members[j].PayoutRound
	})

	for round := 1; round <= s.CurrentRound; round++ {
		gr := GridRound{
			Round:         round,
			DueDate:       s.DueDate(round),
			Contributions: make(map[uint]string),
		}
		if r, ok := s.Rounds[round]; ok {
			for userID, c := range r.Contributions {
				status := c.Status
				if status == domain.ContributionPending && now.After(gr.DueDate) {
					status = domain.ContributionLate
				}
				gr.Contributions[userID] = status
			}
			if r.Payout != nil {
				gr.Recipient = r.Payout.RecipientID
				gr.PayoutCents = r.Payout.AmountCents
				gr.PayoutIssued = true
			}
		}
		g.Rounds = append(g.Rounds, gr)
	}
	return g
}
