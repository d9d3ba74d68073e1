package recovery

import "time"

// PlanStats summarizes outcomes for one plan.
type PlanStats struct {
	Total       int
	Succeeded   int
	SuccessRate float64
}

// Stats aggregates the coordinator's history. Everything here is derived on
// demand from the ring buffer; nothing is stored incrementally.
type Stats struct {
	TotalSessions int
	Succeeded     int
	Failed        int
	Cancelled     int
	SuccessRate   float64
	MeanDuration  time.Duration
	PerPlan       map[string]PlanStats
	Last24h       int
	Last7d        int
	Last30d       int
}

// Stats computes aggregate statistics from the history buffer.
func (c *Coordinator) Stats() Stats {
	sessions := c.history.All()
	now := time.Now()

	out := Stats{
		TotalSessions: len(sessions),
		PerPlan:       make(map[string]PlanStats),
	}

	var totalDur time.Duration
	for _, s := range sessions {
		switch s.Status {
		case StatusCompleted:
			out.Succeeded++
		case StatusFailed:
			out.Failed++
		case StatusCancelled:
			out.Cancelled++
		}
		totalDur += s.EndedAt.Sub(s.StartedAt)

		ps := out.PerPlan[s.PlanID]
		ps.Total++
		if s.Status == StatusCompleted {
			ps.Succeeded++
		}
		out.PerPlan[s.PlanID] = ps

		age := now.Sub(s.StartedAt)
		if age <= 24*time.Hour {
			out.Last24h++
		}
		if age <= 7*24*time.Hour {
			out.Last7d++
		}
		if age <= 30*24*time.Hour {
			out.Last30d++
		}
	}

	if out.TotalSessions > 0 {
		out.SuccessRate = float64(out.Succeeded) / float64(out.TotalSessions)
		out.MeanDuration = totalDur / time.Duration(out.TotalSessions)
	}
	for id, ps := range out.PerPlan {
		if ps.Total > 0 {
			ps.SuccessRate = float64(ps.Succeeded) / float64(ps.Total)
			out.PerPlan[id] = ps
		}
	}
	return out
}
