package flag

import "github.com/fortresslogs/ctfround/internal/ctf"

// RoundStats are the flag counters of one team for the current round, plus the
// flag events to replay at round end.
type RoundStats struct {
	CapCount       int
	BonusCapCount  int
	HoldBonusCount int
	ReportedScore  *int
	Events         []ctf.Event
}

// record appends a copy of ev to the replay sequence.
func (rs *RoundStats) record(ev *ctf.Event) {
	rs.Events = append(rs.Events, *ev)
}

// statsByTeam is the round accumulator, one entry per team.
type statsByTeam [ctf.TeamCount]RoundStats

// sawReportedScore reports whether any team had an authoritative score.
func (s *statsByTeam) sawReportedScore() bool {
	for i := range s {
		if s[i].ReportedScore != nil {
			return true
		}
	}
	return false
}
