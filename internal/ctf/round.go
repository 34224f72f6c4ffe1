package ctf

// RoundState is the round-lifecycle information shared with trackers.
type RoundState struct {
	MapName                   string
	RoundEndTimeInGameSeconds int
}
