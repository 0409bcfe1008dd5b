package domain

const (
	EventNameLessonRead         = "lesson.read"
	EventNameQuizFinished       = "quiz.finished"
	EventNameLessonGenerated    = "lesson.generated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventLessonRead struct {
	SessionID string
	Title     string
	Known     bool
}

func (EventLessonRead) Name() string { return EventNameLessonRead }

type EventQuizFinished struct {
	SessionID    string
	Total        int
	CorrectCount int
	CoinsEarned  int
	XPEarned     int
	Totals       Totals
}

func (EventQuizFinished) Name() string { return EventNameQuizFinished }

type EventLessonGenerated struct {
	Lesson Lesson
}

func (EventLessonGenerated) Name() string { return EventNameLessonGenerated }

type EventLeaderboardUpdated struct {
	Entry LeaderboardEntry
	Rank  int
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
