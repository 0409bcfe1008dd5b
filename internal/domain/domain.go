package domain

import (
	"slices"
	"time"
)

// Source tells where a lesson came from.
type Source string

const (
	SourceLocal           Source = "local"
	SourceGitHub          Source = "github"
	SourceSecretKnowledge Source = "secret-knowledge"
	SourceDevTo           Source = "devto"
	SourceAI              Source = "ai"
)

func (s Source) Valid() bool {
	switch s {
	case SourceLocal, SourceGitHub, SourceSecretKnowledge, SourceDevTo, SourceAI:
		return true
	}
	return false
}

// Lesson is an immutable catalog entry. Title is unique within a category.
type Lesson struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Source   Source   `json:"source,omitempty"`
	Text     string   `json:"text"`
	Explain  string   `json:"explain"`
	UseCases []string `json:"useCases"`
	Tips     []string `json:"tips"`
}

// Session is the server-held state of one client.
type Session struct {
	SessionID  string   `json:"sessionId"`
	ReadTitles []string `json:"readTitles"`
	Quiz       *Quiz    `json:"quiz,omitempty"`
	CoinsTotal int      `json:"coinsTotal"`
	XPTotal    int      `json:"xpTotal"`
	Streak     int      `json:"streak"`

	RecentLessons []string       `json:"recentLessons,omitempty"`
	LastLesson    string         `json:"lastLesson,omitempty"`
	HintIndex     map[string]int `json:"hintIndex,omitempty"`

	QuizScore       int       `json:"quizScore"`
	TypingBest      int       `json:"typingBest"`
	CodingScore     int       `json:"codingScore"`
	LastScoreSubmit time.Time `json:"lastScoreSubmit"`

	UpdateTime time.Time `json:"updateTime"`
}

func NewSession(id string) *Session {
	return &Session{
		SessionID: id,
		HintIndex: make(map[string]int),
	}
}

// HasRead reports whether title is in the read-set.
func (s *Session) HasRead(title string) bool {
	return slices.Contains(s.ReadTitles, title)
}

// Quiz is the in-progress quiz of a session. 0 <= CurrentIndex <= len(Questions).
type Quiz struct {
	Questions    []Question `json:"questions"`
	CurrentIndex int        `json:"currentIndex"`
	CorrectCount int        `json:"correctCount"`
	CoinsEarned  int        `json:"coinsEarned"`
}

func (q *Quiz) Total() int { return len(q.Questions) }

func (q *Quiz) Done() bool { return q.CurrentIndex >= len(q.Questions) }

func (q *Quiz) Current() Question { return q.Questions[q.CurrentIndex] }

// Question is derived from a lesson once, when the quiz starts.
type Question struct {
	LessonTitle        string   `json:"lessonTitle"`
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
}

// IsCorrect grades an answer. Out of range indices are wrong.
func (q Question) IsCorrect(answer int) bool {
	if answer < 0 || answer >= len(q.Options) {
		return false
	}
	return answer == q.CorrectOptionIndex
}

// Totals are the cumulative rewards of a session.
type Totals struct {
	Coins  int `json:"coins"`
	XP     int `json:"xp"`
	Streak int `json:"streak"`
}

func (s *Session) Totals() Totals {
	return Totals{Coins: s.CoinsTotal, XP: s.XPTotal, Streak: s.Streak}
}

// Mode is a leaderboard mode.
type Mode string

const (
	ModeQuiz   Mode = "quiz"
	ModeTyping Mode = "typing"
	ModeCoding Mode = "coding"
)

// VerifiedScore returns the score the server recorded for mode.
func (s *Session) VerifiedScore(m Mode) (int, bool) {
	switch m {
	case ModeQuiz:
		return s.QuizScore, true
	case ModeTyping:
		return s.TypingBest, true
	case ModeCoding:
		return s.CodingScore, true
	}
	return 0, false
}

// LeaderboardEntry is one accepted submission.
type LeaderboardEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Mode       Mode      `json:"mode"`
	Category   string    `json:"category,omitempty"`
	SubmitTime time.Time `json:"date"`
}

// Leaderboard is a list of entries of one mode sorted by score descending.
type Leaderboard struct {
	Mode    Mode               `json:"mode"`
	Entries []LeaderboardEntry `json:"entries"`
}

// Challenge is a pro mode coding challenge.
type Challenge struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Difficulty  string           `json:"difficulty"`
	Topics      []string         `json:"topics"`
	Description string           `json:"description"`
	Starter     ChallengeStarter `json:"starter"`
	Hints       []string         `json:"hints"`
	Reward      Reward           `json:"reward"`
}

type ChallengeStarter struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

type Reward struct {
	XP    int `json:"xp"`
	Coins int `json:"coins"`
}
