package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// Bounds for conversational memory. Oldest entries are evicted first.
const (
	MaxConversations = 10
	MaxPastTopics    = 20
)

// DetailLevel controls how verbose handler reports should be for a user.
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// Insights carries the optional analysis block a handler may attach to its output.
type Insights struct {
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// ConversationEntry is one completed interaction within a session.
// Entries are append-only; the session truncates to the most recent
// MaxConversations on every write.
type ConversationEntry struct {
	HandlerID     string         `json:"handler_id"`
	Input         map[string]any `json:"input,omitempty"`
	Output        map[string]any `json:"output,omitempty"`
	Insights      *Insights      `json:"insights,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	UserSatisfied *bool          `json:"user_satisfied,omitempty"`
}

// UserPreferences is the per-session learned profile. PastTopics is an
// ordered, de-duplicated list of handler IDs the user has touched.
type UserPreferences struct {
	Language         string      `json:"language"`
	DetailLevel      DetailLevel `json:"detail_level"`
	IndustryFocus    string      `json:"industry_focus,omitempty"`
	PastTopics       []string    `json:"past_topics"`
	PreferredFormats []string    `json:"preferred_formats,omitempty"`
}

// PreferencePatch is a partial update to UserPreferences. Nil fields are
// left untouched.
type PreferencePatch struct {
	Language         *string      `json:"language,omitempty"`
	DetailLevel      *DetailLevel `json:"detail_level,omitempty"`
	IndustryFocus    *string      `json:"industry_focus,omitempty"`
	PreferredFormats []string     `json:"preferred_formats,omitempty"`
}

// DefaultPreferences returns the preferences assigned to a freshly created session.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Language:    "ko",
		DetailLevel: DetailStandard,
		PastTopics:  []string{},
	}
}

// SessionContext is the full conversational state for one session ID.
// It is persisted as a single JSON document and expires after a fixed TTL
// from the last update.
type SessionContext struct {
	SessionID          string              `json:"session_id"`
	Conversations      []ConversationEntry `json:"conversations"`
	Preferences        UserPreferences     `json:"preferences"`
	FrustrationSignals []FrustrationSignal `json:"frustration_signals"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// NewSessionContext initializes an empty session with default preferences.
func NewSessionContext(sessionID string, now time.Time) *SessionContext {
	return &SessionContext{
		SessionID:          sessionID,
		Conversations:      []ConversationEntry{},
		Preferences:        DefaultPreferences(),
		FrustrationSignals: []FrustrationSignal{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// AppendConversation pushes an entry and truncates to the most recent
// MaxConversations, oldest first.
func (s *SessionContext) AppendConversation(entry ConversationEntry) {
	s.Conversations = append(s.Conversations, entry)
	if len(s.Conversations) > MaxConversations {
		s.Conversations = s.Conversations[len(s.Conversations)-MaxConversations:]
	}
}

// LearnTopic records a handler ID in PastTopics if it is new, dropping the
// oldest topic once MaxPastTopics is exceeded.
func (s *SessionContext) LearnTopic(handlerID string) {
	for _, t := range s.Preferences.PastTopics {
		if t == handlerID {
			return
		}
	}
	s.Preferences.PastTopics = append(s.Preferences.PastTopics, handlerID)
	if len(s.Preferences.PastTopics) > MaxPastTopics {
		s.Preferences.PastTopics = s.Preferences.PastTopics[len(s.Preferences.PastTopics)-MaxPastTopics:]
	}
}

// KnowsTopic reports whether the session has previously touched the handler.
func (s *SessionContext) KnowsTopic(handlerID string) bool {
	for _, t := range s.Preferences.PastTopics {
		if t == handlerID {
			return true
		}
	}
	return false
}

// ApplyPreferencePatch merges non-nil patch fields into the preferences.
func (s *SessionContext) ApplyPreferencePatch(patch PreferencePatch) {
	if patch.Language != nil {
		s.Preferences.Language = *patch.Language
	}
	if patch.DetailLevel != nil {
		s.Preferences.DetailLevel = *patch.DetailLevel
	}
	if patch.IndustryFocus != nil {
		s.Preferences.IndustryFocus = *patch.IndustryFocus
	}
	if patch.PreferredFormats != nil {
		s.Preferences.PreferredFormats = patch.PreferredFormats
	}
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (s *SessionContext) Clone() *SessionContext {
	if s == nil {
		return nil
	}
	out := *s
	out.Conversations = make([]ConversationEntry, len(s.Conversations))
	for i, e := range s.Conversations {
		out.Conversations[i] = e.clone()
	}
	out.Preferences.PastTopics = append([]string(nil), s.Preferences.PastTopics...)
	out.Preferences.PreferredFormats = append([]string(nil), s.Preferences.PreferredFormats...)
	out.FrustrationSignals = append([]FrustrationSignal(nil), s.FrustrationSignals...)
	return &out
}

func (e ConversationEntry) clone() ConversationEntry {
	out := e
	out.Input = cloneMap(e.Input)
	out.Output = cloneMap(e.Output)
	if e.Insights != nil {
		in := *e.Insights
		in.Recommendations = append([]string(nil), e.Insights.Recommendations...)
		out.Insights = &in
	}
	if e.UserSatisfied != nil {
		v := *e.UserSatisfied
		out.UserSatisfied = &v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewSessionID generates a session identifier for callers that did not
// provide one.
func NewSessionID() string {
	return fmt.Sprintf("sess_%d_%06d", time.Now().UnixMilli(), rand.Intn(1_000_000))
}
