package model

import (
	"time"

	"github.com/cloudwego/eino/schema"

	"preventcoach/internal/journey"
)

// ----------------------------------------------------
// ================ Conversation ================

// Message is a single entry in the conversation history. Messages are
// append-only: once added to a session they are never modified.
type Message struct {
	Role      schema.RoleType `json:"role"` // user, assistant, system
	Content   string          `json:"content"`
	Timestamp int64           `json:"timestamp,omitempty"` // unix seconds
}

func UserMessage(content string) Message {
	return Message{Role: schema.User, Content: content, Timestamp: time.Now().Unix()}
}

func AssistantMessage(content string) Message {
	return Message{Role: schema.Assistant, Content: content, Timestamp: time.Now().Unix()}
}

// ----------------------------------------------------
// ================ Patient profile ================

// RiskLevel classifies diabetes risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Biomarkers holds the clinical measurements used by the education and
// coaching phases.
type Biomarkers struct {
	A1C              float64 `json:"a1c" yaml:"a1c"`
	FBS              float64 `json:"fbs" yaml:"fbs"`
	SystolicBP       int     `json:"systolic_bp" yaml:"systolic_bp"`
	DiastolicBP      int     `json:"diastolic_bp" yaml:"diastolic_bp"`
	LDL              float64 `json:"ldl" yaml:"ldl"`
	HDL              float64 `json:"hdl" yaml:"hdl"`
	TotalCholesterol float64 `json:"total_cholesterol" yaml:"total_cholesterol"`
	Weight           float64 `json:"weight" yaml:"weight"`
	Height           float64 `json:"height" yaml:"height"`
}

// PatientProfile is the per-user clinical and motivational profile. It is
// owned by the session and mutated in place as agents extract new
// information. UserID is immutable after creation.
type PatientProfile struct {
	UserID           string         `json:"user_id" yaml:"user_id"`
	Name             string         `json:"name" yaml:"name"` // empty = unknown
	Age              int            `json:"age" yaml:"age"`
	DiabetesRisk     RiskLevel      `json:"diabetes_risk" yaml:"diabetes_risk"`
	RiskScoreNumeric int            `json:"risk_score_numeric" yaml:"risk_score_numeric"`
	Biomarkers       Biomarkers     `json:"biomarkers" yaml:"biomarkers"`
	MotivationLevel  string         `json:"motivation_level,omitempty" yaml:"motivation_level"`
	ImportanceRating float64        `json:"importance_rating,omitempty" yaml:"importance_rating"`
	ConfidenceRating float64        `json:"confidence_rating,omitempty" yaml:"confidence_rating"`
	ReadinessStage   string         `json:"readiness_stage,omitempty" yaml:"readiness_stage"`
	Barriers         []string       `json:"barriers,omitempty" yaml:"barriers"`
	Facilitators     []string       `json:"facilitators,omitempty" yaml:"facilitators"`
	PhysicianName    string         `json:"physician_name,omitempty" yaml:"physician_name"`
	Psychographics   map[string]any `json:"psychographics,omitempty" yaml:"psychographics"`
}

// ----------------------------------------------------
// ================ Session ================

// SessionState is the durable per-user conversational state. It is reloaded
// from the session store at the top of every turn and saved at the bottom;
// no in-process copy is authoritative.
type SessionState struct {
	UserID              string               `json:"user_id"`
	ActiveAgent         string               `json:"active_agent"`
	Stage               journey.PatientStage `json:"stage"`
	ConversationHistory []Message            `json:"conversation_history"`
	PatientProfile      PatientProfile       `json:"patient_profile"`
	ContextVariables    map[string]any       `json:"context_variables"`
	CreatedAt           int64                `json:"created_at"`
	UpdatedAt           int64                `json:"updated_at"`
}

// NewSessionState creates a fresh session for a user, starting in the given
// agent. New sessions start at the Educate_Motivate stage ("user logged in").
func NewSessionState(userID string, profile PatientProfile, initialAgent string) *SessionState {
	now := time.Now().Unix()
	return &SessionState{
		UserID:              userID,
		ActiveAgent:         initialAgent,
		Stage:               journey.StageEducateMotivate,
		ConversationHistory: []Message{},
		PatientProfile:      profile,
		ContextVariables:    make(map[string]any),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// AppendMessage appends to the conversation history.
func (s *SessionState) AppendMessage(msg Message) {
	s.ConversationHistory = append(s.ConversationHistory, msg)
}

// ContextBool reads a boolean context variable, tolerating absence and
// non-boolean values left behind by older sessions.
func (s *SessionState) ContextBool(key string) bool {
	v, ok := s.ContextVariables[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ----------------------------------------------------
// ================ Audit ================

// AuditRecord is the write-only telemetry entry produced once per successful
// model invocation. The core never reads these back.
type AuditRecord struct {
	UserID          string    `json:"user_id"`
	AgentName       string    `json:"agent_name"`
	RequestKind     string    `json:"request_kind"`
	PromptSummary   string    `json:"prompt_summary"`
	ResponseSummary string    `json:"response_summary"`
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	LatencyMS       int64     `json:"latency_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// ----------------------------------------------------
// ================ Config ================

// LogConfig holds logger configuration.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format     string `yaml:"format" envconfig:"LOG_FORMAT"`
	Output     string `yaml:"output" envconfig:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" envconfig:"LOG_FILE_PATH"`
	TimeFormat string `yaml:"time_format" envconfig:"LOG_TIME_FORMAT"`
}
