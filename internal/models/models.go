package models

import (
	"time"
)

// Conversation represents one chat thread with a contact on one messaging instance.
// Phone is stored canonical (digits only); at most one conversation should exist
// per (instance_id, phone) pair; duplicates are an anomaly handled by the linker.
type Conversation struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	InstanceID  string  `gorm:"type:varchar(100);not null;index:idx_conversations_instance_phone" json:"instance_id"`
	Phone       string  `gorm:"type:varchar(30);not null;index:idx_conversations_instance_phone" json:"phone"`
	Name        string  `gorm:"type:varchar(255)" json:"name"`
	Unit        string  `gorm:"type:varchar(100)" json:"unit"`
	LeadID      *string `gorm:"type:varchar(36);index" json:"lead_id"`
	UnreadCount int     `gorm:"default:0" json:"unread_count"`
	Favorite    bool    `gorm:"default:false" json:"favorite"`
	// BotEnabled overrides the instance-level bot policy when set.
	BotEnabled         *bool      `json:"bot_enabled"`
	LastMessageContent string     `gorm:"type:text" json:"last_message_content"`
	LastMessageFromMe  bool       `json:"last_message_from_me"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message represents one inbound or outbound unit. Rows are append-only;
// only Status may change, and only forward in pending→sent→delivered→read.
type Message struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;index" json:"conversation_id"`
	ExternalID     *string   `gorm:"type:varchar(255);uniqueIndex" json:"external_id"`
	FromMe         bool      `gorm:"not null" json:"from_me"`
	Type           string    `gorm:"type:varchar(20);default:'text'" json:"type"`
	Content        string    `gorm:"type:text" json:"content"`
	MediaURL       string    `gorm:"type:text" json:"media_url"`
	Status         string    `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Lead is the qualified sales entity.
type Lead struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone         string    `gorm:"type:varchar(30);index" json:"phone"`
	Unit          string    `gorm:"type:varchar(100)" json:"unit"`
	Month         string    `gorm:"type:varchar(50)" json:"month"`
	DayPreference string    `gorm:"type:varchar(100)" json:"day_preference"`
	GuestCount    int       `gorm:"default:0" json:"guest_count"`
	Notes         string    `gorm:"type:text" json:"notes"`
	Status        string    `gorm:"type:varchar(30);default:'novo';index" json:"status"`
	AssignedTo    *string   `gorm:"type:varchar(36)" json:"assigned_to"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// LeadHistory is an append-only audit record. Every status, name, notes or
// qualification mutation on a lead produces exactly one entry. UserID is nil
// for system/bot actions.
type LeadHistory struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	LeadID    string    `gorm:"type:varchar(36);not null;index" json:"lead_id"`
	UserID    *string   `gorm:"type:varchar(36)" json:"user_id"`
	Action    string    `gorm:"type:varchar(100);not null" json:"action"`
	OldValue  string    `gorm:"type:text" json:"old_value"`
	NewValue  string    `gorm:"type:text" json:"new_value"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LeadHistory) TableName() string {
	return "lead_history"
}

// BotQuestion is one step of the qualification script, ordered by Position.
type BotQuestion struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StepKey      string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"step_key"`
	Question     string    `gorm:"type:text;not null" json:"question"`
	Confirmation string    `gorm:"type:text" json:"confirmation"`
	Position     int       `gorm:"not null" json:"position"`
	Enabled      bool      `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BotQuestion) TableName() string {
	return "bot_questions"
}

// BotSettings is the admin-owned configuration surface consumed read-only
// by the qualification engine and the follow-up scheduler.
type BotSettings struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Enabled    bool   `gorm:"default:false" json:"enabled"`
	TestNumber string `gorm:"type:varchar(30)" json:"test_number"`

	// Comma-separated keyword list used to classify an "existing customer"
	// reply during the tipo step.
	CustomerKeywords string `gorm:"type:text" json:"customer_keywords"`

	CompletionMessage string `gorm:"type:text" json:"completion_message"`
	TransferMessage   string `gorm:"type:text" json:"transfer_message"`
	MenuMessage       string `gorm:"type:text" json:"menu_message"`
	VisitMessage      string `gorm:"type:text" json:"visit_message"`
	AnalyzeMessage    string `gorm:"type:text" json:"analyze_message"`

	AutoSendMaterials bool   `gorm:"default:false" json:"auto_send_materials"`
	PhotoCaption      string `gorm:"type:text" json:"photo_caption"`
	VideoCaption      string `gorm:"type:text" json:"video_caption"`
	PdfCaption        string `gorm:"type:text" json:"pdf_caption"`
	PromoCaption      string `gorm:"type:text" json:"promo_caption"`
	SendPromoVideo    bool   `gorm:"default:false" json:"send_promo_video"`
	SendDelaySeconds  int    `gorm:"default:3" json:"send_delay_seconds"`

	FollowUp1DelayHours int    `gorm:"default:24" json:"follow_up_1_delay_hours"`
	FollowUp2Enabled    bool   `gorm:"default:true" json:"follow_up_2_enabled"`
	FollowUp2DelayHours int    `gorm:"default:48" json:"follow_up_2_delay_hours"`
	FollowUp1Template   string `gorm:"type:text" json:"follow_up_1_template"`
	FollowUp2Template   string `gorm:"type:text" json:"follow_up_2_template"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BotSettings) TableName() string {
	return "bot_settings"
}

// VIPNumber exempts a phone from all bot automation, independent of the
// global toggle.
type VIPNumber struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Phone     string    `gorm:"type:varchar(30);not null;uniqueIndex" json:"phone"`
	Note      string    `gorm:"type:varchar(255)" json:"note"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (VIPNumber) TableName() string {
	return "vip_numbers"
}

// BotSession is the step pointer for a conversation undergoing qualification.
// Answers is a JSON object keyed by step key.
type BotSession struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"conversation_id"`
	CurrentStep    string    `gorm:"type:varchar(50);not null" json:"current_step"`
	Answers        string    `gorm:"type:text;default:'{}'" json:"answers"`
	Status         string    `gorm:"type:varchar(20);default:'active'" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BotSession) TableName() string {
	return "bot_sessions"
}

// FollowUpSchedule arms the two-stage re-engagement for a lead. Stage sent
// markers are written only after confirmed dispatch and double as the
// de-duplication guard.
type FollowUpSchedule struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	LeadID       string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"lead_id"`
	ArmedAt      time.Time  `gorm:"not null" json:"armed_at"`
	Stage1SentAt *time.Time `json:"stage1_sent_at"`
	Stage2SentAt *time.Time `json:"stage2_sent_at"`
	Status       string     `gorm:"type:varchar(20);default:'armed'" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FollowUpSchedule) TableName() string {
	return "follow_up_schedules"
}

// Material is one row of the settings-owned materials catalog the bot
// auto-send consumes. PDFs carry a guest-count band; promo videos carry the
// seasonal flag.
type Material struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Unit      string    `gorm:"type:varchar(100);not null;index" json:"unit"`
	Kind      string    `gorm:"type:varchar(20);not null" json:"kind"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	Filename  string    `gorm:"type:varchar(255)" json:"filename"`
	MinGuests int       `gorm:"default:0" json:"min_guests"`
	MaxGuests int       `gorm:"default:0" json:"max_guests"`
	Seasonal  bool      `gorm:"default:false" json:"seasonal"`
	Position  int       `gorm:"default:0" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Material) TableName() string {
	return "materials"
}

// VisitIntent records that a qualified contact asked to schedule a visit
// (menu option 1). The lead's "has scheduled visit" flag derives from it.
type VisitIntent struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	LeadID    string    `gorm:"type:varchar(36);not null;index" json:"lead_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (VisitIntent) TableName() string {
	return "visit_intents"
}

// Lead statuses. The first four form the linear pipeline; fechado and
// perdido are terminal; transferido sits outside forward/back navigation.
const (
	StatusNovo               = "novo"
	StatusEmContato          = "em_contato"
	StatusOrcamentoEnviado   = "orcamento_enviado"
	StatusAguardandoResposta = "aguardando_resposta"
	StatusFechado            = "fechado"
	StatusPerdido            = "perdido"
	StatusTransferido        = "transferido"
)

// Message delivery statuses, monotonic in this order.
const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// Material kinds.
const (
	MaterialPhoto = "photo"
	MaterialVideo = "video"
	MaterialPDF   = "pdf"
	MaterialPromo = "promo"
)
