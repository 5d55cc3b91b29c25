package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"learnhub-backend/internal/authorization"
)

const (
	OrderStatusCreated   = "created"
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

const (
	OrderTargetCourse    = "course"
	OrderTargetChapter   = "chapter"
	OrderTargetAllAccess = "all_access"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username     string                 `gorm:"uniqueIndex;not null" json:"username"`
	Email        string                 `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string                 `json:"full_name"`
	Role         authorization.UserRole `gorm:"type:varchar(32);default:'user'" json:"role"`
	HasAllAccess bool                   `gorm:"not null;default:false" json:"has_all_access"`
}

// IsAdmin reports whether the user carries the administrative role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == authorization.RoleAdmin
}

type Course struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Price       int64  `gorm:"not null;default:0" json:"price"`
	IsPublished bool   `gorm:"not null;default:false" json:"is_published"`
	IsPremium   bool   `gorm:"not null;default:false" json:"is_premium"`
	Deleted     bool   `gorm:"not null;default:false" json:"deleted"`

	Chapters []CourseChapter `gorm:"-" json:"chapters"`
}

// CourseChapter links a chapter into a course. IsPremium, when set, overrides the
// chapter's own premium flag for this pairing.
type CourseChapter struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	CourseID  uint  `gorm:"not null;uniqueIndex:idx_course_chapters_pair,priority:1" json:"course_id"`
	ChapterID uint  `gorm:"not null;index;uniqueIndex:idx_course_chapters_pair,priority:2" json:"chapter_id"`
	Position  int   `gorm:"not null;default:0" json:"position"`
	IsPremium *bool `json:"is_premium,omitempty"`
}

type Chapter struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	VideoURL    string `json:"-"`
	IsPublished bool   `gorm:"not null;default:false" json:"is_published"`
	IsPremium   bool   `gorm:"not null;default:false" json:"is_premium"`
	Position    int    `gorm:"not null;default:0" json:"position"`
	Price       int64  `gorm:"not null;default:0" json:"price"`

	Questions []ChapterQuestion `gorm:"-" json:"questions"`
}

type ChapterQuestion struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ChapterID          uint       `gorm:"not null;index" json:"chapter_id"`
	Text               string     `gorm:"not null" json:"text"`
	Options            StringList `gorm:"type:jsonb" json:"options"`
	CorrectOptionIndex int        `gorm:"not null" json:"-"`
	Position           int        `gorm:"not null;default:0" json:"position"`
}

// ChapterPurchase is one member of a chapter's purchasedUsers set.
type ChapterPurchase struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ChapterID uint `gorm:"not null;uniqueIndex:idx_chapter_purchases_pair,priority:1" json:"chapter_id"`
	UserID    uint `gorm:"not null;index;uniqueIndex:idx_chapter_purchases_pair,priority:2" json:"user_id"`
}

// UserCourse is one member of a user's purchased courses set.
type UserCourse struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID   uint `gorm:"not null;uniqueIndex:idx_user_courses_pair,priority:1" json:"user_id"`
	CourseID uint `gorm:"not null;index;uniqueIndex:idx_user_courses_pair,priority:2" json:"course_id"`
}

type CourseLearner struct {
	ID uint `gorm:"primarykey" json:"id"`

	CourseID uint      `gorm:"not null;uniqueIndex:idx_course_learners_pair,priority:1" json:"course_id"`
	UserID   uint      `gorm:"not null;index;uniqueIndex:idx_course_learners_pair,priority:2" json:"user_id"`
	JoinedOn time.Time `gorm:"not null" json:"joined_on"`
}

// QuizAnswer records one passed quiz attempt. The unique index is the write-time guard
// against rewarding the same (user, chapter, course) twice.
type QuizAnswer struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID      uint             `gorm:"not null;uniqueIndex:idx_quiz_answers_triple,priority:1" json:"user_id"`
	ChapterID   uint             `gorm:"not null;uniqueIndex:idx_quiz_answers_triple,priority:2" json:"chapter_id"`
	CourseID    uint             `gorm:"not null;index;uniqueIndex:idx_quiz_answers_triple,priority:3" json:"course_id"`
	UserAnswers SubmittedAnswers `gorm:"type:jsonb" json:"user_answers"`
}

type CourseCoin struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint  `gorm:"not null;uniqueIndex:idx_course_coins_pair,priority:1" json:"-"`
	CourseID uint  `gorm:"not null;index;uniqueIndex:idx_course_coins_pair,priority:2" json:"course_id"`
	Coins    int64 `gorm:"not null;default:0" json:"coins"`
}

// Progress is the single store of chapter completion per user.
type Progress struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      uint  `gorm:"not null;uniqueIndex:idx_progress_pair,priority:1" json:"user_id"`
	ChapterID   uint  `gorm:"not null;index;uniqueIndex:idx_progress_pair,priority:2" json:"chapter_id"`
	CourseID    *uint `gorm:"index" json:"course_id,omitempty"`
	IsCompleted bool  `gorm:"not null;default:false" json:"is_completed"`
}

func (Progress) TableName() string {
	return "progresses"
}

type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID           uint   `gorm:"not null;index" json:"user_id"`
	CourseID         *uint  `gorm:"index" json:"course_id,omitempty"`
	ChapterID        *uint  `gorm:"index" json:"chapter_id,omitempty"`
	Amount           int64  `gorm:"not null" json:"amount"`
	Currency         string `gorm:"type:varchar(10);not null" json:"currency"`
	GatewayOrderID   string `gorm:"type:varchar(100);uniqueIndex;not null" json:"gateway_order_id"`
	GatewayPaymentID string `gorm:"type:varchar(100)" json:"gateway_payment_id,omitempty"`
	Signature        string `gorm:"type:varchar(255)" json:"-"`
	Status           string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
}

// Target reports what the order grants access to.
func (o *Order) Target() string {
	switch {
	case o.ChapterID != nil:
		return OrderTargetChapter
	case o.CourseID != nil:
		return OrderTargetCourse
	default:
		return OrderTargetAllAccess
	}
}

// IsTerminal reports whether the order reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusFailed
}

type Instructor struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	FullName     string `gorm:"not null" json:"full_name"`
	ProfileImage string `json:"profile_image"`
	Bio          string `gorm:"size:1000" json:"bio"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	Phone        string `json:"phone"`
}

type Job struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Title           string     `gorm:"not null" json:"title"`
	Description     string     `gorm:"not null" json:"description"`
	CompanyName     string     `gorm:"not null" json:"company_name"`
	Location        string     `gorm:"not null" json:"location"`
	Salary          int64      `gorm:"not null" json:"salary"`
	JobType         string     `json:"job_type"`
	ExperienceLevel string     `json:"experience_level"`
	Requirements    StringList `gorm:"type:jsonb" json:"requirements"`
	CompanyLogo     string     `json:"company_logo"`
}

type Vacancy struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title        string    `gorm:"not null" json:"title"`
	Description  string    `gorm:"not null" json:"description"`
	JobNature    string    `gorm:"not null" json:"job_nature"`
	Deadline     time.Time `gorm:"not null" json:"deadline"`
	Location     string    `gorm:"not null" json:"location"`
	Experience   string    `gorm:"not null" json:"experience"`
	ImageURL     string    `json:"image_url"`
	VacancyCount int       `json:"vacancy_count"`
}

// SubmittedAnswer is one entry of a quiz submission.
type SubmittedAnswer struct {
	QuestionID          uint `json:"questionId"`
	SelectedOptionIndex int  `json:"selectedOptionIndex"`
}

type SubmittedAnswers []SubmittedAnswer

func (a SubmittedAnswers) Value() (driver.Value, error) {
	if a == nil {
		a = SubmittedAnswers{}
	}
	return json.Marshal(a)
}

func (a *SubmittedAnswers) Scan(value interface{}) error {
	if value == nil {
		*a = SubmittedAnswers{}
		return nil
	}

	raw, err := scanBytes(value)
	if err != nil {
		return errors.New("failed to scan SubmittedAnswers")
	}

	return json.Unmarshal(raw, a)
}

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	raw, err := scanBytes(value)
	if err != nil {
		return errors.New("failed to scan StringList")
	}

	return json.Unmarshal(raw, l)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type")
	}
}
