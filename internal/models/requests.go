package models

import (
	"encoding/json"
	"time"
)

// InitiateOrderRequest selects what is being bought. Leaving both targets empty
// buys platform-wide all-access.
type InitiateOrderRequest struct {
	CourseID  *uint  `json:"courseId" binding:"omitempty,gt=0"`
	ChapterID *uint  `json:"chapterId" binding:"omitempty,gt=0"`
	Currency  string `json:"currency" binding:"omitempty,currency"`
}

// VerifyPaymentRequest is the payload the checkout widget hands back after payment.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required,max=100"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required,max=100"`
	Signature        string `json:"razorpay_signature" binding:"required,max=255"`
}

// SubmitQuizRequest keeps the answers raw so a payload that is not a list can be
// told apart from an empty one.
type SubmitQuizRequest struct {
	UserAnswers json.RawMessage `json:"userAnswers"`
}

type AttachChapterRequest struct {
	ChapterID uint  `json:"chapterId" binding:"required,gt=0"`
	IsPremium *bool `json:"isPremium"`
	Position  *int  `json:"position" binding:"omitempty,gte=0"`
}

type CreateQuestionsRequest struct {
	Questions json.RawMessage `json:"questions"`
}

type QuestionRequest struct {
	Text               string   `json:"questionText" binding:"required,no_html"`
	Options            []string `json:"options" binding:"required,min=2,dive,required"`
	CorrectOptionIndex int      `json:"correctAnswerIndex" binding:"gte=0"`
}

type UpdateQuestionRequest struct {
	Text               *string  `json:"questionText" binding:"omitempty,no_html"`
	Options            []string `json:"options" binding:"omitempty,min=2,dive,required"`
	CorrectOptionIndex *int     `json:"correctAnswerIndex" binding:"omitempty,gte=0"`
}

// ChapterView is the public representation of a chapter. VideoURL is only filled
// once the viewer passed the entitlement check.
type ChapterView struct {
	ID          uint           `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Notes       string         `json:"notes,omitempty"`
	IsPublished bool           `json:"isPublished"`
	IsPremium   bool           `json:"isPremium"`
	Position    int            `json:"position"`
	Questions   []QuestionView `json:"questions"`
	VideoURL    string         `json:"videoUrl,omitempty"`
}

type QuestionView struct {
	ID      uint     `json:"id"`
	Text    string   `json:"questionText"`
	Options []string `json:"options"`
}

type AdminQuestionView struct {
	QuestionView
	CorrectOptionIndex int `json:"correctAnswerIndex"`
}

type CourseView struct {
	Course   *Course        `json:"course"`
	Chapters []*ChapterView `json:"chapters"`
}

type QuizResult struct {
	Passed       bool         `json:"passed"`
	CoinsAwarded int64        `json:"coinsAwarded"`
	Message      string       `json:"message"`
	CourseCoins  []CourseCoin `json:"courseCoins,omitempty"`
}

type OrderInitiation struct {
	OrderID        uint   `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	AmountMinor    int64  `json:"amountMinor"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId,omitempty"`
	Target         string `json:"target"`
}

type VerifyPaymentResult struct {
	OrderID          uint   `json:"orderId"`
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
}

type ProgressReport struct {
	CourseID              uint    `json:"courseId"`
	Percentage            float64 `json:"percentage"`
	PublishedChapterCount int     `json:"publishedChapterCount"`
	CompletedChapterCount int     `json:"completedChapterCount"`
}

type UserData struct {
	User              *User            `json:"user"`
	HasAllAccess      bool             `json:"hasAllAccess"`
	Courses           []uint           `json:"courses"`
	PurchasedChapters []uint           `json:"purchasedChapters"`
	CompletedChapters []uint           `json:"completedChapters"`
	CourseCoins       []CourseCoin     `json:"courseCoins"`
	Answers           []QuizAnswer     `json:"answers"`
	Progress          []ProgressReport `json:"progress"`
}

type PurchaseDetail struct {
	GatewayOrderID string    `json:"orderId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	Target         string    `json:"target"`
	CourseID       *uint     `json:"courseId,omitempty"`
	ChapterIDs     []uint    `json:"chapterIds,omitempty"`
}

type OrderLedger struct {
	Orders       []Order `json:"orders"`
	TotalRevenue int64   `json:"totalRevenue"`
}

type RecommendedLearner struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Coins    int64  `json:"coins"`
}
