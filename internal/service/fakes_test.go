package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/payments"
	"learnhub-backend/internal/repository"
)

// fakeStore backs the in-memory repositories used by the service tests.
type fakeStore struct {
	mu sync.Mutex

	users     map[uint]*models.User
	courses   map[uint]*models.Course
	chapters  map[uint]*models.Chapter
	links     []models.CourseChapter
	questions map[uint][]models.ChapterQuestion

	userCourses   map[[2]uint]bool // user, course
	purchases     map[[2]uint]bool // chapter, user
	learners      map[[2]uint]bool // course, user
	answers       []models.QuizAnswer
	coins         map[[2]uint]int64 // user, course
	progress      map[[2]uint]bool  // user, chapter
	orders        map[uint]*models.Order
	nextID        uint
	failNextGrant bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[uint]*models.User{},
		courses:     map[uint]*models.Course{},
		chapters:    map[uint]*models.Chapter{},
		questions:   map[uint][]models.ChapterQuestion{},
		userCourses: map[[2]uint]bool{},
		purchases:   map[[2]uint]bool{},
		learners:    map[[2]uint]bool{},
		coins:       map[[2]uint]int64{},
		progress:    map[[2]uint]bool{},
		orders:      map[uint]*models.Order{},
		nextID:      100,
	}
}

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) addUser(user models.User) *models.User {
	s.users[user.ID] = &user
	return &user
}

func (s *fakeStore) addCourse(course models.Course) *models.Course {
	s.courses[course.ID] = &course
	return &course
}

func (s *fakeStore) addChapter(courseID uint, chapter models.Chapter, override *bool) *models.Chapter {
	s.chapters[chapter.ID] = &chapter
	if courseID != 0 {
		s.links = append(s.links, models.CourseChapter{CourseID: courseID, ChapterID: chapter.ID, Position: len(s.links), IsPremium: override})
	}
	return &chapter
}

func (s *fakeStore) addQuestion(chapterID uint, correct int) models.ChapterQuestion {
	q := models.ChapterQuestion{ID: s.id(), ChapterID: chapterID, Text: "q", Options: models.StringList{"a", "b", "c"}, CorrectOptionIndex: correct}
	s.questions[chapterID] = append(s.questions[chapterID], q)
	return q
}

func (s *fakeStore) coinBalance(userID, courseID uint) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coins[[2]uint{userID, courseID}]
}

// users

type fakeUserRepo struct{ s *fakeStore }

func (r fakeUserRepo) Create(user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.id()
	r.s.users[user.ID] = user
	return nil
}

func (r fakeUserRepo) GetByID(id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (r fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeUserRepo) GetByIDs(ids []uint) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (r fakeUserRepo) ListCourseIDs(userID uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uint{}
	for key := range r.s.userCourses {
		if key[0] == userID {
			ids = append(ids, key[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r fakeUserRepo) HasCourse(userID, courseID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.userCourses[[2]uint{userID, courseID}], nil
}

// courses

type fakeCourseRepo struct{ s *fakeStore }

func (r fakeCourseRepo) Create(course *models.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	course.ID = r.s.id()
	r.s.courses[course.ID] = course
	return nil
}

func (r fakeCourseRepo) GetByID(id uint) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	course, ok := r.s.courses[id]
	if !ok || course.Deleted {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *course
	return &clone, nil
}

func (r fakeCourseRepo) List(publishedOnly bool) ([]models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Course
	for _, course := range r.s.courses {
		if course.Deleted || (publishedOnly && !course.IsPublished) {
			continue
		}
		out = append(out, *course)
	}
	return out, nil
}

func (r fakeCourseRepo) ListChapterLinks(courseID uint) ([]models.CourseChapter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.CourseChapter{}
	for _, link := range r.s.links {
		if link.CourseID == courseID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (r fakeCourseRepo) GetChapterLink(courseID, chapterID uint) (*models.CourseChapter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, link := range r.s.links {
		if link.CourseID == courseID && link.ChapterID == chapterID {
			clone := link
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeCourseRepo) ListCourseIDsForChapter(chapterID uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uint{}
	for _, link := range r.s.links {
		if link.ChapterID == chapterID {
			ids = append(ids, link.CourseID)
		}
	}
	return ids, nil
}

func (r fakeCourseRepo) AttachChapter(link *models.CourseChapter) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.links {
		if existing.CourseID == link.CourseID && existing.ChapterID == link.ChapterID {
			return false, nil
		}
	}
	link.ID = r.s.id()
	r.s.links = append(r.s.links, *link)
	return true, nil
}

func (r fakeCourseRepo) CountPublishedChapters(courseID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, link := range r.s.links {
		if link.CourseID == courseID && r.s.chapters[link.ChapterID].IsPublished {
			count++
		}
	}
	return count, nil
}

func (r fakeCourseRepo) IsLearner(courseID, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.learners[[2]uint{courseID, userID}], nil
}

func (r fakeCourseRepo) AddLearner(courseID, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uint{courseID, userID}
	if r.s.learners[key] {
		return false, nil
	}
	r.s.learners[key] = true
	return true, nil
}

func (r fakeCourseRepo) ListRecommendedLearners(courseID uint, minCoins int64) ([]models.RecommendedLearner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.RecommendedLearner{}
	for key, coins := range r.s.coins {
		if key[1] == courseID && coins >= minCoins {
			out = append(out, models.RecommendedLearner{UserID: key[0], Coins: coins})
		}
	}
	return out, nil
}

// chapters

type fakeChapterRepo struct{ s *fakeStore }

func (r fakeChapterRepo) Create(chapter *models.Chapter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chapter.ID = r.s.id()
	r.s.chapters[chapter.ID] = chapter
	return nil
}

func (r fakeChapterRepo) GetByID(id uint) (*models.Chapter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chapter, ok := r.s.chapters[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *chapter
	clone.VideoURL = ""
	return &clone, nil
}

func (r fakeChapterRepo) GetByIDs(ids []uint) ([]models.Chapter, error) {
	var out []models.Chapter
	for _, id := range ids {
		if chapter, err := r.GetByID(id); err == nil {
			out = append(out, *chapter)
		}
	}
	return out, nil
}

func (r fakeChapterRepo) GetVideoURL(id uint) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chapter, ok := r.s.chapters[id]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return chapter.VideoURL, nil
}

func (r fakeChapterRepo) HasPurchase(chapterID, userID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.purchases[[2]uint{chapterID, userID}], nil
}

func (r fakeChapterRepo) ListPurchasedChapterIDs(userID uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uint{}
	for key := range r.s.purchases {
		if key[1] == userID {
			ids = append(ids, key[0])
		}
	}
	return ids, nil
}

func (r fakeChapterRepo) ListQuestions(chapterID uint) ([]models.ChapterQuestion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]models.ChapterQuestion(nil), r.s.questions[chapterID]...), nil
}

func (r fakeChapterRepo) CreateQuestions(questions []models.ChapterQuestion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range questions {
		questions[i].ID = r.s.id()
		r.s.questions[questions[i].ChapterID] = append(r.s.questions[questions[i].ChapterID], questions[i])
	}
	return nil
}

func (r fakeChapterRepo) GetQuestion(chapterID, questionID uint) (*models.ChapterQuestion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.questions[chapterID] {
		if q.ID == questionID {
			clone := q
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeChapterRepo) UpdateQuestion(question *models.ChapterQuestion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.questions[question.ChapterID]
	for i := range list {
		if list[i].ID == question.ID {
			list[i] = *question
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r fakeChapterRepo) DeleteQuestion(chapterID, questionID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := r.s.questions[chapterID]
	for i := range list {
		if list[i].ID == questionID {
			r.s.questions[chapterID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// progress

type fakeProgressRepo struct{ s *fakeStore }

func (r fakeProgressRepo) HasAnswer(userID, chapterID, courseID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.hasAnswerLocked(userID, chapterID, courseID), nil
}

func (s *fakeStore) hasAnswerLocked(userID, chapterID, courseID uint) bool {
	for _, a := range s.answers {
		if a.UserID == userID && a.ChapterID == chapterID && a.CourseID == courseID {
			return true
		}
	}
	return false
}

func (r fakeProgressRepo) RecordQuizPass(answer *models.QuizAnswer, reward int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.hasAnswerLocked(answer.UserID, answer.ChapterID, answer.CourseID) {
		return false, nil
	}
	answer.ID = r.s.id()
	r.s.answers = append(r.s.answers, *answer)
	r.s.progress[[2]uint{answer.UserID, answer.ChapterID}] = true
	r.s.coins[[2]uint{answer.UserID, answer.CourseID}] += reward
	return true, nil
}

func (r fakeProgressRepo) MarkCompleted(userID, chapterID uint, courseID *uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.progress[[2]uint{userID, chapterID}] = true
	return nil
}

func (r fakeProgressRepo) IsCompleted(userID, chapterID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.progress[[2]uint{userID, chapterID}], nil
}

func (r fakeProgressRepo) ListCompletedChapterIDs(userID uint) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []uint{}
	for key, done := range r.s.progress {
		if key[0] == userID && done {
			ids = append(ids, key[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r fakeProgressRepo) CountCompletedInCourse(userID, courseID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, link := range r.s.links {
		if link.CourseID == courseID && r.s.chapters[link.ChapterID].IsPublished && r.s.progress[[2]uint{userID, link.ChapterID}] {
			count++
		}
	}
	return count, nil
}

func (r fakeProgressRepo) ListAnswers(userID uint) ([]models.QuizAnswer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.QuizAnswer{}
	for _, a := range r.s.answers {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeProgressRepo) ListCoins(userID uint) ([]models.CourseCoin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.CourseCoin{}
	for key, coins := range r.s.coins {
		if key[0] == userID {
			out = append(out, models.CourseCoin{UserID: key[0], CourseID: key[1], Coins: coins})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

// orders

type fakeOrderRepo struct{ s *fakeStore }

func (r fakeOrderRepo) Create(order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.orders {
		if existing.GatewayOrderID == order.GatewayOrderID {
			return gorm.ErrDuplicatedKey
		}
	}
	order.ID = r.s.id()
	order.CreatedAt = time.Now()
	clone := *order
	r.s.orders[order.ID] = &clone
	return nil
}

func (r fakeOrderRepo) GetByID(id uint) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (r fakeOrderRepo) GetByGatewayOrderID(gatewayOrderID string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, order := range r.s.orders {
		if order.GatewayOrderID == gatewayOrderID {
			clone := *order
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeOrderRepo) ListByUser(userID uint) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Order{}
	for _, order := range r.s.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeOrderRepo) ListAll() ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Order{}
	for _, order := range r.s.orders {
		out = append(out, *order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeOrderRepo) SumCompletedRevenue() (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, order := range r.s.orders {
		if order.Status == models.OrderStatusCompleted {
			total += order.Amount
		}
	}
	return total, nil
}

func (r fakeOrderRepo) CompleteAndGrant(order *models.Order, paymentID, signature string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failNextGrant {
		r.s.failNextGrant = false
		return false, errors.New("write failed")
	}
	stored := r.s.orders[order.ID]
	if stored == nil || stored.IsTerminal() {
		return false, nil
	}
	stored.Status = models.OrderStatusCompleted
	stored.GatewayPaymentID = paymentID
	stored.Signature = signature

	switch stored.Target() {
	case models.OrderTargetChapter:
		r.s.purchases[[2]uint{*stored.ChapterID, stored.UserID}] = true
	case models.OrderTargetCourse:
		r.s.userCourses[[2]uint{stored.UserID, *stored.CourseID}] = true
		for _, link := range r.s.links {
			if link.CourseID == *stored.CourseID {
				r.s.purchases[[2]uint{link.ChapterID, stored.UserID}] = true
			}
		}
	default:
		r.s.users[stored.UserID].HasAllAccess = true
	}
	return true, nil
}

func (r fakeOrderRepo) MarkFailed(orderID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := r.s.orders[orderID]
	if stored == nil || stored.IsTerminal() {
		return false, nil
	}
	stored.Status = models.OrderStatusFailed
	return true, nil
}

// gateway

type fakeGateway struct {
	mu      sync.Mutex
	err     error
	created []payments.OrderParams
	secret  string
}

func (g *fakeGateway) CreateOrder(_ context.Context, params payments.OrderParams) (*payments.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, params)
	return &payments.GatewayOrder{ID: "order_" + params.Receipt[:8], AmountMinor: params.AmountMinor, Currency: params.Currency, Status: "created"}, nil
}

func (g *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return signature == fakeSignature(orderID, paymentID)
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func fakeSignature(orderID, paymentID string) string {
	return "sig:" + orderID + "|" + paymentID
}

// recordingEmitter captures emitted event types.
type recordingEmitter struct {
	mu    sync.Mutex
	types []string
}

func (e *recordingEmitter) Emit(_ context.Context, eventType, _ string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
}

func (e *recordingEmitter) count(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.types {
		if t == eventType {
			n++
		}
	}
	return n
}

var (
	_ repository.UserRepository     = fakeUserRepo{}
	_ repository.CourseRepository   = fakeCourseRepo{}
	_ repository.ChapterRepository  = fakeChapterRepo{}
	_ repository.ProgressRepository = fakeProgressRepo{}
	_ repository.OrderRepository    = fakeOrderRepo{}
	_ payments.Gateway              = (*fakeGateway)(nil)
)
