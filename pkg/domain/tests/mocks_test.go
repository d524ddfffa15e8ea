package tests

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/common/domain"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

// mockStore implements every repository the purchase service needs on top of
// plain maps. WithTx restores the previous state when fn fails.
type mockStore struct {
	purchases map[uuid.UUID]*model.Purchase
	courses   map[uuid.UUID]*model.Course
	buyers    map[uuid.UUID]*model.Buyer
	failures  map[string]error
	inTx      bool
}

func newMockStore() *mockStore {
	return &mockStore{
		purchases: make(map[uuid.UUID]*model.Purchase),
		courses:   make(map[uuid.UUID]*model.Course),
		buyers:    make(map[uuid.UUID]*model.Buyer),
		failures:  make(map[string]error),
	}
}

func (m *mockStore) addCourse(price string, lectures int) *model.Course {
	course := &model.Course{
		ID:        uuid.New(),
		Title:     "Go in Production",
		Thumbnail: "https://cdn.example.com/go.png",
		Price:     mustDecimal(price),
	}
	for i := 0; i < lectures; i++ {
		course.Lectures = append(course.Lectures, model.Lecture{
			ID:            uuid.New(),
			CourseID:      course.ID,
			Title:         fmt.Sprintf("Lecture %d", i+1),
			IsPreviewFree: i == 0,
		})
	}
	m.courses[course.ID] = course
	return course
}

func (m *mockStore) addPurchase(courseID, buyerID uuid.UUID, status model.PurchaseStatus, ref string) *model.Purchase {
	p := &model.Purchase{
		ID:               uuid.New(),
		CourseID:         courseID,
		BuyerID:          buyerID,
		Amount:           m.courses[courseID].Price,
		Status:           status,
		PaymentReference: ref,
		Version:          1,
	}
	m.purchases[p.ID] = p
	return p
}

// failOnce makes the next call of op return err.
func (m *mockStore) failOnce(op string, err error) {
	m.failures[op] = err
}

func (m *mockStore) fail(op string) error {
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

func (m *mockStore) buyer(id uuid.UUID) *model.Buyer {
	if b, ok := m.buyers[id]; ok {
		return b
	}
	return &model.Buyer{ID: id}
}

func (m *mockStore) NextID() (uuid.UUID, error) {
	return uuid.New(), nil
}

func (m *mockStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx {
		return fn(ctx)
	}
	snapshot := m.clone()
	m.inTx = true
	err := fn(ctx)
	m.inTx = false
	if err != nil {
		m.purchases, m.courses, m.buyers = snapshot.purchases, snapshot.courses, snapshot.buyers
	}
	return err
}

func (m *mockStore) Create(_ context.Context, p *model.Purchase) error {
	if err := m.fail("Create"); err != nil {
		return err
	}
	for _, existing := range m.purchases {
		if existing.PaymentReference == p.PaymentReference {
			return fmt.Errorf("duplicate payment reference %s", p.PaymentReference)
		}
	}
	val := *p
	m.purchases[p.ID] = &val
	return nil
}

func (m *mockStore) Update(_ context.Context, p *model.Purchase) error {
	if err := m.fail("Update"); err != nil {
		return err
	}
	existing, ok := m.purchases[p.ID]
	if !ok {
		return model.ErrPurchaseNotFound
	}
	if existing.Status != model.PurchasePending || existing.Version != p.Version-1 {
		return model.ErrInvalidStatusTransition
	}
	val := *p
	m.purchases[p.ID] = &val
	return nil
}

func (m *mockStore) FindByPaymentReference(_ context.Context, ref string) (*model.Purchase, error) {
	if err := m.fail("FindByPaymentReference"); err != nil {
		return nil, err
	}
	for _, p := range m.purchases {
		if p.PaymentReference == ref {
			val := *p
			return &val, nil
		}
	}
	return nil, model.ErrPurchaseNotFound
}

func (m *mockStore) FindByCourseAndBuyer(_ context.Context, courseID, buyerID uuid.UUID) ([]model.Purchase, error) {
	var out []model.Purchase
	for _, p := range m.purchases {
		if p.CourseID == courseID && p.BuyerID == buyerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockStore) HasCompleted(_ context.Context, courseID, buyerID uuid.UUID) (bool, error) {
	for _, p := range m.purchases {
		if p.CourseID == courseID && p.BuyerID == buyerID && p.Status == model.PurchaseCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) ListCompleted(_ context.Context) ([]model.PurchaseWithCourse, error) {
	var out []model.PurchaseWithCourse
	for _, p := range m.purchases {
		if p.Status != model.PurchaseCompleted {
			continue
		}
		out = append(out, model.PurchaseWithCourse{Purchase: *p, Course: *m.courses[p.CourseID]})
	}
	return out, nil
}

func (m *mockStore) Find(_ context.Context, id uuid.UUID) (*model.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, model.ErrCourseNotFound
	}
	val := *c
	return &val, nil
}

func (m *mockStore) AppendEnrolledStudent(_ context.Context, courseID, buyerID uuid.UUID) error {
	if err := m.fail("AppendEnrolledStudent"); err != nil {
		return err
	}
	c, ok := m.courses[courseID]
	if !ok {
		return model.ErrCourseNotFound
	}
	c.EnrolledStudents = addToSet(c.EnrolledStudents, buyerID)
	return nil
}

func (m *mockStore) SetPreviewFreeForCourse(_ context.Context, courseID uuid.UUID) error {
	if err := m.fail("SetPreviewFreeForCourse"); err != nil {
		return err
	}
	c, ok := m.courses[courseID]
	if !ok {
		return nil
	}
	for i := range c.Lectures {
		c.Lectures[i].IsPreviewFree = true
	}
	return nil
}

func (m *mockStore) AppendEnrolledCourse(_ context.Context, buyerID, courseID uuid.UUID) error {
	if err := m.fail("AppendEnrolledCourse"); err != nil {
		return err
	}
	b := m.buyer(buyerID)
	b.EnrolledCourses = addToSet(b.EnrolledCourses, courseID)
	m.buyers[buyerID] = b
	return nil
}

func (m *mockStore) clone() *mockStore {
	out := newMockStore()
	for id, p := range m.purchases {
		val := *p
		out.purchases[id] = &val
	}
	for id, c := range m.courses {
		val := *c
		val.Lectures = append([]model.Lecture(nil), c.Lectures...)
		val.EnrolledStudents = append([]uuid.UUID(nil), c.EnrolledStudents...)
		out.courses[id] = &val
	}
	for id, b := range m.buyers {
		val := *b
		val.EnrolledCourses = append([]uuid.UUID(nil), b.EnrolledCourses...)
		out.buyers[id] = &val
	}
	return out
}

func addToSet(set []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range set {
		if existing == id {
			return set
		}
	}
	return append(set, id)
}

type mockPaymentProvider struct {
	requests  []model.CheckoutSessionRequest
	createErr error
	noURL     bool

	event     model.PaymentEvent
	verifyErr error
	verified  int
}

func (m *mockPaymentProvider) CreateCheckoutSession(_ context.Context, req model.CheckoutSessionRequest) (model.CheckoutSession, error) {
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return model.CheckoutSession{}, m.createErr
	}
	id := fmt.Sprintf("cs_test_%d", len(m.requests))
	session := model.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}
	if m.noURL {
		session.URL = ""
	}
	return session, nil
}

func (m *mockPaymentProvider) VerifyAndParseEvent(_ []byte, _ string) (model.PaymentEvent, error) {
	m.verified++
	if m.verifyErr != nil {
		return model.PaymentEvent{}, m.verifyErr
	}
	return m.event, nil
}

type mockEventDispatcher struct {
	events []domain.Event
	err    error
}

func (m *mockEventDispatcher) Dispatch(event domain.Event) error {
	m.events = append(m.events, event)
	return m.err
}

func (m *mockEventDispatcher) Reset() {
	m.events = nil
}
