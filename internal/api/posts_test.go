package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/eventlog"
	"github.com/careslot/careslot/internal/identity"
	"github.com/careslot/careslot/internal/payment"
	"github.com/careslot/careslot/internal/post"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/slot"
	"github.com/careslot/careslot/internal/subscription"
)

const jwtTestSecret = "jwt-test-secret"

// stubSubRepo carries just enough state for the post quota path: one
// subscription, its plan, the role grant and the used counter.
type stubSubRepo struct {
	sub        *subscription.Subscription
	plan       *subscription.Plan
	doctorRole bool
	postsUsed  int
}

func (r *stubSubRepo) GetByID(context.Context, uuid.UUID) (*subscription.Subscription, error) {
	return nil, subscription.ErrNotFound
}

func (r *stubSubRepo) GetActive(context.Context, uuid.UUID) (*subscription.Subscription, error) {
	if r.sub == nil {
		return nil, subscription.ErrNotFound
	}
	cp := *r.sub
	return &cp, nil
}

func (r *stubSubRepo) GetPlan(context.Context, uuid.UUID) (*subscription.Plan, error) {
	if r.plan == nil {
		return nil, subscription.ErrPlanNotFound
	}
	return r.plan, nil
}

func (r *stubSubRepo) DoctorApproved(context.Context, uuid.UUID) (bool, error) {
	return true, nil
}

func (r *stubSubRepo) HasDoctorRole(context.Context, uuid.UUID) (bool, error) {
	return r.doctorRole, nil
}

func (r *stubSubRepo) CreatePending(context.Context, *subscription.Subscription) error {
	return nil
}

func (r *stubSubRepo) Activate(context.Context, uuid.UUID, *subscription.Plan, payment.Proof, time.Time) (*subscription.Subscription, error) {
	return nil, subscription.ErrNotFound
}

func (r *stubSubRepo) ReplaceAndActivate(context.Context, uuid.UUID, *subscription.Plan, payment.Proof, time.Time) (*subscription.Subscription, error) {
	return nil, subscription.ErrNotFound
}

func (r *stubSubRepo) IncrementPostsUsed(_ context.Context, _ uuid.UUID, limit int) (bool, error) {
	if r.postsUsed >= limit {
		return false, nil
	}
	r.postsUsed++
	return true, nil
}

func (r *stubSubRepo) DecrementPostsUsed(context.Context, uuid.UUID) error {
	if r.postsUsed > 0 {
		r.postsUsed--
	}
	return nil
}

func (r *stubSubRepo) Deactivate(context.Context, uuid.UUID) error {
	if r.sub != nil {
		r.sub.IsActive = false
	}
	return nil
}

func (r *stubSubRepo) ListExpiringBetween(context.Context, time.Time, time.Time) ([]subscription.Subscription, error) {
	return nil, nil
}

func (r *stubSubRepo) ListExpired(context.Context, time.Time) ([]subscription.Subscription, error) {
	return nil, nil
}

type stubSlotRepo struct{}

func (stubSlotRepo) GetByID(context.Context, uuid.UUID) (*slot.Slot, error) {
	return nil, slot.ErrNotFound
}

func (stubSlotRepo) ListByDoctor(context.Context, uuid.UUID, slot.ListFilter) ([]slot.Slot, error) {
	return nil, nil
}

func (stubSlotRepo) Insert(context.Context, *slot.Slot) error { return nil }

func (stubSlotRepo) BulkInsert(_ context.Context, slots []slot.Slot) (int, error) {
	return len(slots), nil
}

func (stubSlotRepo) SetAvailability(context.Context, uuid.UUID, slot.Availability, slot.Availability) (bool, error) {
	return false, nil
}

type stubClinicRepo struct{}

func (stubClinicRepo) GetByID(context.Context, uuid.UUID) (*clinic.Clinic, error) {
	return nil, clinic.ErrNotFound
}

func (stubClinicRepo) ListByDoctor(context.Context, uuid.UUID) ([]clinic.Clinic, error) {
	return nil, nil
}

func (stubClinicRepo) Insert(context.Context, *clinic.Clinic) error { return nil }

type memPostRepo struct {
	posts   []post.Post
	failing bool
}

func (r *memPostRepo) Insert(_ context.Context, p *post.Post) error {
	if r.failing {
		return errors.New("storage unavailable")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = post.StatusDraft
	}
	r.posts = append(r.posts, *p)
	return nil
}

type postFixture struct {
	repo     *stubSubRepo
	posts    *memPostRepo
	handler  http.Handler
	doctorID uuid.UUID
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()

	doctorID := uuid.New()
	now := time.Now()
	end := now.AddDate(0, 0, 30)
	plan := &subscription.Plan{ID: uuid.New(), Name: "Starter", Price: 499, PostLimit: 5, Days: 30, IsActive: true}

	repo := &stubSubRepo{
		plan:       plan,
		doctorRole: true,
		sub: &subscription.Subscription{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			PlanID:    plan.ID,
			StartDate: &now,
			EndDate:   &end,
			IsActive:  true,
		},
	}
	posts := &memPostRepo{}

	slotSvc := slot.NewService(stubSlotRepo{}, stubClinicRepo{}, 30, zerolog.Nop())
	subSvc := subscription.NewService(repo, slotSvc, eventlog.NopRecorder{}, redisclient.NopNotifier{},
		"payment-secret", 72*time.Hour, zerolog.Nop())

	r := chi.NewRouter()
	r.With(identity.Middleware(jwtTestSecret)).Post("/api/posts", createPostHandler(subSvc, posts))

	return &postFixture{repo: repo, posts: posts, handler: r, doctorID: doctorID}
}

func (f *postFixture) createPost(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": f.doctorID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtTestSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader([]byte(body)))
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreatePost(t *testing.T) {
	t.Run("creates the post and consumes one quota unit", func(t *testing.T) {
		f := newPostFixture(t)

		rec := f.createPost(t, `{"title":"Flu season advice","body":"Wash your hands.","status":"published"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)

		require.Len(t, f.posts.posts, 1)
		assert.Equal(t, post.StatusPublished, f.posts.posts[0].Status)
		assert.Equal(t, f.doctorID, f.posts.posts[0].DoctorID)
		assert.Equal(t, 1, f.repo.postsUsed)
	})

	t.Run("rejected status leaves the quota untouched", func(t *testing.T) {
		f := newPostFixture(t)

		rec := f.createPost(t, `{"title":"t","status":"bogus"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Empty(t, f.posts.posts)
		assert.Equal(t, 0, f.repo.postsUsed)
	})

	t.Run("missing title leaves the quota untouched", func(t *testing.T) {
		f := newPostFixture(t)

		rec := f.createPost(t, `{"body":"no title"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, f.repo.postsUsed)
	})

	t.Run("failed insert hands the quota unit back", func(t *testing.T) {
		f := newPostFixture(t)
		f.posts.failing = true

		rec := f.createPost(t, `{"title":"t"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		assert.Empty(t, f.posts.posts)
		assert.Equal(t, 0, f.repo.postsUsed)
	})

	t.Run("callers without the doctor role are rejected", func(t *testing.T) {
		f := newPostFixture(t)
		f.repo.doctorRole = false

		rec := f.createPost(t, `{"title":"t"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		assert.Empty(t, f.posts.posts)
		assert.Equal(t, 0, f.repo.postsUsed)
		assert.Contains(t, rec.Body.String(), "not_doctor")
	})

	t.Run("quota exhaustion is a conflict", func(t *testing.T) {
		f := newPostFixture(t)
		f.repo.postsUsed = f.repo.plan.PostLimit

		rec := f.createPost(t, `{"title":"t"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, f.posts.posts)
	})
}
