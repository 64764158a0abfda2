package services

import (
	"context"
	"testing"

	"github.com/AnshRaj112/quill-backend/internal/models"
	"github.com/AnshRaj112/quill-backend/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func nullLogger() logrus.FieldLogger {
	l, _ := logtest.NewNullLogger()
	return l
}

type fakeEntries struct {
	rows         map[uuid.UUID]models.JournalEntry
	ownerMissing bool
	creates      int
	updates      int
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{rows: map[uuid.UUID]models.JournalEntry{}}
}

func (f *fakeEntries) List(_ context.Context, userID uuid.UUID, _ repository.ListOptions) ([]models.JournalEntry, int, error) {
	var out []models.JournalEntry
	for _, e := range f.rows {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (f *fakeEntries) Get(_ context.Context, userID, id uuid.UUID) (*models.JournalEntry, error) {
	e, ok := f.rows[id]
	if !ok || e.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (f *fakeEntries) Create(_ context.Context, userID uuid.UUID, content string) (*models.JournalEntry, error) {
	if f.ownerMissing {
		f.ownerMissing = false
		return nil, repository.ErrOwnerMissing
	}
	f.creates++
	e := models.JournalEntry{ID: uuid.New(), UserID: userID, Content: content}
	f.rows[e.ID] = e
	return &e, nil
}

func (f *fakeEntries) Update(_ context.Context, userID, id uuid.UUID, content string) (*models.JournalEntry, error) {
	e, ok := f.rows[id]
	if !ok || e.UserID != userID {
		return nil, repository.ErrNotFound
	}
	f.updates++
	e.Content = content
	f.rows[id] = e
	return &e, nil
}

func (f *fakeEntries) Delete(_ context.Context, userID, id uuid.UUID) error {
	e, ok := f.rows[id]
	if !ok || e.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeUsers struct {
	rows map[uuid.UUID]models.User
	err  error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: map[uuid.UUID]models.User{}}
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	if f.err != nil {
		return f.err
	}
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeUsers) SetSubscription(_ context.Context, id uuid.UUID, status models.SubscriptionStatus, customerID string) error {
	u, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.SubscriptionStatus = status
	if customerID != "" {
		u.StripeCustomerID = customerID
	}
	f.rows[id] = u
	return nil
}

func (f *fakeUsers) SetSubscriptionByCustomer(_ context.Context, customerID string, status models.SubscriptionStatus) error {
	for id, u := range f.rows {
		if u.StripeCustomerID == customerID {
			u.SubscriptionStatus = status
			f.rows[id] = u
			return nil
		}
	}
	return repository.ErrNotFound
}
