package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
)

// memRepository is an in-memory ReminderRepository with atomic claims.
type memRepository struct {
	repository.ReminderRepository

	mu        sync.Mutex
	reminders map[string]*model.Reminder

	scanErr    error
	claimErr   error
	unclaimErr error

	// scanBarrier, when set, holds every ScanAll caller until all have scanned.
	scanBarrier *sync.WaitGroup

	// afterClaim, when set, runs after every successful claim.
	afterClaim func(id string)
}

func newMemRepository(reminders ...*model.Reminder) *memRepository {
	repo := &memRepository{reminders: make(map[string]*model.Reminder)}
	for _, r := range reminders {
		repo.reminders[r.ID] = r
	}
	return repo
}

func (m *memRepository) ScanAll(context.Context) ([]*model.Reminder, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}

	m.mu.Lock()
	out := make([]*model.Reminder, 0, len(m.reminders))
	for _, r := range m.reminders {
		c := *r
		out = append(out, &c)
	}
	m.mu.Unlock()

	if m.scanBarrier != nil {
		m.scanBarrier.Done()
		m.scanBarrier.Wait()
	}

	return out, nil
}

func (m *memRepository) Claim(_ context.Context, id string) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok || r.Completed || r.Deleted {
		return false, nil
	}
	r.Completed = true

	if m.afterClaim != nil {
		m.afterClaim(id)
	}
	return true, nil
}

func (m *memRepository) Unclaim(_ context.Context, id string) (bool, error) {
	if m.unclaimErr != nil {
		return false, m.unclaimErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok || !r.Completed {
		return false, nil
	}
	r.Completed = false
	r.FailedAttempts++
	return true, nil
}

func (m *memRepository) get(id string) model.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reminders[id]
}

type memUsers struct {
	mu      sync.Mutex
	users   map[string]*model.User
	lookups int
	err     error
}

func newMemUsers(users ...*model.User) *memUsers {
	dir := &memUsers{users: make(map[string]*model.User)}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	return dir
}

func (d *memUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

var errTransport = errors.New("smtp: connection refused")

type fakeTransport struct {
	mu          sync.Mutex
	sent        []mailer.Email
	err         error
	panicWith   any
	simulated   bool
	delay       time.Duration
	blockOnCtx  bool
	inFlight    int
	maxInFlight int
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Send(ctx context.Context, email mailer.Email) (mailer.Receipt, error) {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight--
		t.mu.Unlock()
	}()

	if t.panicWith != nil {
		panic(t.panicWith)
	}
	if t.blockOnCtx {
		<-ctx.Done()
		return mailer.Receipt{}, ctx.Err()
	}
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if t.err != nil {
		return mailer.Receipt{}, t.err
	}

	t.mu.Lock()
	t.sent = append(t.sent, email)
	t.mu.Unlock()

	return mailer.Receipt{Transport: "fake", Simulated: t.simulated}, nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}
