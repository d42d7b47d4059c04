// Package usecasetest provides in-memory stand-ins for the ports the
// services depend on. The repositories honour the same conditional update
// contract as the SQL store.
package usecasetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/repository"
)

// UserRepo is an in-memory port.UserRepository.
type UserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]domain.User
}

// NewUserRepo returns an empty UserRepo.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[int64]domain.User)}
}

func (r *UserRepo) Create(_ context.Context, user domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return nil, repository.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return &user, nil
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *UserRepo) EmailTakenByOther(_ context.Context, email string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && user.ID != userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepo) UpdateProfile(_ context.Context, id int64, patch domain.ProfilePatch, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	user.UpdatedAt = at
	r.users[id] = user
	return &user, nil
}

// Count returns the number of stored users.
func (r *UserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// OTPRepo is an in-memory port.OTPRepository.
type OTPRepo struct {
	mu         sync.Mutex
	nextID     int64
	challenges map[int64]domain.OTPChallenge
}

// NewOTPRepo returns an empty OTPRepo.
func NewOTPRepo() *OTPRepo {
	return &OTPRepo{challenges: make(map[int64]domain.OTPChallenge)}
}

func (r *OTPRepo) Create(_ context.Context, challenge domain.OTPChallenge) (*domain.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	challenge.ID = r.nextID
	challenge.Used = false
	r.challenges[challenge.ID] = challenge
	return &challenge, nil
}

func (r *OTPRepo) GetByID(_ context.Context, id int64) (*domain.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &challenge, nil
}

func (r *OTPRepo) Find(_ context.Context, lookup port.OTPLookup) (*domain.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[lookup.ID]
	if !ok || challenge.Purpose != lookup.Purpose {
		return nil, repository.ErrNotFound
	}
	if lookup.Email != "" && challenge.Email != lookup.Email {
		return nil, repository.ErrNotFound
	}
	return &challenge, nil
}

func (r *OTPRepo) Consume(_ context.Context, id int64, code string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[id]
	if !ok || challenge.Used || !challenge.ExpiresAt.After(at) || challenge.Code != code {
		return false, nil
	}
	challenge.Used = true
	r.challenges[id] = challenge
	return true, nil
}

func (r *OTPRepo) Refresh(_ context.Context, id int64, code string, expiresAt, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[id]
	if !ok || challenge.Used || !challenge.ExpiresAt.After(at) {
		return false, nil
	}
	challenge.Code = code
	challenge.ExpiresAt = expiresAt
	r.challenges[id] = challenge
	return true, nil
}

func (r *OTPRepo) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, challenge := range r.challenges {
		if challenge.ExpiresAt.Before(before) {
			delete(r.challenges, id)
			removed++
		}
	}
	return removed, nil
}

// Challenge returns a snapshot of a stored challenge, or the zero value.
func (r *OTPRepo) Challenge(id int64) domain.OTPChallenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.challenges[id]
}

// TaskRepo is an in-memory port.TaskRepository.
type TaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]domain.Task
}

// NewTaskRepo returns an empty TaskRepo.
func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: make(map[int64]domain.Task)}
}

func (r *TaskRepo) List(_ context.Context, userID int64) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for id := r.nextID; id > 0; id-- {
		if task, ok := r.tasks[id]; ok && task.UserID == userID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *TaskRepo) Get(_ context.Context, userID, taskID int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &task, nil
}

func (r *TaskRepo) Create(_ context.Context, userID int64, input domain.TaskInput, at time.Time) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task := domain.Task{
		ID:          r.nextID,
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     input.DueDate,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	r.tasks[task.ID] = task
	return &task, nil
}

func (r *TaskRepo) Update(_ context.Context, userID, taskID int64, patch domain.TaskPatch, at time.Time) (*domain.Task, domain.TaskStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, "", repository.ErrNotFound
	}
	previous := task.Status
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description.Set {
		task.Description = patch.Description.Value
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.DueDate.Set {
		task.DueDate = patch.DueDate.Value
	}
	task.UpdatedAt = at
	r.tasks[taskID] = task
	return &task, previous, nil
}

func (r *TaskRepo) Delete(_ context.Context, userID, taskID int64) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, repository.ErrNotFound
	}
	delete(r.tasks, taskID)
	return &task, nil
}

// Notifier records accepted notifications. Setting Reject makes Enqueue refuse them.
type Notifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
	Reject        bool
}

func (n *Notifier) Enqueue(notification domain.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Reject {
		return false
	}
	n.notifications = append(n.notifications, notification)
	return true
}

// OfKind returns the accepted notifications of one kind in order.
func (n *Notifier) OfKind(kind domain.NotificationKind) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, notification := range n.notifications {
		if notification.Kind == kind {
			out = append(out, notification)
		}
	}
	return out
}

// Last returns the most recent notification of one kind.
func (n *Notifier) Last(kind domain.NotificationKind) (domain.Notification, bool) {
	matches := n.OfKind(kind)
	if len(matches) == 0 {
		return domain.Notification{}, false
	}
	return matches[len(matches)-1], true
}

// Publisher records published events.
type Publisher struct {
	mu         sync.Mutex
	Registered []domain.UserRegisteredEvent
	Sent       []domain.NotificationEvent
}

func (p *Publisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Registered = append(p.Registered, event)
	return nil
}

func (p *Publisher) PublishNotification(_ context.Context, event domain.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Sent = append(p.Sent, event)
	return nil
}

// PlainHasher stores passwords with a marker prefix so tests stay fast.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }

func (PlainHasher) Verify(password, encoded string) (bool, error) {
	stored, ok := strings.CutPrefix(encoded, "plain$")
	if !ok {
		return false, errors.New("unknown hash format")
	}
	return stored == password, nil
}

// Clock is a settable clock shared by the services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to 2025-10-24 12:00 UTC.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
