package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users *UserRepository
	OTPs  *OTPRepository
	Tasks *TaskRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool pgTxStarter) *Repositories {
	return &Repositories{
		Users: NewUserRepository(pool),
		OTPs:  NewOTPRepository(pool),
		Tasks: NewTaskRepository(pool),
	}
}
