package storage

import (
	"context"
	"sync"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
)

// MemoryUserRepository хранит состояние диалога пользователей бота в памяти.
// Наружу отдаются копии: изменения видны только после Save.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get возвращает пользователя; нового регистрирует в главном меню.
// Смена чата обновляет ChatID.
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		user = *entity.NewUser(userID, chatID)
	}
	user.ChatID = chatID
	r.users[userID] = user

	return &user, nil
}

func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = *user
	r.mu.Unlock()

	return nil
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
