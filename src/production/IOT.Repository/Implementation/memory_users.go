package implementation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

// MemoryUserRepository keeps accounts in process memory. Used with
// STORAGE_DRIVER=memory and in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*auth_models.User // user_id -> user
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*auth_models.User)}
}

func (m *MemoryUserRepository) Create(ctx context.Context, user *auth_models.User) (*auth_models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return nil, fmt.Errorf("user %q: %w", user.Username, interfaces.ErrDuplicate)
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	m.users[user.UserID] = &stored
	return user, nil
}

func (m *MemoryUserRepository) GetByID(ctx context.Context, userID string) (*auth_models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*auth_models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (m *MemoryUserRepository) List(ctx context.Context, page, pageSize int, role string) (*interfaces.PaginationResult, error) {
	m.mu.RLock()
	all := make([]*auth_models.User, 0, len(m.users))
	for _, u := range m.users {
		if role == "" || u.Role == role {
			cp := *u
			all = append(all, &cp)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	items := all[start:end]

	result := &interfaces.PaginationResult{Items: items, Total: len(all)}
	if end < len(all) {
		nextPage := page + 1
		result.NextPage = &nextPage
	}
	return result, nil
}

func (m *MemoryUserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, u := range m.users {
		if u.Role == role && u.Active {
			n++
		}
	}
	return n, nil
}

func (m *MemoryUserRepository) Update(ctx context.Context, user *auth_models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.UserID]; !ok {
		return interfaces.ErrNotFound
	}
	for id, u := range m.users {
		if id != user.UserID && u.Username == user.Username {
			return fmt.Errorf("user %q: %w", user.Username, interfaces.ErrDuplicate)
		}
	}
	user.UpdatedAt = time.Now().UTC()
	stored := *user
	m.users[user.UserID] = &stored
	return nil
}

func (m *MemoryUserRepository) Delete(ctx context.Context, userID string, hardDelete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return interfaces.ErrNotFound
	}
	if hardDelete {
		delete(m.users, userID)
		return nil
	}
	u.Active = false
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryRoleRepository keeps roles in process memory.
type MemoryRoleRepository struct {
	mu    sync.RWMutex
	roles map[string]*auth_models.Role // name -> role
}

func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{roles: make(map[string]*auth_models.Role)}
}

func (m *MemoryRoleRepository) Create(ctx context.Context, role *auth_models.Role) (*auth_models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.roles[role.Name]; ok {
		existing.Description = role.Description
		existing.UpdatedAt = now
		out := *existing
		return &out, nil
	}
	if role.RoleID == "" {
		role.RoleID = uuid.New().String()
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	stored := *role
	m.roles[role.Name] = &stored
	return role, nil
}

func (m *MemoryRoleRepository) FindByName(ctx context.Context, name string) (*auth_models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.roles[name]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *MemoryRoleRepository) FindAll(ctx context.Context) ([]*auth_models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := make([]*auth_models.Role, 0, len(m.roles))
	for _, r := range m.roles {
		cp := *r
		roles = append(roles, &cp)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}
