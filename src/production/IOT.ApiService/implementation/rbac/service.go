package rbac

import (
	"sort"
	"sync"

	auth_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/auth"
)

// Service keeps the set of role names accepted on accounts.
type Service struct {
	mu    sync.RWMutex
	roles map[string]bool
}

// NewService creates a new RBAC service with predefined roles
func NewService() *Service {
	s := &Service{roles: make(map[string]bool)}
	for _, r := range auth_models.PredefinedRoles() {
		s.roles[r.Name] = true
	}
	return s
}

// IsValidRole checks if a role is valid
func (s *Service) IsValidRole(roleName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[roleName]
}

// IsAdmin checks if a role is admin
func (s *Service) IsAdmin(roleName string) bool {
	return roleName == auth_models.RoleAdmin
}

// AddRole adds a new role
func (s *Service) AddRole(roleName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[roleName] = true
}

// GetValidRoles returns all valid roles, sorted
func (s *Service) GetValidRoles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]string, 0, len(s.roles))
	for role := range s.roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
