package devbackend

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"hotelgate/internal/auth"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type account struct {
	user         auth.User
	passwordHash string
}

// Store keeps accounts in memory, indexed by lower-cased email.
type Store struct {
	mu         sync.RWMutex
	byEmail    map[string]*account
	byID       map[string]*account
	bcryptCost int
}

func NewStore() *Store {
	return &Store{
		byEmail:    make(map[string]*account),
		byID:       make(map[string]*account),
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *Store) GetByEmail(email string) (*auth.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, "", ErrUserNotFound
	}
	u := a.user
	return &u, a.passwordHash, nil
}

func (s *Store) GetByID(id string) (*auth.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, "", ErrUserNotFound
	}
	u := a.user
	return &u, a.passwordHash, nil
}

// Create hashes password and adds the user. An empty ID gets a UUID.
func (s *Store) Create(u auth.User, password string) (*auth.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	key := strings.ToLower(u.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return nil, ErrUserExists
	}
	a := &account{user: u, passwordHash: string(hash)}
	s.byEmail[key] = a
	s.byID[u.ID] = a
	out := u
	return &out, nil
}

func (s *Store) SetPassword(id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	a.passwordHash = string(hash)
	return nil
}

type usersFile struct {
	Users []struct {
		ID                string   `yaml:"id"`
		Name              string   `yaml:"name"`
		Email             string   `yaml:"email"`
		Password          string   `yaml:"password"`
		HotelID           string   `yaml:"hotel_id"`
		Role              string   `yaml:"role"`
		Permissions       []string `yaml:"permissions"`
		CustomPermissions []string `yaml:"custom_permissions"`
	} `yaml:"users"`
}

// SeedFromFile loads users from YAML, skipping incomplete entries and
// emails that already exist.
func (s *Store) SeedFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return err
	}
	for _, u := range uf.Users {
		if u.Email == "" || u.Password == "" {
			continue
		}
		_, err := s.Create(auth.User{
			ID:      u.ID,
			Name:    u.Name,
			Email:   u.Email,
			HotelID: u.HotelID,
			Role: auth.Role{
				Name:        u.Role,
				Permissions: auth.Permissions(u.Permissions...),
			},
			CustomPermissions: auth.Permissions(u.CustomPermissions...),
		}, u.Password)
		if err != nil && !errors.Is(err, ErrUserExists) {
			return err
		}
	}
	return nil
}
