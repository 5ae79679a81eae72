package demo

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPetNotFound is returned for unknown pet ids
	ErrPetNotFound = errors.New("pet not found")
	// ErrInvalidPet is returned when a pet fails validation
	ErrInvalidPet = errors.New("invalid pet")
)

// Pet is the resource served by PetsController
type Pet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps pets in memory
type Store struct {
	mu   sync.RWMutex
	pets map[string]*Pet
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{pets: make(map[string]*Pet)}
}

// List returns all pets, oldest first
func (s *Store) List() []Pet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pets := make([]Pet, 0, len(s.pets))
	for _, p := range s.pets {
		pets = append(pets, *p)
	}
	sort.Slice(pets, func(i, j int) bool {
		if pets[i].CreatedAt.Equal(pets[j].CreatedAt) {
			return pets[i].ID < pets[j].ID
		}
		return pets[i].CreatedAt.Before(pets[j].CreatedAt)
	})
	return pets
}

// Get returns the pet with id
func (s *Store) Get(id string) (Pet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pets[id]
	if !ok {
		return Pet{}, ErrPetNotFound
	}
	return *p, nil
}

// Create validates and stores a new pet
func (s *Store) Create(name, species, owner string) (Pet, error) {
	name = strings.TrimSpace(name)
	species = strings.TrimSpace(species)
	if name == "" {
		return Pet{}, errors.Join(ErrInvalidPet, errors.New("name is required"))
	}
	if species == "" {
		return Pet{}, errors.Join(ErrInvalidPet, errors.New("species is required"))
	}

	p := &Pet{
		ID:        uuid.New().String(),
		Name:      name,
		Species:   species,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.pets[p.ID] = p
	s.mu.Unlock()
	return *p, nil
}

// Delete removes the pet with id
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[id]; !ok {
		return ErrPetNotFound
	}
	delete(s.pets, id)
	return nil
}
