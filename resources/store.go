package resources

import (
	"encoding/json"
	"errors"
	"sync"
)

var ErrTaskNotFound = errors.New("task not found")

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Task aceita campos JSON arbitrários além de title/description; eles ficam
// em Extra e voltam na resposta. Extra nunca é alterado no lugar.
type Task struct {
	ID          int
	Title       string
	Description string
	Extra       map[string]json.RawMessage
}

// TaskPatch traz só os campos enviados no PUT; os ausentes ficam como estão.
// "id" no corpo é ignorado.
type TaskPatch struct {
	Title       *string
	Description *string
	Extra       map[string]json.RawMessage
}

func (t Task) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+3)
	for k, v := range t.Extra {
		out[k] = v
	}
	out["id"] = t.ID
	out["title"] = t.Title
	out["description"] = t.Description
	return json.Marshal(out)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var p TaskPatch
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Task{Extra: p.Extra}
	// o id do corpo só é lido de volta em respostas; CreateTask sempre o sobrescreve
	var id struct {
		ID int `json:"id"`
	}
	if json.Unmarshal(data, &id) == nil {
		t.ID = id.ID
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	return nil
}

func (p *TaskPatch) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*p = TaskPatch{}
	for k, raw := range fields {
		switch k {
		case "id":
		case "title":
			if err := json.Unmarshal(raw, &p.Title); err != nil {
				return err
			}
		case "description":
			if err := json.Unmarshal(raw, &p.Description); err != nil {
				return err
			}
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[k] = raw
		}
	}
	return nil
}

// Store guarda usuários e tarefas em memória, em ordem de criação.
type Store struct {
	mu    sync.RWMutex
	users []User
	tasks []Task
}

// NewStore cria o store com os dados de exemplo do serviço.
func NewStore() *Store {
	return &Store{
		users: []User{
			{ID: 1, Name: "John Smith"},
			{ID: 2, Name: "Pirate Jacky"},
		},
		tasks: []Task{
			{ID: 1, Title: "Working on Daily Reports", Description: "Day 1"},
			{ID: 2, Title: "Sailing the ship", Description: "Roaming around the world"},
		},
	}
}

func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.users...)
}

func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Task(nil), s.tasks...)
}

// CreateTask atribui o próximo ID (maior ID + 1) e anexa a tarefa.
func (s *Store) CreateTask(t Task) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	for _, existing := range s.tasks {
		if existing.ID >= next {
			next = existing.ID + 1
		}
	}
	t.ID = next
	s.tasks = append(s.tasks, t)
	return t
}

func (s *Store) UpdateTask(id int, p TaskPatch) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		if p.Title != nil {
			s.tasks[i].Title = *p.Title
		}
		if p.Description != nil {
			s.tasks[i].Description = *p.Description
		}
		if len(p.Extra) > 0 {
			merged := make(map[string]json.RawMessage, len(s.tasks[i].Extra)+len(p.Extra))
			for k, v := range s.tasks[i].Extra {
				merged[k] = v
			}
			for k, v := range p.Extra {
				merged[k] = v
			}
			s.tasks[i].Extra = merged
		}
		return s.tasks[i], nil
	}
	return Task{}, ErrTaskNotFound
}

func (s *Store) DeleteTask(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return ErrTaskNotFound
}
