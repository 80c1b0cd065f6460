// Package memory holds in-memory implementations of the repository
// interfaces. They back the package tests; nothing in the server binary
// uses them.
package memory

import (
	"context"
	"sync"
	"time"

	"dbugate/internal/models"
	"dbugate/internal/repository"
)

type Students struct {
	mu   sync.Mutex
	byID map[string]*models.Student
}

func NewStudents(seed ...*models.Student) *Students {
	m := &Students{byID: make(map[string]*models.Student)}
	for _, s := range seed {
		cp := *s
		m.byID[s.StudentID] = &cp
	}
	return m
}

func (m *Students) Find(_ context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Students) Create(_ context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byID[s.StudentID] = &cp
	return nil
}

func (m *Students) Save(_ context.Context, s *models.Student) error {
	return m.Create(context.Background(), s)
}

func (m *Students) List(_ context.Context) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Student, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, *s)
	}
	return out, nil
}

func (m *Students) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

func (m *Students) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.byID {
		if s.Status == models.StudentActive {
			n++
		}
	}
	return n, nil
}

type Assets struct {
	mu     sync.Mutex
	byID   map[uint]*models.Asset
	nextID uint
}

func NewAssets(seed ...*models.Asset) *Assets {
	m := &Assets{byID: make(map[uint]*models.Asset), nextID: 1}
	for _, a := range seed {
		_ = m.Create(context.Background(), a)
	}
	return m
}

func (m *Assets) Find(_ context.Context, id uint) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Assets) FindBySerial(_ context.Context, serial string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.SerialNumber == serial {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Assets) CountActiveByOwner(_ context.Context, studentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.byID {
		if a.OwnerStudentID == studentID && a.Status == models.AssetActive {
			n++
		}
	}
	return n, nil
}

func (m *Assets) Create(_ context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.AssetID == 0 {
		a.AssetID = m.nextID
	}
	if a.AssetID >= m.nextID {
		m.nextID = a.AssetID + 1
	}
	cp := *a
	m.byID[a.AssetID] = &cp
	return nil
}

func (m *Assets) Save(_ context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byID[a.AssetID] = &cp
	return nil
}

func (m *Assets) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *Assets) List(_ context.Context) ([]models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Asset, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, *a)
	}
	return out, nil
}

func (m *Assets) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

func (m *Assets) CountActive(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.byID {
		if a.Status == models.AssetActive {
			n++
		}
	}
	return n, nil
}

type Operators struct {
	mu     sync.Mutex
	byID   map[uint]*models.Operator
	nextID uint
}

func NewOperators(seed ...*models.Operator) *Operators {
	m := &Operators{byID: make(map[uint]*models.Operator), nextID: 1}
	for _, o := range seed {
		_ = m.Create(context.Background(), o)
	}
	return m
}

func (m *Operators) Find(_ context.Context, id uint) (*models.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *Operators) FindByUsername(_ context.Context, username string) (*models.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Username == username {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Operators) Create(_ context.Context, o *models.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.OperatorID == 0 {
		o.OperatorID = m.nextID
	}
	if o.OperatorID >= m.nextID {
		m.nextID = o.OperatorID + 1
	}
	cp := *o
	m.byID[o.OperatorID] = &cp
	return nil
}

func (m *Operators) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type ExitLogs struct {
	mu   sync.Mutex
	rows []models.ExitLog
}

func NewExitLogs() *ExitLogs {
	return &ExitLogs{}
}

func (m *ExitLogs) Append(_ context.Context, l *models.ExitLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.LogID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *l)
	return nil
}

func (m *ExitLogs) Recent(_ context.Context, limit int) ([]models.ExitLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExitLog, 0, limit)
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *ExitLogs) Aggregate(_ context.Context) (repository.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := repository.Stats{TotalExits: int64(len(m.rows))}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, l := range m.rows {
		if l.Result == models.ResultAllowed {
			st.AllowedExits++
		} else {
			st.BlockedExits++
		}
		if l.Timestamp.After(cutoff) {
			st.RecentExits++
		}
	}
	return st, nil
}

// Rows returns a copy of every appended row, oldest first, so tests can
// assert on exactly what was recorded.
func (m *ExitLogs) Rows() []models.ExitLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ExitLog, len(m.rows))
	copy(out, m.rows)
	return out
}
