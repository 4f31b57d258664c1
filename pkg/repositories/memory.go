package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
)

// In-memory repositories back the service when no database is configured.
// Not-found results use pgx.ErrNoRows so callers handle both backends alike.

type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[string]models.User
	nextID int64
	now    func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User), now: time.Now}
}

func (m *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return models.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *MemoryUserRepository) Create(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if existing, ok := m.users[user.Username]; ok {
		existing.Password = user.Password
		existing.FullName = user.FullName
		existing.UpdatedAt = now
		m.users[user.Username] = existing
		return existing, nil
	}
	return m.insert(user, now), nil
}

func (m *MemoryUserRepository) CreateIfAbsent(_ context.Context, user models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return false, nil
	}
	m.insert(user, m.now().UTC())
	return true, nil
}

func (m *MemoryUserRepository) insert(user models.User, now time.Time) models.User {
	m.nextID++
	user.ID = m.nextID
	if user.Theme == "" {
		user.Theme = pkg.ThemeDark
	}
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.Username] = user
	return user
}

func (m *MemoryUserRepository) UpdateTheme(_ context.Context, username string, theme pkg.Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Theme = theme
	u.UpdatedAt = m.now().UTC()
	m.users[username] = u
	return nil
}

type MemoryPredictionLogRepository struct {
	mu   sync.RWMutex
	logs []models.PredictionLog
	now  func() time.Time
}

func NewMemoryPredictionLogRepository() *MemoryPredictionLogRepository {
	return &MemoryPredictionLogRepository{now: time.Now}
}

func (m *MemoryPredictionLogRepository) Create(_ context.Context, log models.PredictionLog) (models.PredictionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = int64(len(m.logs) + 1)
	if log.PredictionDate.IsZero() {
		log.PredictionDate = m.now().UTC()
	}
	m.logs = append(m.logs, log)
	return log, nil
}

func (m *MemoryPredictionLogRepository) FindRecent(_ context.Context, limit int) ([]models.PredictionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PredictionLog, len(m.logs))
	copy(out, m.logs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryPredictionLogRepository) CountByRiskLevel(_ context.Context) (map[pkg.RiskLevel]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[pkg.RiskLevel]int64, 3)
	for _, l := range m.logs {
		counts[pkg.RiskLevel(strings.TrimSpace(string(l.RiskLevel)))]++
	}
	return counts, nil
}

type MemoryInterventionRepository struct {
	mu     sync.Mutex
	open   map[string]models.Intervention
	closed []models.Intervention
	nextID int64
	now    func() time.Time
}

func NewMemoryInterventionRepository() *MemoryInterventionRepository {
	return &MemoryInterventionRepository{open: make(map[string]models.Intervention), now: time.Now}
}

func (m *MemoryInterventionRepository) Open(_ context.Context, in models.Intervention) (models.Intervention, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if cur, ok := m.open[in.CustomerID]; ok {
		cur.RiskLevel = in.RiskLevel
		cur.ChurnProbability = in.ChurnProbability
		cur.TraceID = in.TraceID
		cur.UpdatedAt = now
		m.open[in.CustomerID] = cur
		return cur, false, nil
	}
	m.nextID++
	in.ID = m.nextID
	in.Status = models.InterventionOpen
	in.OpenedAt, in.UpdatedAt = now, now
	in.ResolvedAt = nil
	m.open[in.CustomerID] = in
	return in, true, nil
}

func (m *MemoryInterventionRepository) Resolve(_ context.Context, customerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.open[customerID]
	if !ok {
		return false, nil
	}
	now := m.now().UTC()
	cur.Status = models.InterventionResolved
	cur.UpdatedAt = now
	cur.ResolvedAt = &now
	m.closed = append(m.closed, cur)
	delete(m.open, customerID)
	return true, nil
}

func (m *MemoryInterventionRepository) CountOpen(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.open)), nil
}
