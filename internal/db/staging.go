package db

import (
	"sync"

	"github.com/ldi/caretaker/pkg/models"
)

// StagedItems holds entities proposed over MCP but not yet committed.
type StagedItems struct {
	Tasks    []*models.Task
	Expenses []*models.Expense
}

// StagingManager provides thread-safe in-memory storage for staged changes.
type StagingManager struct {
	mu     sync.RWMutex
	staged map[string]*StagedItems
}

func NewStagingManager() *StagingManager {
	return &StagingManager{
		staged: make(map[string]*StagedItems),
	}
}

func (sm *StagingManager) AddTask(sessionID string, task *models.Task) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &StagedItems{}
	}
	sm.staged[sessionID].Tasks = append(sm.staged[sessionID].Tasks, task)
}

func (sm *StagingManager) AddExpense(sessionID string, expense *models.Expense) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &StagedItems{}
	}
	sm.staged[sessionID].Expenses = append(sm.staged[sessionID].Expenses, expense)
}

func (sm *StagingManager) GetAndClear(sessionID string) *StagedItems {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &StagedItems{}
	}

	delete(sm.staged, sessionID)
	return items
}

// Discard drops a session's staged items without applying them.
func (sm *StagingManager) Discard(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.staged, sessionID)
}

func (sm *StagingManager) Peek(sessionID string) *StagedItems {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	items, ok := sm.staged[sessionID]
	if !ok {
		return &StagedItems{}
	}

	return items
}
