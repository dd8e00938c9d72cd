package session

import (
	"log"
	"sync"

	"sarafan/internal/models"
)

// clientLock - мьютекс клиента со счетчиком ожидающих, чтобы удалять неиспользуемые записи.
type clientLock struct {
	mu   sync.Mutex
	refs int
}

// maxHistory - сколько последних стадий хранится для клиента.
const maxHistory = 20

// clientQueue - задачи клиента, ожидающие выполнения.
type clientQueue struct {
	jobs []func()
}

// SessionManager сериализует обработку сообщений одного клиента и хранит стадии диалога в памяти.
// Сообщения разных клиентов обрабатываются параллельно.
type SessionManager struct {
	locks      map[string]*clientLock // Ключ: ID клиента
	locksMutex sync.Mutex

	queues      map[string]*clientQueue // Ключ: ID клиента, есть только пока работает обработчик очереди
	queuesMutex sync.Mutex

	userStates     map[string]string   // Ключ: ID клиента, Значение: стадия (models.Stage*)
	userHistory    map[string][]string // Ключ: ID клиента, Значение: история стадий
	userStateMutex sync.RWMutex
}

// NewSessionManager создает и возвращает новый экземпляр SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		locks:       make(map[string]*clientLock),
		queues:      make(map[string]*clientQueue),
		userStates:  make(map[string]string),
		userHistory: make(map[string][]string),
	}
}

// --- Блокировки клиентов ---

// LockClient захватывает мьютекс клиента и возвращает функцию освобождения.
func (sm *SessionManager) LockClient(clientID string) (unlock func()) {
	sm.locksMutex.Lock()
	l, ok := sm.locks[clientID]
	if !ok {
		l = &clientLock{}
		sm.locks[clientID] = l
	}
	l.refs++
	sm.locksMutex.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		sm.locksMutex.Lock()
		l.refs--
		if l.refs == 0 {
			delete(sm.locks, clientID)
		}
		sm.locksMutex.Unlock()
	}
}

// activeLocks возвращает число клиентов с захваченным или ожидаемым мьютексом.
func (sm *SessionManager) activeLocks() int {
	sm.locksMutex.Lock()
	defer sm.locksMutex.Unlock()
	return len(sm.locks)
}

// --- Очереди клиентов ---

// Enqueue ставит задачу в очередь клиента и сразу возвращается.
// Задачи одного клиента выполняются по одной, в порядке вызовов Enqueue.
func (sm *SessionManager) Enqueue(clientID string, job func()) {
	sm.queuesMutex.Lock()
	q, running := sm.queues[clientID]
	if !running {
		q = &clientQueue{}
		sm.queues[clientID] = q
	}
	q.jobs = append(q.jobs, job)
	sm.queuesMutex.Unlock()

	if !running {
		go sm.drain(clientID, q)
	}
}

// drain выполняет задачи очереди, пока она не опустеет, затем удаляет ее.
func (sm *SessionManager) drain(clientID string, q *clientQueue) {
	for {
		sm.queuesMutex.Lock()
		if len(q.jobs) == 0 {
			delete(sm.queues, clientID)
			sm.queuesMutex.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		sm.queuesMutex.Unlock()

		job()
	}
}

// activeQueues возвращает число клиентов, у которых есть невыполненные задачи.
func (sm *SessionManager) activeQueues() int {
	sm.queuesMutex.Lock()
	defer sm.queuesMutex.Unlock()
	return len(sm.queues)
}

// --- Управление состоянием клиента ---

// GetState возвращает текущую стадию клиента.
// Если стадия не установлена, возвращает models.StageNew.
func (sm *SessionManager) GetState(clientID string) string {
	sm.userStateMutex.RLock()
	defer sm.userStateMutex.RUnlock()
	state, ok := sm.userStates[clientID]
	if !ok {
		return models.StageNew
	}
	return state
}

// SetState устанавливает стадию клиента и добавляет ее в историю.
func (sm *SessionManager) SetState(clientID string, state string) {
	sm.userStateMutex.Lock()
	defer sm.userStateMutex.Unlock()

	sm.userStates[clientID] = state
	// Не дублируем последнюю стадию в истории
	history := sm.userHistory[clientID]
	if len(history) == 0 || history[len(history)-1] != state {
		history = append(history, state)
		if len(history) > maxHistory {
			history = append([]string(nil), history[len(history)-maxHistory:]...)
		}
		sm.userHistory[clientID] = history
	}
	log.Printf("SessionManager.SetState: Стадия клиента %s: %s, история: %v", clientID, state, sm.userHistory[clientID])
}

// GetHistory возвращает копию истории стадий клиента.
func (sm *SessionManager) GetHistory(clientID string) []string {
	sm.userStateMutex.RLock()
	defer sm.userStateMutex.RUnlock()
	if history, ok := sm.userHistory[clientID]; ok {
		historyCopy := make([]string, len(history))
		copy(historyCopy, history)
		return historyCopy
	}
	return []string{}
}

// ClearState удаляет стадию и историю клиента.
func (sm *SessionManager) ClearState(clientID string) {
	sm.userStateMutex.Lock()
	defer sm.userStateMutex.Unlock()
	delete(sm.userStates, clientID)
	delete(sm.userHistory, clientID)
	log.Printf("SessionManager.ClearState: Стадия и история клиента %s очищены.", clientID)
}
