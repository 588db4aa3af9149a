// Package service coordinates the turn lifecycle: persistence, routing,
// composition, and session bookkeeping.
package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"devmate/internal/classifier"
	"devmate/internal/composer"
	"devmate/internal/llm"
	"devmate/internal/nl2sql"
	"devmate/internal/recommend"
	"devmate/internal/retriever"
	"devmate/internal/store"
	"devmate/internal/tools"
)

// Service wires the routed components behind the public operations.
type Service struct {
	store       store.Store
	classifier  *classifier.Classifier
	translator  *nl2sql.Translator
	retriever   *retriever.Retriever
	dispatcher  *tools.Dispatcher
	composer    *composer.Composer
	recommender *recommend.Engine
	client      llm.Client
	model       string

	historyWindow int
	turnTimeout   time.Duration

	locks *turnLocks
}

// Options bundles the service dependencies.
type Options struct {
	Store         store.Store
	Classifier    *classifier.Classifier
	Translator    *nl2sql.Translator
	Retriever     *retriever.Retriever
	Dispatcher    *tools.Dispatcher
	Composer      *composer.Composer
	Recommender   *recommend.Engine
	Client        llm.Client
	Model         string
	HistoryWindow int
	TurnTimeout   time.Duration
}

// New creates the service.
func New(opts Options) *Service {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 4
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 60 * time.Second
	}
	return &Service{
		store:         opts.Store,
		classifier:    opts.Classifier,
		translator:    opts.Translator,
		retriever:     opts.Retriever,
		dispatcher:    opts.Dispatcher,
		composer:      opts.Composer,
		recommender:   opts.Recommender,
		client:        opts.Client,
		model:         opts.Model,
		historyWindow: opts.HistoryWindow,
		turnTimeout:   opts.TurnTimeout,
		locks:         newTurnLocks(),
	}
}

// turnLocks tracks which sessions have a turn in flight.
type turnLocks struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

func newTurnLocks() *turnLocks {
	return &turnLocks{inFlight: make(map[string]bool)}
}

// TryAcquire claims the session; false means a turn is already running.
func (l *turnLocks) TryAcquire(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[sessionID] {
		return false
	}
	l.inFlight[sessionID] = true
	return true
}

func (l *turnLocks) Release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, sessionID)
}

// newMessageID mints a prefixed message id.
func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}

// newSessionID mints a session uid.
func newSessionID() string {
	return "sess_" + shortuuid.New()
}

// titleFromQuery derives the provisional session title from the first words
// of the first message.
func titleFromQuery(query string) string {
	title := strings.TrimSpace(query)
	if title == "" {
		return "New Chat"
	}
	words := strings.Fields(title)
	if len(words) > 6 {
		title = strings.Join(words[:6], " ") + "..."
	}
	if len(title) > 60 {
		title = title[:60] + "..."
	}
	return title
}
