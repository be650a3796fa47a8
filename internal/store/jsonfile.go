package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"synbot/internal/models"
)

// JSONCredentialStore keeps accounts in a single flat file keyed by username.
// The whole file is rewritten on every mutation.
type JSONCredentialStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONCredentialStore uses the given file path; the file may not exist yet.
func NewJSONCredentialStore(path string) *JSONCredentialStore {
	return &JSONCredentialStore{path: path}
}

func (s *JSONCredentialStore) Register(ctx context.Context, username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readAll()
	if err != nil {
		return false, err
	}
	if _, exists := users[username]; exists {
		return false, nil
	}
	users[username] = models.CredentialRecord{Password: password}
	if err := s.writeAll(users); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONCredentialStore) Validate(ctx context.Context, username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readAll()
	if err != nil {
		return false, err
	}
	rec, exists := users[username]
	return exists && rec.Password == password, nil
}

func (s *JSONCredentialStore) ResetPassword(ctx context.Context, username, newPassword string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readAll()
	if err != nil {
		return false, err
	}
	if _, exists := users[username]; !exists {
		return false, nil
	}
	users[username] = models.CredentialRecord{Password: newPassword}
	if err := s.writeAll(users); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONCredentialStore) readAll() (map[string]models.CredentialRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]models.CredentialRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", s.path, err)
	}
	users := map[string]models.CredentialRecord{}
	if err := json.Unmarshal(data, &users); err != nil {
		// Unexpected shape degrades to an empty store; the next successful
		// mutation rewrites the file with a valid one.
		return map[string]models.CredentialRecord{}, nil
	}
	return users, nil
}

func (s *JSONCredentialStore) writeAll(users map[string]models.CredentialRecord) error {
	data, err := json.MarshalIndent(users, "", "    ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

// historyFile is the persisted transcript shape: username to thread name to
// ordered message list, the whole store in one document.
type historyFile map[string]map[string][]models.Message

// JSONTranscriptStore keeps every user's chat history in a single file.
// Save rewrites the full store; the atomic replace keeps other users' data
// intact if the process dies mid-write.
type JSONTranscriptStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONTranscriptStore uses the given file path; the file may not exist yet.
func NewJSONTranscriptStore(path string) *JSONTranscriptStore {
	return &JSONTranscriptStore{path: path}
}

func (s *JSONTranscriptStore) Load(ctx context.Context, username string) (*models.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readAll()
	if err != nil {
		return nil, err
	}
	threads, ok := history[username]
	if !ok {
		return models.NewTranscript(username), nil
	}
	tr := &models.Transcript{Owner: username, Threads: make(map[string]*models.Thread, len(threads))}
	for name, messages := range threads {
		tr.Threads[name] = &models.Thread{Name: name, Messages: messages}
	}
	tr.EnsureDefault()
	return tr, nil
}

func (s *JSONTranscriptStore) Save(ctx context.Context, username string, tr *models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readAll()
	if err != nil {
		return err
	}
	threads := make(map[string][]models.Message, len(tr.Threads))
	for name, th := range tr.Threads {
		msgs := th.Messages
		if msgs == nil {
			msgs = []models.Message{}
		}
		threads[name] = msgs
	}
	history[username] = threads

	data, err := json.MarshalIndent(history, "", "    ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func (s *JSONTranscriptStore) readAll() (historyFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return historyFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}
	history := historyFile{}
	if err := json.Unmarshal(data, &history); err != nil {
		return historyFile{}, nil
	}
	return history, nil
}
