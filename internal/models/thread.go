package models

import (
	"fmt"
	"sort"
	"time"
)

// DefaultThreadName is the implicit thread every user gets on first login.
// Unlike explicitly created chats it carries no timestamp suffix, so two
// concurrent sessions of the same user both write to the same key.
const DefaultThreadName = "default"

// threadNameTimeFormat matches the display format users see in the sidebar.
const threadNameTimeFormat = "2006-01-02 15:04:05"

// Thread is a named, ordered message sequence belonging to one user.
// The sequence is replaced wholesale on every persistence write.
type Thread struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// AppendTurn adds one user message and the assistant reply, in that order.
func (t *Thread) AppendTurn(userMsg, assistantMsg Message) {
	t.Messages = append(t.Messages, userMsg, assistantMsg)
}

// Transcript is all threads belonging to one user, keyed by thread name.
// It is created lazily on first access and never explicitly deleted.
type Transcript struct {
	Owner   string             `json:"owner"`
	Threads map[string]*Thread `json:"threads"`
}

// NewTranscript builds an empty collection containing the default thread.
func NewTranscript(owner string) *Transcript {
	return &Transcript{
		Owner: owner,
		Threads: map[string]*Thread{
			DefaultThreadName: {Name: DefaultThreadName},
		},
	}
}

// EnsureDefault guarantees the default thread exists, repairing collections
// loaded from unexpected or partial persisted shapes.
func (tr *Transcript) EnsureDefault() {
	if tr.Threads == nil {
		tr.Threads = make(map[string]*Thread)
	}
	if _, ok := tr.Threads[DefaultThreadName]; !ok {
		tr.Threads[DefaultThreadName] = &Thread{Name: DefaultThreadName}
	}
	for name, th := range tr.Threads {
		if th == nil {
			tr.Threads[name] = &Thread{Name: name}
		} else if th.Name == "" {
			th.Name = name
		}
	}
}

// NewThread creates an empty thread under a timestamped key so repeated
// user-supplied names never collide, and returns it. Two creations inside
// the same second get a numeric suffix to keep keys distinct.
func (tr *Transcript) NewThread(name string, now time.Time) *Thread {
	base := fmt.Sprintf("%s - %s", name, now.Format(threadNameTimeFormat))
	key := base
	for i := 2; ; i++ {
		if _, exists := tr.Threads[key]; !exists {
			break
		}
		key = fmt.Sprintf("%s (%d)", base, i)
	}
	th := &Thread{Name: key}
	tr.Threads[key] = th
	return th
}

// Thread returns the named thread, or nil when absent.
func (tr *Transcript) Thread(name string) *Thread {
	return tr.Threads[name]
}

// ThreadNames lists thread keys in stable sorted order.
func (tr *Transcript) ThreadNames() []string {
	names := make([]string, 0, len(tr.Threads))
	for name := range tr.Threads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
